package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"artizen/internal/db"
	"artizen/internal/feedcache"
	"artizen/internal/logging"
	"artizen/internal/models"
)

// parseSnapshot accepts unix milliseconds or RFC3339.
func parseSnapshot(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func feedHandler(database *sql.DB, opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		page, ok := queryInt(r, "page", 1)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		limit, ok := queryInt(r, "limit", opts.FeedDefaultLimit)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		before, err := parseSnapshot(r.URL.Query().Get("ts"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ts")
			return
		}
		params := db.FeedParams{
			Page:   max(page, 1),
			Limit:  clamp(limit, 1, opts.FeedMaxLimit),
			Before: before,
			Author: strings.TrimSpace(r.URL.Query().Get("author")),
		}

		ctx := r.Context()
		key := feedcache.Key(params.Author, params.Page, params.Limit, params.Before)
		gen, genErr := opts.FeedCache.Generation(ctx)
		result, hit, err := opts.FeedCache.Get(ctx, key)
		if err != nil {
			logging.Log.Warn("feed cache read failed", "err", err)
			hit = false
		}
		opts.Metrics.FeedCacheLookup(hit)
		if !hit {
			result, err = db.ListFeed(ctx, database, params)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load feed")
				return
			}
			if genErr != nil {
				logging.Log.Warn("feed cache generation unavailable", "err", genErr)
			} else if err := opts.FeedCache.Set(ctx, key, gen, result); err != nil {
				logging.Log.Warn("feed cache write failed", "err", err)
			}
		}

		viewer := currentUser(ctx).Email
		posts := make([]models.Post, len(result.Posts))
		for i, p := range result.Posts {
			posts[i] = p.ForViewer(viewer)
		}
		result.Posts = posts
		writeJSON(w, http.StatusOK, result)
	})
}

func invalidateFeed(ctx context.Context, cache feedcache.Cache) {
	if err := cache.Invalidate(ctx); err != nil {
		logging.Log.Warn("feed cache invalidate failed", "err", err)
	}
}

func createPostHandler(database *sql.DB, cache feedcache.Cache) http.Handler {
	type createRequest struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req createRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		user := currentUser(r.Context())
		post, err := db.CreatePost(r.Context(), database, user.Email, req.Title, req.Content)
		if err != nil {
			if errors.Is(err, db.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to create post")
			return
		}
		invalidateFeed(r.Context(), cache)
		writeJSON(w, http.StatusCreated, post.ForViewer(user.Email))
	})
}

func postItemHandler(database *sql.DB, cache feedcache.Cache) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := pathTail(r.URL.Path, "/api/posts/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		user := currentUser(r.Context())

		switch r.Method {
		case http.MethodGet:
			post, err := db.GetPost(r.Context(), database, id)
			if err != nil {
				writePostError(w, err, "failed to load post")
				return
			}
			writeJSON(w, http.StatusOK, post.ForViewer(user.Email))
		case http.MethodDelete:
			if err := db.DeletePost(r.Context(), database, id, user.Email); err != nil {
				writePostError(w, err, "failed to delete post")
				return
			}
			invalidateFeed(r.Context(), cache)
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w)
		}
	})
}

func likeHandler(database *sql.DB, cache feedcache.Cache) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		id := pathTail(r.URL.Path, "/api/posts/like/")
		if id == "" {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		user := currentUser(r.Context())
		post, err := db.ToggleLike(r.Context(), database, id, user.Email)
		if err != nil {
			writePostError(w, err, "failed to toggle like")
			return
		}
		invalidateFeed(r.Context(), cache)
		writeJSON(w, http.StatusOK, post.ForViewer(user.Email))
	})
}

// commentHandler serves POST /api/posts/comment/:id and
// DELETE /api/posts/comment/:postId/:commentIndex.
func commentHandler(database *sql.DB, cache feedcache.Cache) http.Handler {
	type commentRequest struct {
		Content string `json:"content"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(pathTail(r.URL.Path, "/api/posts/comment/"), "/")
		user := currentUser(r.Context())

		switch {
		case r.Method == http.MethodPost && len(parts) == 1 && parts[0] != "":
			var req commentRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
			post, err := db.AddComment(r.Context(), database, parts[0], user.Email, req.Content)
			if err != nil {
				writePostError(w, err, "failed to add comment")
				return
			}
			invalidateFeed(r.Context(), cache)
			writeJSON(w, http.StatusCreated, post.ForViewer(user.Email))
		case r.Method == http.MethodDelete && len(parts) == 2:
			index, err := strconv.Atoi(parts[1])
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid comment index")
				return
			}
			post, err := db.DeleteComment(r.Context(), database, parts[0], index, user.Email)
			if err != nil {
				if errors.Is(err, db.ErrCommentNotFound) {
					writeError(w, http.StatusNotFound, "comment not found")
					return
				}
				writePostError(w, err, "failed to delete comment")
				return
			}
			invalidateFeed(r.Context(), cache)
			writeJSON(w, http.StatusOK, post.ForViewer(user.Email))
		case r.Method != http.MethodPost && r.Method != http.MethodDelete:
			methodNotAllowed(w)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	})
}

func writePostError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, db.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, db.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
