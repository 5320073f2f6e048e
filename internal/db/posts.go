package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"artizen/internal/models"
)

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 50
)

type FeedParams struct {
	Page   int
	Limit  int
	Before time.Time
	Author string
}

const postSelect = `
SELECT p.id, p.title, p.content, p.author_email, COALESCE(u.full_name, p.author_email),
       COALESCE(u.profile_image, ''), p.created
FROM posts p
LEFT JOIN users u ON u.email = p.author_email`

func CreatePost(ctx context.Context, database *sql.DB, author, title, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	id := newID()
	_, err := database.ExecContext(ctx, `
INSERT INTO posts (id, title, content, author_email, created)
VALUES (?, ?, ?, ?, ?)`, id, strings.TrimSpace(title), content, normalizeEmail(author), nowString())
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return GetPost(ctx, database, id)
}

func GetPost(ctx context.Context, database *sql.DB, id string) (*models.Post, error) {
	return getPost(ctx, database, id)
}

func getPost(ctx context.Context, q querier, id string) (*models.Post, error) {
	row := q.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		return nil, err
	}
	posts := []models.Post{*p}
	if err := hydratePosts(ctx, q, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListFeed returns one page of posts, newest first. HasMore is true when
// the page came back full, so an exact multiple of Limit costs one extra empty fetch.
func ListFeed(ctx context.Context, database *sql.DB, params FeedParams) (models.FeedPage, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = DefaultFeedLimit
	}
	if params.Limit > MaxFeedLimit {
		params.Limit = MaxFeedLimit
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if !params.Before.IsZero() {
		where = append(where, "p.created <= ?")
		args = append(args, formatTime(params.Before))
	}
	if author := normalizeEmail(params.Author); author != "" {
		where = append(where, "p.author_email = ?")
		args = append(args, author)
	}
	query := postSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created DESC, p.rowid DESC LIMIT ? OFFSET ?"
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return models.FeedPage{}, err
	}
	posts := make([]models.Post, 0, params.Limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return models.FeedPage{}, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return models.FeedPage{}, err
	}
	rows.Close()

	if err := hydratePosts(ctx, database, posts); err != nil {
		return models.FeedPage{}, err
	}
	return models.FeedPage{
		Posts:   posts,
		HasMore: len(posts) == params.Limit,
		Page:    params.Page,
		Limit:   params.Limit,
	}, nil
}

func DeletePost(ctx context.Context, database *sql.DB, id, requester string) error {
	return withTx(ctx, database, func(tx *sql.Tx) error {
		var author string
		if err := tx.QueryRowContext(ctx, `SELECT author_email FROM posts WHERE id = ?`, id).Scan(&author); err != nil {
			return err
		}
		if author != normalizeEmail(requester) {
			return ErrForbidden
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE post_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		return err
	})
}

// ToggleLike flips the liker's membership in the post's likedBy set.
func ToggleLike(ctx context.Context, database *sql.DB, postID, liker string) (*models.Post, error) {
	liker = normalizeEmail(liker)
	var out *models.Post
	err := withTx(ctx, database, func(tx *sql.Tx) error {
		var owner string
		if err := tx.QueryRowContext(ctx, `SELECT author_email FROM posts WHERE id = ?`, postID).Scan(&owner); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ? AND user_email = ?`, postID, liker)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO post_likes (post_id, user_email, created) VALUES (?, ?, ?)`, postID, liker, nowString()); err != nil {
				return err
			}
			if err := createNotificationTx(ctx, tx, notificationInput{
				recipient: owner,
				sender:    liker,
				kind:      models.NotificationLike,
				postID:    postID,
			}); err != nil {
				return err
			}
		}
		out, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func AddComment(ctx context.Context, database *sql.DB, postID, author, content string) (*models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	author = normalizeEmail(author)
	var out *models.Post
	err := withTx(ctx, database, func(tx *sql.Tx) error {
		var owner string
		if err := tx.QueryRowContext(ctx, `SELECT author_email FROM posts WHERE id = ?`, postID).Scan(&owner); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO post_comments (id, post_id, author_email, content, created) VALUES (?, ?, ?, ?, ?)`,
			newID(), postID, author, content, nowString()); err != nil {
			return err
		}
		if err := createNotificationTx(ctx, tx, notificationInput{
			recipient: owner,
			sender:    author,
			kind:      models.NotificationComment,
			postID:    postID,
			preview:   content,
		}); err != nil {
			return err
		}
		var err error
		out, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteComment removes the comment at position index of the post's comment list.
// Only the comment author or the post owner may delete it.
func DeleteComment(ctx context.Context, database *sql.DB, postID string, index int, requester string) (*models.Post, error) {
	requester = normalizeEmail(requester)
	var out *models.Post
	err := withTx(ctx, database, func(tx *sql.Tx) error {
		var owner string
		if err := tx.QueryRowContext(ctx, `SELECT author_email FROM posts WHERE id = ?`, postID).Scan(&owner); err != nil {
			return err
		}
		if index < 0 {
			return ErrCommentNotFound
		}
		var commentID, commentAuthor string
		err := tx.QueryRowContext(ctx, `
SELECT id, author_email FROM post_comments
WHERE post_id = ?
ORDER BY created ASC, rowid ASC
LIMIT 1 OFFSET ?`, postID, index).Scan(&commentID, &commentAuthor)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCommentNotFound
		}
		if err != nil {
			return err
		}
		if requester != owner && requester != commentAuthor {
			return ErrForbidden
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM post_comments WHERE id = ?`, commentID); err != nil {
			return err
		}
		out, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hydratePosts(ctx context.Context, q querier, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*models.Post, len(posts))
	args := make([]any, 0, len(posts))
	for i := range posts {
		posts[i].LikedBy = []string{}
		posts[i].Comments = []models.Comment{}
		byID[posts[i].ID] = &posts[i]
		args = append(args, posts[i].ID)
	}
	in := placeholders(len(args))

	likeRows, err := q.QueryContext(ctx, `
SELECT post_id, user_email FROM post_likes
WHERE post_id IN (`+in+`)
ORDER BY created ASC, rowid ASC`, args...)
	if err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	for likeRows.Next() {
		var postID, email string
		if err := likeRows.Scan(&postID, &email); err != nil {
			likeRows.Close()
			return err
		}
		if p := byID[postID]; p != nil {
			p.LikedBy = append(p.LikedBy, email)
		}
	}
	if err := likeRows.Err(); err != nil {
		likeRows.Close()
		return err
	}
	likeRows.Close()

	commentRows, err := q.QueryContext(ctx, `
SELECT c.post_id, c.author_email, COALESCE(u.full_name, c.author_email), c.content, c.created
FROM post_comments c
LEFT JOIN users u ON u.email = c.author_email
WHERE c.post_id IN (`+in+`)
ORDER BY c.created ASC, c.rowid ASC`, args...)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var (
			postID  string
			c       models.Comment
			created string
		)
		if err := commentRows.Scan(&postID, &c.AuthorEmail, &c.AuthorName, &c.Content, &created); err != nil {
			return err
		}
		c.CreatedAt = parseTime(created)
		if p := byID[postID]; p != nil {
			p.Comments = append(p.Comments, c)
		}
	}
	if err := commentRows.Err(); err != nil {
		return err
	}

	for i := range posts {
		posts[i].Likes = len(posts[i].LikedBy)
	}
	return nil
}

func scanPost(row rowScanner) (*models.Post, error) {
	p := &models.Post{}
	var created string
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorEmail, &p.AuthorName, &p.AuthorImage, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}
