package api

import (
	"database/sql"
	"net/http"
	"strings"

	"artizen/internal/db"
)

func searchPostsHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		limit, ok := queryInt(r, "limit", 20)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		offset, ok := queryInt(r, "offset", 0)
		if !ok || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}

		results, err := db.SearchPosts(r.Context(), database, query, clamp(limit, 1, 100), offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to search posts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	})
}
