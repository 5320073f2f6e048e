package db

import (
	"context"
	"database/sql"
	"strings"

	"artizen/internal/models"
)

// SearchPosts runs a full-text query over post titles and content, newest first.
func SearchPosts(ctx context.Context, database *sql.DB, query string, limit, offset int) ([]models.SearchResult, error) {
	query = ftsQuery(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := database.QueryContext(ctx, `
SELECT p.id, p.title, p.author_email, p.created,
       snippet(posts_fts, 2, '>>>', '<<<', '...', 20) AS snippet
FROM posts_fts
JOIN posts p ON p.rowid = posts_fts.rowid
WHERE posts_fts MATCH ?
ORDER BY p.created DESC
LIMIT ? OFFSET ?`, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SearchResult, 0)
	for rows.Next() {
		var (
			r       models.SearchResult
			created string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.AuthorEmail, &created, &r.Snippet); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery quotes each term so user input cannot inject FTS5 operators.
func ftsQuery(raw string) string {
	fields := strings.Fields(raw)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
