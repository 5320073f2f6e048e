package db

import (
	"context"
	"database/sql"
)

type NetworkStats struct {
	Users               int `json:"users"`
	Posts               int `json:"posts"`
	Comments            int `json:"comments"`
	Likes               int `json:"likes"`
	Follows             int `json:"follows"`
	Threads             int `json:"threads"`
	Messages            int `json:"messages"`
	UnreadNotifications int `json:"unreadNotifications"`
}

func GetNetworkStats(ctx context.Context, database *sql.DB) (NetworkStats, error) {
	stats := NetworkStats{}
	queries := []struct {
		sql string
		dst *int
	}{
		{`SELECT COUNT(1) FROM users`, &stats.Users},
		{`SELECT COUNT(1) FROM posts`, &stats.Posts},
		{`SELECT COUNT(1) FROM post_comments`, &stats.Comments},
		{`SELECT COUNT(1) FROM post_likes`, &stats.Likes},
		{`SELECT COUNT(1) FROM follows`, &stats.Follows},
		{`SELECT COUNT(1) FROM chat_threads`, &stats.Threads},
		{`SELECT COUNT(1) FROM chat_messages`, &stats.Messages},
		{`SELECT COUNT(1) FROM notifications WHERE read = 0`, &stats.UnreadNotifications},
	}
	for _, q := range queries {
		if err := database.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return NetworkStats{}, err
		}
	}
	return stats, nil
}
