package db

import (
	"context"
	"database/sql"
	"fmt"
)

type demoUserSeed struct {
	email    string
	fullName string
	bio      string
}

var demoUserSeeds = []demoUserSeed{
	{email: "ada@artizen.local", fullName: "Ada Byron", bio: "Painter of engines"},
	{email: "grace@artizen.local", fullName: "Grace Murray", bio: "Debugging in watercolor"},
	{email: "alan@artizen.local", fullName: "Alan Mathison", bio: "Sketches, mostly machines"},
}

// SeedDemoData inserts demo users, a welcome post and a thread between the
// first two users. Existing rows are left untouched.
func SeedDemoData(ctx context.Context, database *sql.DB, passwordHash string) error {
	return withTx(ctx, database, func(tx *sql.Tx) error {
		now := nowString()
		for _, u := range demoUserSeeds {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO users (email, full_name, password_hash, bio, created)
VALUES (?, ?, ?, ?, ?)`, u.email, u.fullName, passwordHash, u.bio, now); err != nil {
				return fmt.Errorf("seed user %q: %w", u.email, err)
			}
		}

		var posts int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts`).Scan(&posts); err != nil {
			return err
		}
		if posts == 0 {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO posts (id, title, content, author_email, created) VALUES (?, ?, ?, ?, ?)`,
				newID(), "Welcome", "Share your work, follow artists and start a conversation.", demoUserSeeds[0].email, now); err != nil {
				return fmt.Errorf("seed welcome post: %w", err)
			}
		}

		lo, hi := threadPair(demoUserSeeds[0].email, demoUserSeeds[1].email)
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO chat_threads (id, user_a, user_b, created, updated) VALUES (?, ?, ?, ?, ?)`,
			newID(), lo, hi, now, now); err != nil {
			return fmt.Errorf("seed thread: %w", err)
		}
		return nil
	})
}
