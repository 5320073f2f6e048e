package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationsIdempotentAndLatestVersionApplied(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "migrations.db")
	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("first migration apply: %v", err)
	}
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second migration apply: %v", err)
	}

	var latest, rows int
	if err := database.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0), COUNT(1) FROM schema_version`).Scan(&latest, &rows); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if want := schemaSteps[len(schemaSteps)-1].version; latest != want || rows != len(schemaSteps) {
		t.Fatalf("expected latest schema version %d over %d rows, got %d over %d", want, len(schemaSteps), latest, rows)
	}

	for _, table := range []string{"users", "posts", "post_likes", "post_comments", "follows", "notifications", "chat_threads", "chat_messages"} {
		var n int
		if err := database.QueryRowContext(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n); err != nil {
			t.Fatalf("lookup table %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	for _, index := range []string{"idx_post_comments_author", "idx_post_likes_user", "idx_notifications_sender"} {
		var n int
		if err := database.QueryRowContext(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type = 'index' AND name = ?`, index).Scan(&n); err != nil {
			t.Fatalf("lookup index %s: %v", index, err)
		}
		if n != 1 {
			t.Fatalf("expected index %s to exist", index)
		}
	}
}

func TestMigrationsRefuseNewerSchema(t *testing.T) {
	database := openTestDB(t, "newer.db")
	if _, err := database.Exec(`INSERT INTO schema_version (version, name, applied_at) VALUES (99, 'future', '')`); err != nil {
		t.Fatalf("insert future version: %v", err)
	}
	err := ApplyMigrations(database)
	if err == nil || !strings.Contains(err.Error(), "newer than this build") {
		t.Fatalf("expected newer schema error, got %v", err)
	}
}
