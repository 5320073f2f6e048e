package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"artizen/internal/models"
)

func openTestDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	database, err := Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func createUserForTest(t *testing.T, database *sql.DB, email, name string) *models.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, NewUser{Email: email, FullName: name, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}
