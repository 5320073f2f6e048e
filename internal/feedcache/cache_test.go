package feedcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"artizen/internal/db"
	"artizen/internal/models"
)

func TestLRUSetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(4, time.Minute)
	key := Key("", 1, 10, time.Time{})
	page := models.FeedPage{Posts: []models.Post{{ID: "p1"}}, HasMore: false, Page: 1, Limit: 10}

	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := c.Set(ctx, key, 0, page); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || got.Posts[0].ID != "p1" {
		t.Fatalf("expected hit, got ok=%v err=%v page=%+v", ok, err, got)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestKeyDistinguishesSnapshots(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	if Key("", 1, 10, at) == Key("", 1, 10, time.Time{}) {
		t.Fatalf("snapshot bound must be part of the key")
	}
	if Key("a@x", 2, 10, at) == Key("b@x", 2, 10, at) {
		t.Fatalf("author filter must be part of the key")
	}
}

func TestNopNeverHits(t *testing.T) {
	var c Cache = Nop{}
	_ = c.Set(context.Background(), "k", 0, models.FeedPage{})
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Fatalf("nop cache returned a hit")
	}
}

func TestLRUDropsPageReadBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "feed.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, email := range []string{"ada@artizen.test", "bob@artizen.test"} {
		if _, err := db.CreateUser(ctx, database, db.NewUser{Email: email, FullName: email, PasswordHash: "x"}); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	post, err := db.CreatePost(ctx, database, "ada@artizen.test", "hello", "first post")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	c := NewLRU(16, time.Minute)
	params := db.FeedParams{Page: 1, Limit: 10}
	key := Key("", 1, 10, time.Time{})

	// A reader misses and loads the page, then a like commits and
	// invalidates before the reader stores what it loaded.
	gen, err := c.Generation(ctx)
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	stale, err := db.ListFeed(ctx, database, params)
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	if _, err := db.ToggleLike(ctx, database, post.ID, "bob@artizen.test"); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := c.Set(ctx, key, gen, stale); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, hit, _ := c.Get(ctx, key); hit {
		t.Fatalf("stale page cached after invalidate: likedBy=%v", got.Posts[0].LikedBy)
	}

	gen, _ = c.Generation(ctx)
	fresh, err := db.ListFeed(ctx, database, params)
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	if err := c.Set(ctx, key, gen, fresh); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, hit, _ := c.Get(ctx, key)
	if !hit || len(got.Posts) != 1 || len(got.Posts[0].LikedBy) != 1 {
		t.Fatalf("expected fresh page with one like, hit=%v page=%+v", hit, got)
	}
}
