package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestToggleFollowAndCounts(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t, "follows.db")
	createUserForTest(t, database, "ada@example.com", "Ada")
	createUserForTest(t, database, "bob@example.com", "Bob")

	following, err := ToggleFollow(ctx, database, "bob@example.com", "ada@example.com")
	if err != nil || !following {
		t.Fatalf("follow: following=%v err=%v", following, err)
	}
	profile, err := GetProfile(ctx, database, "ada@example.com", "bob@example.com")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Followers != 1 || profile.Following != 0 || !profile.IsFollowing {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	following, err = ToggleFollow(ctx, database, "bob@example.com", "ada@example.com")
	if err != nil || following {
		t.Fatalf("unfollow: following=%v err=%v", following, err)
	}
	counts, err := GetFollowCounts(ctx, database, "ada@example.com")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Followers != 0 {
		t.Fatalf("expected 0 followers, got %d", counts.Followers)
	}

	if _, err := ToggleFollow(ctx, database, "bob@example.com", "bob@example.com"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self follow, got %v", err)
	}
	if _, err := ToggleFollow(ctx, database, "bob@example.com", "ghost@example.com"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for unknown user, got %v", err)
	}
}

func TestNotificationsListMarkAndPurge(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t, "notifications.db")
	createUserForTest(t, database, "ada@example.com", "Ada")
	createUserForTest(t, database, "bob@example.com", "Bob")

	if _, err := ToggleFollow(ctx, database, "bob@example.com", "ada@example.com"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	list, err := ListNotifications(ctx, database, "ada@example.com", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Message != "started following you" || list[0].Read {
		t.Fatalf("unexpected notifications: %+v", list)
	}
	if n, err := MarkAllNotificationsRead(ctx, database, "ada@example.com"); err != nil || n != 1 {
		t.Fatalf("mark read: n=%d err=%v", n, err)
	}
	if n, err := CountUnreadNotifications(ctx, database, "ada@example.com"); err != nil || n != 0 {
		t.Fatalf("unread after mark: n=%d err=%v", n, err)
	}

	if n, err := PurgeReadNotifications(ctx, database, time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("purge recent: n=%d err=%v", n, err)
	}
	if n, err := PurgeReadNotifications(ctx, database, time.Now().Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("purge all read: n=%d err=%v", n, err)
	}
	if n, err := ClearNotifications(ctx, database, "ada@example.com"); err != nil || n != 0 {
		t.Fatalf("clear: n=%d err=%v", n, err)
	}
}

func TestSearchUsersAndPosts(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t, "search.db")
	createUserForTest(t, database, "ada@example.com", "Ada Lovelace")
	createUserForTest(t, database, "bob@example.com", "Bob Adams")
	createUserForTest(t, database, "cy@example.com", "Cy Twombly")

	users, err := SearchUsers(ctx, database, "ad", "cy@example.com", 10)
	if err != nil {
		t.Fatalf("search users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %+v", users)
	}
	users, err = SearchUsers(ctx, database, "ada", "ada@example.com", 10)
	if err != nil {
		t.Fatalf("search users excluding self: %v", err)
	}
	if len(users) != 1 || users[0].Email != "bob@example.com" {
		t.Fatalf("expected only bob, got %+v", users)
	}

	if _, err := CreatePost(ctx, database, "ada@example.com", "Engines", "analytical sketches of engines"); err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := CreatePost(ctx, database, "bob@example.com", "Flowers", "watercolor petals"); err != nil {
		t.Fatalf("create post: %v", err)
	}
	results, err := SearchPosts(ctx, database, `engine "OR`, 10, 0)
	if err != nil {
		t.Fatalf("search posts: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("quoted terms must all match, got %+v", results)
	}
	results, err = SearchPosts(ctx, database, "engines", 10, 0)
	if err != nil {
		t.Fatalf("search posts: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Engines" {
		t.Fatalf("unexpected search results: %+v", results)
	}
}

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t, "seed.db")
	for i := 0; i < 2; i++ {
		if err := SeedDemoData(ctx, database, "hash"); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}
	stats, err := GetNetworkStats(ctx, database)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Users != len(demoUserSeeds) || stats.Posts != 1 || stats.Threads != 1 {
		t.Fatalf("unexpected stats after seeding twice: %+v", stats)
	}
}
