package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"artizen/internal/ratelimit"
)

func TestRateLimitOnPostCreation(t *testing.T) {
	orig := defaultRateLimits
	defaultRateLimits = rateLimits{
		PostsPerHour:     1,
		MessagesPerMin:   10,
		TotalWritesDay:   100,
		ReadsPerMinute:   100,
		SearchPerMin:     100,
		FollowsPerMinute: 10,
	}
	defer func() { defaultRateLimits = orig }()

	server, database, token := setupTestServer(t)
	defer server.Close()
	defer database.Close()

	first := doReq(t, server.URL, token, http.MethodPost, "/api/posts", map[string]any{
		"title":   "one",
		"content": "first",
	})
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected first post 201, got %d", first.StatusCode)
	}
	_ = first.Body.Close()

	second := doReq(t, server.URL, token, http.MethodPost, "/api/posts", map[string]any{
		"title":   "two",
		"content": "second",
	})
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected second post 429, got %d", second.StatusCode)
	}
	if second.Header.Get("X-RateLimit-Limit") == "" || second.Header.Get("Retry-After") == "" {
		t.Fatalf("expected rate limit headers to be present")
	}
	_ = second.Body.Close()
}

func TestRateLimitSharedAcrossRouters(t *testing.T) {
	orig := defaultRateLimits
	defaultRateLimits = rateLimits{
		PostsPerHour:     1,
		MessagesPerMin:   10,
		TotalWritesDay:   100,
		ReadsPerMinute:   100,
		SearchPerMin:     100,
		FollowsPerMinute: 10,
	}
	defer func() { defaultRateLimits = orig }()

	database := openTestDB(t)
	defer database.Close()
	opts := testOptions()
	opts.Limiter = ratelimit.NewLimiter()

	server := httptest.NewServer(NewRouter(database, opts))
	token := signupForTest(t, server.URL, "admin@artizen.test", "Admin User")
	first := doReq(t, server.URL, token, http.MethodPost, "/api/posts", map[string]any{"content": "first"})
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected first post 201, got %d", first.StatusCode)
	}
	_ = first.Body.Close()
	server.Close()

	server = httptest.NewServer(NewRouter(database, opts))
	defer server.Close()

	second := doReq(t, server.URL, token, http.MethodPost, "/api/posts", map[string]any{"content": "second"})
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected second post 429 on the new router, got %d", second.StatusCode)
	}
	_ = second.Body.Close()
}

func TestReadsAreNotCountedAgainstPosts(t *testing.T) {
	server, database, token := setupTestServer(t)
	defer server.Close()
	defer database.Close()

	resp := doReq(t, server.URL, token, http.MethodGet, "/api/posts/all", nil)
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get("X-RateLimit-Limit") != "600" {
		t.Fatalf("read limit header = %q", resp.Header.Get("X-RateLimit-Limit"))
	}
	_ = resp.Body.Close()
}
