package api

import (
	"net/http"
	"testing"

	"artizen/internal/models"
)

func unreadCount(t *testing.T, baseURL, token string) int {
	t.Helper()
	resp := doReq(t, baseURL, token, http.MethodGet, "/api/notifications/unread", nil)
	expectStatus(t, resp, http.StatusOK)
	var body struct {
		Count int `json:"count"`
	}
	decodeJSON(t, resp, &body)
	return body.Count
}

func TestNotificationsLifecycle(t *testing.T) {
	server, database, owner := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	bea := signupForTest(t, server.URL, "bea@artizen.test", "Bea")
	post := createPostForTest(t, server.URL, owner, "notify me")

	resp := doReq(t, server.URL, bea, http.MethodPost, "/api/posts/like/"+post.ID, nil)
	expectStatus(t, resp, http.StatusOK)
	_ = resp.Body.Close()
	resp = doReq(t, server.URL, bea, http.MethodPost, "/api/posts/comment/"+post.ID, map[string]any{"content": "nice"})
	expectStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()
	resp = doReq(t, server.URL, bea, http.MethodPost, "/api/follows/toggle", map[string]any{"email": "admin@artizen.test"})
	expectStatus(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	// Liking your own post does not notify.
	resp = doReq(t, server.URL, owner, http.MethodPost, "/api/posts/like/"+post.ID, nil)
	expectStatus(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	if n := unreadCount(t, server.URL, owner); n != 3 {
		t.Fatalf("unread = %d, want 3", n)
	}

	resp = doReq(t, server.URL, owner, http.MethodGet, "/api/notifications", nil)
	expectStatus(t, resp, http.StatusOK)
	var items []models.Notification
	decodeJSON(t, resp, &items)
	if len(items) != 3 || items[0].Type != models.NotificationFollow || items[0].Read {
		t.Fatalf("unexpected notifications: %+v", items)
	}
	if items[0].SenderName != "Bea" {
		t.Fatalf("sender name = %q", items[0].SenderName)
	}

	if n := unreadCount(t, server.URL, owner); n != 0 {
		t.Fatalf("listing should mark read, unread = %d", n)
	}

	resp = doReq(t, server.URL, owner, http.MethodDelete, "/api/notifications/clear", nil)
	expectStatus(t, resp, http.StatusOK)
	var cleared struct {
		Removed int64 `json:"removed"`
	}
	decodeJSON(t, resp, &cleared)
	if cleared.Removed != 3 {
		t.Fatalf("removed = %d", cleared.Removed)
	}
}

func TestMessageCreatesNotificationForRecipient(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	bea := signupForTest(t, server.URL, "bea@artizen.test", "Bea")
	thread := openThreadForTest(t, server.URL, admin, "bea@artizen.test")

	if _, status := sendForTest(t, server.URL, admin, thread.ID, "hey there", ""); status != http.StatusCreated {
		t.Fatalf("send status = %d", status)
	}
	if n := unreadCount(t, server.URL, bea); n != 1 {
		t.Fatalf("recipient unread = %d", n)
	}
	if n := unreadCount(t, server.URL, admin); n != 0 {
		t.Fatalf("sender unread = %d", n)
	}
}

func TestFollowEndpoints(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	signupForTest(t, server.URL, "bea@artizen.test", "Bea")

	var state followingResponse
	resp := doReq(t, server.URL, admin, http.MethodPost, "/api/follows/toggle", map[string]any{"email": "bea@artizen.test"})
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &state)
	if !state.Following {
		t.Fatalf("first toggle should follow")
	}

	resp = doReq(t, server.URL, admin, http.MethodGet, "/api/follows/check?email=bea@artizen.test", nil)
	expectStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &state)
	if !state.Following {
		t.Fatalf("check should report following")
	}

	resp = doReq(t, server.URL, admin, http.MethodGet, "/api/follows/counts?email=bea@artizen.test", nil)
	expectStatus(t, resp, http.StatusOK)
	var counts models.FollowCounts
	decodeJSON(t, resp, &counts)
	if counts.Followers != 1 || counts.Following != 0 {
		t.Fatalf("counts = %+v", counts)
	}

	resp = doReq(t, server.URL, admin, http.MethodPost, "/api/follows/toggle", map[string]any{"email": "admin@artizen.test"})
	expectStatus(t, resp, http.StatusBadRequest)
	_ = resp.Body.Close()
}
