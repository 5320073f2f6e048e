package api

import (
	"net/http"
	"testing"

	"artizen/internal/models"
)

func TestSignupLoginAndMe(t *testing.T) {
	server, database, _ := setupTestServer(t)
	defer server.Close()
	defer database.Close()

	resp := doReq(t, server.URL, "", http.MethodPost, "/api/auth/signup", map[string]any{
		"fullName": "Someone Else",
		"email":    "Admin@Artizen.test",
		"password": "secret123",
	})
	expectStatus(t, resp, http.StatusConflict)
	_ = resp.Body.Close()

	resp = doReq(t, server.URL, "", http.MethodPost, "/api/auth/signup", map[string]any{
		"fullName": "Short",
		"email":    "short@artizen.test",
		"password": "123",
	})
	expectStatus(t, resp, http.StatusBadRequest)
	_ = resp.Body.Close()

	resp = doReq(t, server.URL, "", http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "admin@artizen.test",
		"password": "wrong-password",
	})
	expectStatus(t, resp, http.StatusUnauthorized)
	_ = resp.Body.Close()

	resp = doReq(t, server.URL, "", http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "admin@artizen.test",
		"password": "secret123",
	})
	expectStatus(t, resp, http.StatusOK)
	var login authResponse
	decodeJSON(t, resp, &login)

	resp = doReq(t, server.URL, login.Token, http.MethodGet, "/api/users/me", nil)
	expectStatus(t, resp, http.StatusOK)
	var me models.User
	decodeJSON(t, resp, &me)
	if me.Email != "admin@artizen.test" || me.FullName != "Admin User" {
		t.Fatalf("unexpected me: %+v", me)
	}
}

func TestAuthRequired(t *testing.T) {
	server, database, _ := setupTestServer(t)
	defer server.Close()
	defer database.Close()

	resp := doReq(t, server.URL, "", http.MethodGet, "/api/posts/all", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	_ = resp.Body.Close()

	resp = doReq(t, server.URL, "not-a-token", http.MethodGet, "/api/posts/all", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	_ = resp.Body.Close()

	resp = doReqWithHeaders(t, server.URL, "", http.MethodGet, "/api/chat/threads", nil,
		map[string]string{"X-User-Email": "admin@artizen.test"})
	expectStatus(t, resp, http.StatusUnauthorized)
	_ = resp.Body.Close()
}

func TestEmailHeaderIdentityWhenEnabled(t *testing.T) {
	opts := testOptions()
	opts.AllowEmailHeader = true
	server, database, _ := setupTestServerWithOptions(t, opts)
	defer server.Close()
	defer database.Close()

	resp := doReqWithHeaders(t, server.URL, "", http.MethodGet, "/api/chat/threads", nil,
		map[string]string{"X-User-Email": "admin@artizen.test"})
	expectStatus(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	resp = doReqWithHeaders(t, server.URL, "", http.MethodGet, "/api/chat/threads", nil,
		map[string]string{"X-User-Email": "nobody@artizen.test"})
	expectStatus(t, resp, http.StatusUnauthorized)
	_ = resp.Body.Close()
}

func TestProfileAndUserSearch(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	signupForTest(t, server.URL, "bea@artizen.test", "Beatrice Young")

	resp := doReq(t, server.URL, admin, http.MethodPut, "/api/users/profile", map[string]any{"bio": "hello"})
	expectStatus(t, resp, http.StatusOK)
	var profile models.Profile
	decodeJSON(t, resp, &profile)
	if profile.Bio != "hello" {
		t.Fatalf("bio not updated: %+v", profile)
	}

	resp = doReq(t, server.URL, admin, http.MethodGet, "/api/users/search?q=you", nil)
	expectStatus(t, resp, http.StatusOK)
	var users []models.User
	decodeJSON(t, resp, &users)
	if len(users) != 1 || users[0].Email != "bea@artizen.test" {
		t.Fatalf("search by surname prefix: %+v", users)
	}

	resp = doReq(t, server.URL, admin, http.MethodGet, "/api/users/profile?email=ghost@artizen.test", nil)
	expectStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()
}
