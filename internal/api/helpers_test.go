package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"artizen/internal/auth"
	"artizen/internal/db"
)

const testSecret = "test-secret"

func testOptions() Options {
	return Options{
		Version: "test",
		Tokens:  auth.NewTokenManager(testSecret, time.Hour),
	}
}

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB, string) {
	return setupTestServerWithOptions(t, testOptions())
}

// setupTestServerWithOptions starts a router over a fresh database and returns
// a bearer token for admin@artizen.test.
func setupTestServerWithOptions(t *testing.T, opts Options) (*httptest.Server, *sql.DB, string) {
	t.Helper()
	database := openTestDB(t)
	srv := httptest.NewServer(NewRouter(database, opts))
	token := signupForTest(t, srv.URL, "admin@artizen.test", "Admin User")
	return srv, database, token
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "artizen-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return database
}

func signupForTest(t *testing.T, baseURL, email, name string) string {
	t.Helper()
	resp := doReq(t, baseURL, "", http.MethodPost, "/api/auth/signup", map[string]any{
		"fullName": name,
		"email":    email,
		"password": "secret123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s status = %d", email, resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp, &body)
	if body.Token == "" {
		t.Fatalf("signup %s returned empty token", email)
	}
	return body.Token
}

func doReq(t *testing.T, baseURL, token, method, path string, body any) *http.Response {
	t.Helper()
	return doReqWithHeaders(t, baseURL, token, method, path, body, nil)
}

func doReqWithHeaders(t *testing.T, baseURL, token, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal req: %v", err)
		}
	}
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		_ = resp.Body.Close()
		t.Fatalf("%s %s status = %d, want %d (%v)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}
