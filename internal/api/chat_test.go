package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"artizen/internal/models"
	"artizen/internal/realtime"
)

func openThreadForTest(t *testing.T, baseURL, token, other string) models.Thread {
	t.Helper()
	resp := doReq(t, baseURL, token, http.MethodPost, "/api/chat/threads", map[string]any{"email": other})
	expectStatus(t, resp, http.StatusOK)
	var thread models.Thread
	decodeJSON(t, resp, &thread)
	return thread
}

func sendForTest(t *testing.T, baseURL, token, threadID, text, clientID string) (models.Message, int) {
	t.Helper()
	resp := doReq(t, baseURL, token, http.MethodPost, "/api/chat/messages", map[string]any{
		"threadId": threadID,
		"text":     text,
		"clientId": clientID,
	})
	status := resp.StatusCode
	var msg models.Message
	decodeJSON(t, resp, &msg)
	return msg, status
}

func listMessagesForTest(t *testing.T, baseURL, token, threadID, query string) []models.Message {
	t.Helper()
	resp := doReq(t, baseURL, token, http.MethodGet, "/api/chat/threads/"+threadID+"/messages"+query, nil)
	expectStatus(t, resp, http.StatusOK)
	var out []models.Message
	decodeJSON(t, resp, &out)
	return out
}

func TestThreadOpenIsIdempotent(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	bea := signupForTest(t, server.URL, "bea@artizen.test", "Bea")

	first := openThreadForTest(t, server.URL, admin, "bea@artizen.test")
	second := openThreadForTest(t, server.URL, bea, "admin@artizen.test")
	if first.ID != second.ID {
		t.Fatalf("expected one thread per pair, got %s and %s", first.ID, second.ID)
	}
	if first.OtherUser.Email != "bea@artizen.test" || second.OtherUser.Email != "admin@artizen.test" {
		t.Fatalf("otherUser not resolved per viewer: %+v / %+v", first.OtherUser, second.OtherUser)
	}

	resp := doReq(t, server.URL, admin, http.MethodPost, "/api/chat/threads", map[string]any{"email": "admin@artizen.test"})
	expectStatus(t, resp, http.StatusBadRequest)
	_ = resp.Body.Close()
	resp = doReq(t, server.URL, admin, http.MethodPost, "/api/chat/threads", map[string]any{"email": "ghost@artizen.test"})
	expectStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()
}

func TestMessagesPageOlderWithCursor(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	signupForTest(t, server.URL, "bea@artizen.test", "Bea")
	thread := openThreadForTest(t, server.URL, admin, "bea@artizen.test")

	for i := 0; i < 7; i++ {
		if _, status := sendForTest(t, server.URL, admin, thread.ID, fmt.Sprintf("m%d", i), ""); status != http.StatusCreated {
			t.Fatalf("send m%d status = %d", i, status)
		}
	}

	latest := listMessagesForTest(t, server.URL, admin, thread.ID, "?take=3")
	if got := messageTexts(latest); got != "m4,m5,m6" {
		t.Fatalf("latest page = %s", got)
	}
	older := listMessagesForTest(t, server.URL, admin, thread.ID, "?take=3&cursor="+latest[0].ID)
	if got := messageTexts(older); got != "m1,m2,m3" {
		t.Fatalf("older page = %s", got)
	}
	oldest := listMessagesForTest(t, server.URL, admin, thread.ID, "?take=3&cursor="+older[0].ID)
	if got := messageTexts(oldest); got != "m0" {
		t.Fatalf("oldest page = %s", got)
	}

	resp := doReq(t, server.URL, admin, http.MethodGet, "/api/chat/threads/"+thread.ID+"/messages?cursor=nope", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	_ = resp.Body.Close()
}

func TestChatAccessIsLimitedToParticipants(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	signupForTest(t, server.URL, "bea@artizen.test", "Bea")
	eve := signupForTest(t, server.URL, "eve@artizen.test", "Eve")
	thread := openThreadForTest(t, server.URL, admin, "bea@artizen.test")

	resp := doReq(t, server.URL, eve, http.MethodGet, "/api/chat/threads/"+thread.ID+"/messages", nil)
	expectStatus(t, resp, http.StatusForbidden)
	_ = resp.Body.Close()

	if _, status := sendForTest(t, server.URL, eve, thread.ID, "let me in", ""); status != http.StatusForbidden {
		t.Fatalf("outsider send status = %d", status)
	}
	if _, status := sendForTest(t, server.URL, admin, "missing", "hello", ""); status != http.StatusNotFound {
		t.Fatalf("unknown thread send status = %d", status)
	}
}

func TestSendMessageIsIdempotentOnClientID(t *testing.T) {
	server, database, admin := setupTestServer(t)
	defer server.Close()
	defer database.Close()
	signupForTest(t, server.URL, "bea@artizen.test", "Bea")
	thread := openThreadForTest(t, server.URL, admin, "bea@artizen.test")

	first, status := sendForTest(t, server.URL, admin, thread.ID, "hello", "c-1")
	if status != http.StatusCreated || first.ClientID != "c-1" {
		t.Fatalf("first send: status=%d msg=%+v", status, first)
	}
	retry, status := sendForTest(t, server.URL, admin, thread.ID, "hello", "c-1")
	if status != http.StatusOK || retry.ID != first.ID {
		t.Fatalf("retry should return stored message: status=%d id=%s", status, retry.ID)
	}
	if msgs := listMessagesForTest(t, server.URL, admin, thread.ID, ""); len(msgs) != 1 {
		t.Fatalf("expected one stored message, got %d", len(msgs))
	}

	resp := doReq(t, server.URL, admin, http.MethodGet, "/api/chat/threads", nil)
	expectStatus(t, resp, http.StatusOK)
	var threads []models.Thread
	decodeJSON(t, resp, &threads)
	if len(threads) != 1 || threads[0].LastMessage == nil || threads[0].LastMessage.ID != first.ID {
		t.Fatalf("thread list should carry the last message: %+v", threads)
	}
}

func TestSendMessageBroadcastsOverWebSocket(t *testing.T) {
	database := openTestDB(t)
	defer database.Close()
	hub := realtime.NewHub(realtime.HubOptions{Authorize: ParticipantAuthorizer(database)})
	defer hub.Close()
	opts := testOptions()
	opts.Hub = hub
	server := httptest.NewServer(NewRouter(database, opts))
	defer server.Close()

	admin := signupForTest(t, server.URL, "admin@artizen.test", "Admin User")
	bea := signupForTest(t, server.URL, "bea@artizen.test", "Bea")
	thread := openThreadForTest(t, server.URL, admin, "bea@artizen.test")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?token=" + bea
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent, status := sendForTest(t, server.URL, admin, thread.ID, "ping", "")
	if status != http.StatusCreated {
		t.Fatalf("send status = %d", status)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev realtime.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	var got models.Message
	if err := json.Unmarshal(ev.Data, &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if ev.Event != realtime.EventMessageNewGlobal || got.ID != sent.ID {
		t.Fatalf("unexpected event %s %+v", ev.Event, got)
	}
}

func messageTexts(msgs []models.Message) string {
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	return strings.Join(texts, ",")
}
