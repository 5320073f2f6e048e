package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/posts/all", "GET", 200, 15*time.Millisecond)
	m.MessageSent()
	m.FeedCacheLookup(true)
	m.JobRun("retention", errors.New("boom"))
	m.WSConnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`artizen_http_requests_total{method="GET",route="/api/posts/all",status="200"} 1`,
		`artizen_chat_messages_sent_total 1`,
		`artizen_feed_cache_lookups_total{result="hit"} 1`,
		`artizen_job_runs_total{job="retention",outcome="error"} 1`,
		`artizen_ws_connections 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.MessageSent()
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "artizen_chat_messages_sent_total 1") {
		t.Fatalf("second registry observed first registry's counter")
	}
}
