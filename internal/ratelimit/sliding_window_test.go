package ratelimit

import (
	"testing"
	"time"
)

func TestAllowEnforcesWindow(t *testing.T) {
	l := NewLimiter()
	rule := Rule{Name: "posts", Limit: 2, Window: time.Minute}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if r := l.Allow("ada", rule, now); !r.Allowed || r.Remaining != 1 {
		t.Fatalf("first: %+v", r)
	}
	if r := l.Allow("ada", rule, now.Add(10*time.Second)); !r.Allowed || r.Remaining != 0 {
		t.Fatalf("second: %+v", r)
	}
	denied := l.Allow("ada", rule, now.Add(20*time.Second))
	if denied.Allowed {
		t.Fatalf("third call should be denied")
	}
	if !denied.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("reset at = %v", denied.ResetAt)
	}
	if r := l.Allow("bob", rule, now.Add(20*time.Second)); !r.Allowed {
		t.Fatalf("other subject must have its own bucket")
	}
	if r := l.Allow("ada", rule, now.Add(61*time.Second)); !r.Allowed {
		t.Fatalf("expected allowance after oldest event left the window")
	}
}

func TestZeroLimitAlwaysAllows(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 5; i++ {
		if r := l.Allow("x", Rule{Name: "open"}, time.Now()); !r.Allowed {
			t.Fatalf("zero limit must allow")
		}
	}
}

func TestSweepRemovesIdleBuckets(t *testing.T) {
	l := NewLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Allow("ada", Rule{Name: "reads", Limit: 10, Window: time.Minute}, now)
	l.Allow("bob", Rule{Name: "writes", Limit: 10, Window: time.Hour}, now)

	if removed := l.Sweep(now.Add(2 * time.Minute)); removed != 1 {
		t.Fatalf("expected 1 bucket swept, got %d", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 bucket left, got %d", l.Len())
	}
}
