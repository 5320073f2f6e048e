package ratelimit

import (
	"sync"
	"time"
)

// Rule bounds how many events a key may record within Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter is an in-memory sliding-window log keyed by caller and rule name.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	window time.Duration
	events []time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		buckets: map[string]*bucket{},
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (l *Limiter) Allow(subject string, rule Rule, now time.Time) Result {
	if rule.Limit <= 0 {
		return Result{Allowed: true}
	}
	key := subject + ":" + rule.Name

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil {
		b = &bucket{window: rule.Window}
		l.buckets[key] = b
	}
	b.window = rule.Window
	b.trim(now)

	result := Result{
		Allowed: len(b.events) < rule.Limit,
		Limit:   rule.Limit,
	}
	if result.Allowed {
		b.events = append(b.events, now)
		result.Remaining = rule.Limit - len(b.events)
	}
	result.ResetAt = b.events[0].Add(rule.Window)
	return result
}

// Sweep drops buckets with no events inside their window and returns how many were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		b.trim(now)
		if len(b.events) == 0 {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (b *bucket) trim(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.events[:0]
	for _, ts := range b.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.events = kept
}
