// Package feedcache caches viewer-independent feed pages. Any write that
// changes a post invalidates every cached page.
//
// Invalidation bumps a generation. A reader takes the generation before it
// queries the database and hands it back to Set, which drops the page when an
// invalidation happened in between.
package feedcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"artizen/internal/models"
)

type Cache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, key string) (models.FeedPage, bool, error)
	Set(ctx context.Context, key string, gen int64, page models.FeedPage) error
	Invalidate(ctx context.Context) error
}

// Key identifies a feed page request. before is the snapshot bound, zero when absent.
func Key(author string, page, limit int, before time.Time) string {
	bound := "-"
	if !before.IsZero() {
		bound = fmt.Sprintf("%d", before.UnixMilli())
	}
	return fmt.Sprintf("%s|%d|%d|%s", author, page, limit, bound)
}

// LRU is an in-process cache with per-entry expiry.
type LRU struct {
	mu      sync.Mutex
	gen     int64
	entries *expirable.LRU[string, models.FeedPage]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 256
	}
	return &LRU{entries: expirable.NewLRU[string, models.FeedPage](size, nil, ttl)}
}

func (c *LRU) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *LRU) Get(_ context.Context, key string) (models.FeedPage, bool, error) {
	page, ok := c.entries.Get(key)
	return page, ok, nil
}

func (c *LRU) Set(_ context.Context, key string, gen int64, page models.FeedPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.entries.Add(key, page)
	return nil
}

func (c *LRU) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries.Purge()
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Generation(context.Context) (int64, error) { return 0, nil }
func (Nop) Get(context.Context, string) (models.FeedPage, bool, error) {
	return models.FeedPage{}, false, nil
}
func (Nop) Set(context.Context, string, int64, models.FeedPage) error { return nil }
func (Nop) Invalidate(context.Context) error                           { return nil }
