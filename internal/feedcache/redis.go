package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"artizen/internal/models"
)

const (
	redisGenerationKey = "feed:gen"
	redisPagePrefix    = "feed:page:"
)

// Redis shares cached pages between server instances. Invalidation bumps a
// generation counter so stale pages become unreachable and expire on their own.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedis(client, ttl), nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, redisGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *Redis) pageKey(gen int64, key string) string {
	return fmt.Sprintf("%s%d:%s", redisPagePrefix, gen, key)
}

func (c *Redis) Get(ctx context.Context, key string) (models.FeedPage, bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		return models.FeedPage{}, false, fmt.Errorf("read feed generation: %w", err)
	}
	raw, err := c.client.Get(ctx, c.pageKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.FeedPage{}, false, nil
	}
	if err != nil {
		return models.FeedPage{}, false, fmt.Errorf("read feed page: %w", err)
	}
	var page models.FeedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return models.FeedPage{}, false, fmt.Errorf("decode feed page: %w", err)
	}
	return page, true, nil
}

// Set files page under gen. A page read before an invalidation lands under an
// old generation that Get never reads again.
func (c *Redis) Set(ctx context.Context, key string, gen int64, page models.FeedPage) error {
	current, err := c.Generation(ctx)
	if err != nil {
		return fmt.Errorf("read feed generation: %w", err)
	}
	if current != gen {
		return nil
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.pageKey(gen, key), raw, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, redisGenerationKey).Err()
}
