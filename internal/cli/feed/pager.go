// Package feed pages through the post feed for interactive clients.
package feed

import (
	"context"
	"sync"
	"time"

	"artizen/internal/models"
)

const DefaultLimit = 10

type Fetcher interface {
	FetchFeedPage(ctx context.Context, page, limit int, snapshot time.Time) (models.FeedPage, error)
}

// Pager accumulates feed pages. All pages of one session share the snapshot
// taken when the first page was requested.
type Pager struct {
	fetcher Fetcher
	limit   int
	now     func() time.Time

	mu       sync.Mutex
	posts    []models.Post
	nextPage int
	hasMore  bool
	loading  bool
	snapshot time.Time
	err      error
}

func NewPager(f Fetcher, limit int) *Pager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pager{
		fetcher:  f,
		limit:    limit,
		now:      time.Now,
		nextPage: 1,
		hasMore:  true,
	}
}

// LoadMore fetches the next page. It reports false without making a request
// while another load is running or once the feed is exhausted.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return false, nil
	}
	if p.nextPage == 1 {
		p.snapshot = p.now()
	}
	page, snapshot := p.nextPage, p.snapshot
	p.loading = true
	p.mu.Unlock()

	return true, p.load(ctx, page, snapshot)
}

// Refresh drops the accumulated list and loads page 1 under a new snapshot.
func (p *Pager) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil
	}
	p.snapshot = p.now()
	p.nextPage = 1
	p.hasMore = true
	snapshot := p.snapshot
	p.loading = true
	p.mu.Unlock()

	return p.load(ctx, 1, snapshot)
}

func (p *Pager) load(ctx context.Context, page int, snapshot time.Time) error {
	result, err := p.fetcher.FetchFeedPage(ctx, page, p.limit, snapshot)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	p.err = err
	if err != nil {
		if page == 1 {
			p.posts = nil
		}
		return err
	}

	if page == 1 {
		p.posts = nil
	}
	seen := make(map[string]struct{}, len(p.posts))
	for _, post := range p.posts {
		seen[post.ID] = struct{}{}
	}
	for _, post := range result.Posts {
		if _, dup := seen[post.ID]; dup {
			continue
		}
		p.posts = append(p.posts, post)
	}
	p.hasMore = result.HasMore
	p.nextPage = page + 1
	return nil
}

func (p *Pager) Posts() []models.Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Post, len(p.posts))
	copy(out, p.posts)
	return out
}

func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Err returns the error from the most recent load, if any.
func (p *Pager) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Prepend puts a freshly created post at the top.
func (p *Pager) Prepend(post models.Post) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append([]models.Post{post}, p.posts...)
}

// Replace swaps in an updated copy of a post, e.g. after a like or comment.
func (p *Pager) Replace(post models.Post) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.posts {
		if p.posts[i].ID == post.ID {
			p.posts[i] = post
			return true
		}
	}
	return false
}

func (p *Pager) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.posts {
		if p.posts[i].ID == id {
			p.posts = append(p.posts[:i], p.posts[i+1:]...)
			return true
		}
	}
	return false
}
