// Package chat keeps the message list of one open thread in sync with the
// server, merging optimistic sends with pushed and paged messages.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"artizen/internal/models"
)

const DefaultTake = 30

type Fetcher interface {
	ListMessages(ctx context.Context, threadID string, take int, cursor string) ([]models.Message, error)
}

// Bubble is a message as shown in the thread. Pending bubbles have not been
// confirmed by the server yet.
type Bubble struct {
	models.Message
	Pending bool `json:"pending,omitempty"`
}

type MergeResult int

const (
	MergeIgnored MergeResult = iota
	MergeReplaced
	MergeDuplicate
	MergeAppended
)

func (r MergeResult) String() string {
	switch r {
	case MergeReplaced:
		return "replaced"
	case MergeDuplicate:
		return "duplicate"
	case MergeAppended:
		return "appended"
	default:
		return "ignored"
	}
}

type ThreadPager struct {
	fetcher  Fetcher
	threadID string
	me       string
	take     int
	now      func() time.Time

	mu          sync.Mutex
	bubbles     []Bubble
	hasMore     bool
	loadingMore bool
}

func NewThreadPager(f Fetcher, threadID, me string, take int) *ThreadPager {
	if take <= 0 {
		take = DefaultTake
	}
	return &ThreadPager{
		fetcher:  f,
		threadID: threadID,
		me:       strings.ToLower(strings.TrimSpace(me)),
		take:     take,
		now:      time.Now,
	}
}

func (p *ThreadPager) ThreadID() string { return p.threadID }

// LoadLatest replaces the list with the newest page. Pending bubbles the page
// does not already confirm stay at the end.
func (p *ThreadPager) LoadLatest(ctx context.Context) error {
	msgs, err := p.fetcher.ListMessages(ctx, p.threadID, p.take, "")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	confirmed := make(map[string]struct{}, len(msgs))
	next := make([]Bubble, 0, len(msgs)+len(p.bubbles))
	for _, m := range msgs {
		if m.ClientID != "" {
			confirmed[m.ClientID] = struct{}{}
		}
		next = append(next, Bubble{Message: m})
	}
	for _, b := range p.bubbles {
		if !b.Pending {
			continue
		}
		if _, ok := confirmed[b.ClientID]; ok {
			continue
		}
		next = append(next, b)
	}
	p.bubbles = next
	p.hasMore = len(msgs) == p.take
	return nil
}

// LoadOlder prepends the page preceding the oldest loaded message. It reports
// false without a request while another LoadOlder runs, when the history is
// exhausted, or before anything has been loaded.
func (p *ThreadPager) LoadOlder(ctx context.Context) (bool, error) {
	p.mu.Lock()
	cursor := p.oldestConfirmedLocked()
	if p.loadingMore || !p.hasMore || cursor == "" {
		p.mu.Unlock()
		return false, nil
	}
	p.loadingMore = true
	p.mu.Unlock()

	msgs, err := p.fetcher.ListMessages(ctx, p.threadID, p.take, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadingMore = false
	if err != nil {
		return true, err
	}
	seen := make(map[string]struct{}, len(p.bubbles))
	for _, b := range p.bubbles {
		seen[b.ID] = struct{}{}
	}
	older := make([]Bubble, 0, len(msgs)+len(p.bubbles))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		older = append(older, Bubble{Message: m})
	}
	p.bubbles = append(older, p.bubbles...)
	p.hasMore = len(msgs) == p.take
	return true, nil
}

func (p *ThreadPager) oldestConfirmedLocked() string {
	for _, b := range p.bubbles {
		if !b.Pending {
			return b.ID
		}
	}
	return ""
}

// AddOptimistic appends a pending bubble for text with a fresh idempotency key.
func (p *ThreadPager) AddOptimistic(text string) Bubble {
	clientID := uuid.NewString()
	b := Bubble{
		Message: models.Message{
			ID:          "pending:" + clientID,
			ThreadID:    p.threadID,
			SenderEmail: p.me,
			Text:        text,
			ClientID:    clientID,
			CreatedAt:   p.now().UTC(),
		},
		Pending: true,
	}
	p.mu.Lock()
	p.bubbles = append(p.bubbles, b)
	p.mu.Unlock()
	return b
}

// ApplyPush merges a server message into the list: first by replacing the
// matching pending bubble, then by dropping it as a duplicate id, otherwise by
// appending it. Messages for other threads are ignored.
func (p *ThreadPager) ApplyPush(msg models.Message) MergeResult {
	if msg.ThreadID != "" && msg.ThreadID != p.threadID {
		return MergeIgnored
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := p.pendingMatchLocked(msg); i >= 0 {
		if p.indexOfLocked(msg.ID) >= 0 {
			p.bubbles = append(p.bubbles[:i], p.bubbles[i+1:]...)
			return MergeDuplicate
		}
		p.bubbles[i] = Bubble{Message: msg}
		return MergeReplaced
	}
	if p.indexOfLocked(msg.ID) >= 0 {
		return MergeDuplicate
	}
	p.bubbles = append(p.bubbles, Bubble{Message: msg})
	return MergeAppended
}

func (p *ThreadPager) pendingMatchLocked(msg models.Message) int {
	for i, b := range p.bubbles {
		if !b.Pending {
			continue
		}
		if msg.ClientID != "" {
			if b.ClientID == msg.ClientID {
				return i
			}
			continue
		}
		if strings.EqualFold(b.SenderEmail, msg.SenderEmail) && b.Text == msg.Text {
			return i
		}
	}
	return -1
}

func (p *ThreadPager) indexOfLocked(id string) int {
	for i, b := range p.bubbles {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// DropOptimistic removes a pending bubble after its send failed.
func (p *ThreadPager) DropOptimistic(clientID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range p.bubbles {
		if b.Pending && b.ClientID == clientID {
			p.bubbles = append(p.bubbles[:i], p.bubbles[i+1:]...)
			return true
		}
	}
	return false
}

func (p *ThreadPager) Messages() []Bubble {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Bubble, len(p.bubbles))
	copy(out, p.bubbles)
	return out
}

func (p *ThreadPager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *ThreadPager) LoadingMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingMore
}
