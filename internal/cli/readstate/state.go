package readstate

import (
	"sort"
	"strings"
	"sync"
	"time"

	"artizen/internal/models"
)

// IsUnread reports whether t's last message came from someone else after marker.
func IsUnread(t models.Thread, me string, marker time.Time) bool {
	if t.LastMessage == nil {
		return false
	}
	if strings.EqualFold(t.LastMessage.SenderEmail, me) {
		return false
	}
	return t.LastMessage.CreatedAt.After(marker)
}

type Event interface {
	isEvent()
}

// PollTick carries a fresh thread list from the periodic poll.
type PollTick struct {
	Threads []models.Thread
}

// PushMessage carries a message received over the socket.
type PushMessage struct {
	Message models.Message
}

// ThreadOpened records that the user viewed a thread at At.
type ThreadOpened struct {
	ThreadID string
	At       time.Time
}

func (PollTick) isEvent()     {}
func (PushMessage) isEvent()  {}
func (ThreadOpened) isEvent() {}

type ThreadView struct {
	models.Thread
	Unread bool `json:"unread"`
}

type Snapshot struct {
	Threads   []ThreadView `json:"threads"`
	Unread    []string     `json:"unread"`
	AnyUnread bool         `json:"anyUnread"`
	// Stale means a push arrived for a thread the last poll did not list.
	Stale bool `json:"stale"`
}

// ThreadListState reduces poll, push, and open events into the thread list
// with unread flags.
type ThreadListState struct {
	me    string
	store Store
	now   func() time.Time

	mu      sync.Mutex
	threads []models.Thread
	stale   bool
}

func NewThreadListState(me string, store Store) *ThreadListState {
	return &ThreadListState{
		me:    strings.ToLower(strings.TrimSpace(me)),
		store: store,
		now:   time.Now,
	}
}

func (s *ThreadListState) Apply(ev Event) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case PollTick:
		s.threads = append([]models.Thread(nil), e.Threads...)
		s.stale = false
	case PushMessage:
		s.applyPushLocked(e.Message)
	case ThreadOpened:
		at := e.At
		if at.IsZero() {
			at = s.now()
		}
		current, err := s.store.Get(e.ThreadID)
		if err != nil {
			return Snapshot{}, err
		}
		if at.After(current) {
			if err := s.store.Set(e.ThreadID, at); err != nil {
				return Snapshot{}, err
			}
		}
	}
	return s.snapshotLocked()
}

func (s *ThreadListState) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ThreadListState) applyPushLocked(msg models.Message) {
	for i := range s.threads {
		t := &s.threads[i]
		if t.ID != msg.ThreadID {
			continue
		}
		if t.LastMessage == nil || msg.CreatedAt.After(t.LastMessage.CreatedAt) {
			m := msg
			t.LastMessage = &m
			t.UpdatedAt = msg.CreatedAt
		}
		sort.SliceStable(s.threads, func(a, b int) bool {
			return s.threads[a].UpdatedAt.After(s.threads[b].UpdatedAt)
		})
		return
	}
	s.stale = true
}

func (s *ThreadListState) snapshotLocked() (Snapshot, error) {
	snap := Snapshot{
		Threads: make([]ThreadView, 0, len(s.threads)),
		Unread:  []string{},
		Stale:   s.stale,
	}
	for _, t := range s.threads {
		marker, err := s.store.Get(t.ID)
		if err != nil {
			return Snapshot{}, err
		}
		unread := IsUnread(t, s.me, marker)
		snap.Threads = append(snap.Threads, ThreadView{Thread: t, Unread: unread})
		if unread {
			snap.Unread = append(snap.Unread, t.ID)
		}
	}
	sort.Strings(snap.Unread)
	snap.AnyUnread = len(snap.Unread) > 0
	return snap, nil
}
