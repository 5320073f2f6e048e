// Package readstate tracks which chat threads have unread messages on this device.
package readstate

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Store holds the per-thread read marker. A missing marker reads as the zero time.
type Store interface {
	Get(threadID string) (time.Time, error)
	Set(threadID string, at time.Time) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	markers map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: map[string]time.Time{}}
}

func (s *MemoryStore) Get(threadID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markers[threadID], nil
}

func (s *MemoryStore) Set(threadID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[threadID] = at
	return nil
}

// PebbleStore persists markers in a local pebble database, keyed per user so
// several accounts can share one directory. The database is opened only for
// the duration of each load or write, so several CLI processes (a running
// watch and a one-shot history) can use the same directory.
type PebbleStore struct {
	dir      string
	prefix   string
	lockWait time.Duration
	maxAge   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	markers  map[string]time.Time
	loadedAt time.Time
}

const (
	// DefaultLockWait bounds how long an operation waits for another process
	// to release the directory.
	DefaultLockWait = 3 * time.Second
	// DefaultMaxAge is how long loaded markers are reused before Get reloads
	// them to pick up writes from other processes.
	DefaultMaxAge = time.Second
)

// OpenPebble loads the markers of user from dir, creating the database when missing.
func OpenPebble(dir, user string) (*PebbleStore, error) {
	s := &PebbleStore{
		dir:      dir,
		prefix:   "read/" + user + "/",
		lockWait: DefaultLockWait,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// withDB opens the database, runs fn, and closes it again. An open that
// fails because another process holds the directory is retried until lockWait.
func (s *PebbleStore) withDB(fn func(db *pebble.DB) error) error {
	deadline := s.now().Add(s.lockWait)
	for {
		db, err := pebble.Open(s.dir, &pebble.Options{})
		if err == nil {
			ferr := fn(db)
			if cerr := db.Close(); ferr == nil {
				ferr = cerr
			}
			return ferr
		}
		if !s.now().Before(deadline) {
			return fmt.Errorf("open read state: %w", err)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func (s *PebbleStore) loadLocked() error {
	markers := map[string]time.Time{}
	err := s.withDB(func(db *pebble.DB) error {
		iter, err := db.NewIter(&pebble.IterOptions{
			LowerBound: []byte(s.prefix),
			UpperBound: prefixEnd(s.prefix),
		})
		if err != nil {
			return err
		}
		for iter.First(); iter.Valid(); iter.Next() {
			threadID := string(iter.Key()[len(s.prefix):])
			at, err := decodeMarker(threadID, iter.Value())
			if err != nil {
				_ = iter.Close()
				return err
			}
			markers[threadID] = at
		}
		return iter.Close()
	})
	if err != nil {
		return err
	}
	s.markers = markers
	s.loadedAt = s.now()
	return nil
}

func (s *PebbleStore) Get(threadID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers == nil || s.now().Sub(s.loadedAt) >= s.maxAge {
		if err := s.loadLocked(); err != nil {
			return time.Time{}, err
		}
	}
	return s.markers[threadID], nil
}

func (s *PebbleStore) Set(threadID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(at.UnixMilli()))
	err := s.withDB(func(db *pebble.DB) error {
		return db.Set([]byte(s.prefix+threadID), buf[:], pebble.Sync)
	})
	if err != nil {
		return err
	}
	if s.markers != nil {
		s.markers[threadID] = time.UnixMilli(at.UnixMilli()).UTC()
	}
	return nil
}

// Close releases nothing; the directory is never held between operations.
func (s *PebbleStore) Close() error {
	return nil
}

func decodeMarker(threadID string, v []byte) (time.Time, error) {
	if len(v) != 8 {
		return time.Time{}, fmt.Errorf("read marker %s: bad value length %d", threadID, len(v))
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(v))).UTC(), nil
}

// prefixEnd returns the smallest key greater than every key starting with prefix.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
