package readstate

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"artizen/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func thread(id, sender string, at time.Time) models.Thread {
	return models.Thread{
		ID:          id,
		LastMessage: &models.Message{ID: id + "-last", ThreadID: id, SenderEmail: sender, CreatedAt: at},
		UpdatedAt:   at,
	}
}

func TestIsUnread(t *testing.T) {
	th := thread("t1", "bob@artizen.test", t0)
	cases := []struct {
		name   string
		me     string
		marker time.Time
		want   bool
	}{
		{"no marker", "ada@artizen.test", time.Time{}, true},
		{"marker before", "ada@artizen.test", t0.Add(-time.Second), true},
		{"marker equal", "ada@artizen.test", t0, false},
		{"own message", "BOB@artizen.test", time.Time{}, false},
	}
	for _, tc := range cases {
		if got := IsUnread(th, tc.me, tc.marker); got != tc.want {
			t.Fatalf("%s: got %v", tc.name, got)
		}
	}
	if IsUnread(models.Thread{ID: "empty"}, "ada@artizen.test", time.Time{}) {
		t.Fatalf("thread without messages is never unread")
	}
}

func TestReducerPollPushOpen(t *testing.T) {
	s := NewThreadListState("ada@artizen.test", NewMemoryStore())

	snap, err := s.Apply(PollTick{Threads: []models.Thread{
		thread("t2", "bob@artizen.test", t0),
		thread("t1", "cy@artizen.test", t0.Add(-time.Minute)),
		thread("t3", "ada@artizen.test", t0.Add(-2*time.Minute)),
	}})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !reflect.DeepEqual(snap.Unread, []string{"t1", "t2"}) || !snap.AnyUnread {
		t.Fatalf("unread after poll = %v", snap.Unread)
	}

	if snap, err = s.Apply(ThreadOpened{ThreadID: "t1", At: t0}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !reflect.DeepEqual(snap.Unread, []string{"t2"}) {
		t.Fatalf("unread after open = %v", snap.Unread)
	}

	push := models.Message{ID: "m9", ThreadID: "t3", SenderEmail: "dan@artizen.test", CreatedAt: t0.Add(time.Minute)}
	if snap, err = s.Apply(PushMessage{Message: push}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if !reflect.DeepEqual(snap.Unread, []string{"t2", "t3"}) {
		t.Fatalf("unread after push = %v", snap.Unread)
	}
	if snap.Threads[0].ID != "t3" {
		t.Fatalf("pushed thread should move to the top, got %s", snap.Threads[0].ID)
	}

	stalePush := models.Message{ID: "m10", ThreadID: "t-new", SenderEmail: "eve@artizen.test", CreatedAt: t0}
	if snap, _ = s.Apply(PushMessage{Message: stalePush}); !snap.Stale {
		t.Fatalf("push for unknown thread should mark state stale")
	}
	if snap, _ = s.Apply(PollTick{}); snap.Stale || snap.AnyUnread {
		t.Fatalf("poll should clear stale state: %+v", snap)
	}
}

func TestOlderPushDoesNotRegressLastMessage(t *testing.T) {
	s := NewThreadListState("ada@artizen.test", NewMemoryStore())
	if _, err := s.Apply(PollTick{Threads: []models.Thread{thread("t1", "bob@artizen.test", t0)}}); err != nil {
		t.Fatalf("poll: %v", err)
	}
	old := models.Message{ID: "old", ThreadID: "t1", SenderEmail: "bob@artizen.test", CreatedAt: t0.Add(-time.Hour)}
	snap, err := s.Apply(PushMessage{Message: old})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if snap.Threads[0].LastMessage.ID != "t1-last" {
		t.Fatalf("older push replaced last message")
	}
}

func TestMarkerNeverMovesBackwards(t *testing.T) {
	store := NewMemoryStore()
	s := NewThreadListState("ada@artizen.test", store)
	if _, err := s.Apply(ThreadOpened{ThreadID: "t1", At: t0}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Apply(ThreadOpened{ThreadID: "t1", At: t0.Add(-time.Hour)}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got, _ := store.Get("t1"); !got.Equal(t0) {
		t.Fatalf("marker moved backwards to %v", got)
	}
}

func TestPebbleStorePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "readstate")
	store, err := OpenPebble(dir, "ada@artizen.test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got, err := store.Get("t1"); err != nil || !got.IsZero() {
		t.Fatalf("missing marker = %v, %v", got, err)
	}
	if err := store.Set("t1", t0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = OpenPebble(dir, "ada@artizen.test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if got, err := store.Get("t1"); err != nil || !got.Equal(t0) {
		t.Fatalf("persisted marker = %v, %v", got, err)
	}

	other := NewThreadListState("ada@artizen.test", store)
	snap, err := other.Apply(PollTick{Threads: []models.Thread{thread("t1", "bob@artizen.test", t0)}})
	if err != nil || snap.AnyUnread {
		t.Fatalf("persisted marker should mark t1 read: %+v %v", snap, err)
	}
}
