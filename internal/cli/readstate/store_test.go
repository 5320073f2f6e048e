package readstate

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
)

const helperDirEnv = "ARTIZEN_READSTATE_HELPER_DIR"

// TestReadStateHelperProcess runs in a child process started by the
// cross-process tests. It marks t2 read and checks it can see t1.
func TestReadStateHelperProcess(t *testing.T) {
	dir := os.Getenv(helperDirEnv)
	if dir == "" {
		t.Skip("only runs as a child process")
	}
	store, err := OpenPebble(dir, "ada@artizen.test")
	if err != nil {
		t.Fatalf("child open: %v", err)
	}
	if err := store.Set("t2", t0.Add(time.Hour)); err != nil {
		t.Fatalf("child set: %v", err)
	}
	if got, err := store.Get("t1"); err != nil || !got.Equal(t0) {
		t.Fatalf("child sees t1 = %v, %v", got, err)
	}
}

func runHelperProcess(t *testing.T, dir string) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^TestReadStateHelperProcess$", "-test.count=1")
	cmd.Env = append(os.Environ(), helperDirEnv+"="+dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("child process failed: %v\n%s", err, out)
	}
}

func TestPebbleStoreSharedWithAnotherProcess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "readstate")
	store, err := OpenPebble(dir, "ada@artizen.test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	store.maxAge = 0
	if err := store.Set("t1", t0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Keep the directory busy while the child starts, the way a concurrent
	// command would; the child must wait for it instead of failing.
	held := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.withDB(func(*pebble.DB) error {
			close(held)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()
	<-held
	runHelperProcess(t, dir)
	if err := <-done; err != nil {
		t.Fatalf("hold directory: %v", err)
	}

	if got, err := store.Get("t2"); err != nil || !got.Equal(t0.Add(time.Hour)) {
		t.Fatalf("marker written by child = %v, %v", got, err)
	}
	if got, err := store.Get("t1"); err != nil || !got.Equal(t0) {
		t.Fatalf("own marker = %v, %v", got, err)
	}
}
