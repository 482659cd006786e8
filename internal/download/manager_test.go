package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/velkrow/metalvault/internal/mediacache"
	"github.com/velkrow/metalvault/internal/models"
)

// fakeFetcher writes a small file per request, optionally failing the
// first N attempts per id.
type fakeFetcher struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	inflight map[string]int
	maxSeen  map[string]int
	delay    time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		failures: map[string]int{},
		calls:    map[string]int{},
		inflight: map[string]int{},
		maxSeen:  map[string]int{},
	}
}

func (f *fakeFetcher) FetchAudio(ctx context.Context, videoID, destDir string) (string, error) {
	f.mu.Lock()
	f.calls[videoID]++
	f.inflight[videoID]++
	if f.inflight[videoID] > f.maxSeen[videoID] {
		f.maxSeen[videoID] = f.inflight[videoID]
	}
	call := f.calls[videoID]
	fail := call <= f.failures[videoID]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inflight[videoID]--
	f.mu.Unlock()

	if fail {
		return "", fmt.Errorf("simulated failure %d for %s", call, videoID)
	}
	path := filepath.Join(destDir, videoID+".webm")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func newTestManager(t *testing.T, f *fakeFetcher, maxAttempts int) (*Manager, *mediacache.Cache) {
	t.Helper()
	cache, err := mediacache.New(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(cache, f, 3, 5*time.Second, maxAttempts)
	m.Start()
	t.Cleanup(m.Stop)
	return m, cache
}

func waitForState(t *testing.T, m *Manager, id string, want models.DownloadState) *models.DownloadTask {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if task := m.Status(id); task != nil && task.State == want {
			return task
		}
		time.Sleep(20 * time.Millisecond)
	}
	task := m.Status(id)
	t.Fatalf("task %s never reached %s, last: %+v", id, want, task)
	return nil
}

func TestDownloadCompletes(t *testing.T) {
	f := newFakeFetcher()
	m, cache := newTestManager(t, f, 3)

	path, task, err := m.Download("vid1", false)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Fatalf("unexpected synchronous path %q", path)
	}
	if task.State != models.DownloadQueued {
		t.Errorf("initial state = %s", task.State)
	}

	done := waitForState(t, m, "vid1", models.DownloadCompleted)
	if done.FilePath == "" {
		t.Error("completed task has no file path")
	}
	if _, ok := cache.Lookup("vid1"); !ok {
		t.Error("completed download not admitted to cache")
	}

	// Second request resolves synchronously from cache.
	path, _, err = m.Download("vid1", false)
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Error("expected cached path on second request")
	}
}

func TestSingleFlightPerID(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 300 * time.Millisecond
	m, _ := newTestManager(t, f, 3)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Download("shared", false)
		}()
	}
	wg.Wait()

	waitForState(t, m, "shared", models.DownloadCompleted)

	f.mu.Lock()
	calls, maxInflight := f.calls["shared"], f.maxSeen["shared"]
	f.mu.Unlock()
	if calls != 1 {
		t.Errorf("fetcher called %d times for one id, want 1", calls)
	}
	if maxInflight > 1 {
		t.Errorf("max concurrent fetches for one id = %d, want 1", maxInflight)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	f := newFakeFetcher()
	f.failures["flaky"] = 1
	m, _ := newTestManager(t, f, 3)

	m.Download("flaky", false)
	task := waitForState(t, m, "flaky", models.DownloadCompleted)
	if task.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", task.Attempts)
	}
}

func TestSingleAttemptFailsWithoutRetry(t *testing.T) {
	f := newFakeFetcher()
	f.failures["doomed"] = 10
	m, _ := newTestManager(t, f, 1)

	m.Download("doomed", false)
	task := waitForState(t, m, "doomed", models.DownloadFailed)
	if task.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 with max_attempts=1", task.Attempts)
	}

	stats := m.Statistics()
	if stats.Failed != 1 {
		t.Errorf("failed count = %d, want 1", stats.Failed)
	}
}

func TestCancelQueuedTask(t *testing.T) {
	f := newFakeFetcher()
	m, _ := newTestManager(t, f, 3)
	m.SetMaxParallel(1)

	// Saturate the single worker so later tasks stay queued.
	f.delay = 500 * time.Millisecond
	m.Download("busy", false)
	waitForState(t, m, "busy", models.DownloadDownloading)

	m.Download("victim", false)
	if !m.Cancel("victim") {
		t.Fatal("Cancel returned false for queued task")
	}
	if task := m.Status("victim"); task.State != models.DownloadCancelled {
		t.Errorf("state = %s, want cancelled", task.State)
	}

	waitForState(t, m, "busy", models.DownloadCompleted)
	if m.Cancel("busy") {
		t.Error("Cancel must not affect finished tasks")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempts); got != tt.want {
			t.Errorf("Backoff(%d) = %s, want %s", tt.attempts, got, tt.want)
		}
	}
}

func TestSetMaxParallelClamps(t *testing.T) {
	f := newFakeFetcher()
	m, _ := newTestManager(t, f, 3)

	m.SetMaxParallel(0)
	if got := m.MaxParallelLimit(); got != MinParallel {
		t.Errorf("clamped low = %d, want %d", got, MinParallel)
	}
	m.SetMaxParallel(99)
	if got := m.MaxParallelLimit(); got != MaxParallel {
		t.Errorf("clamped high = %d, want %d", got, MaxParallel)
	}
}

func TestPlaylistPriorityOrder(t *testing.T) {
	f := newFakeFetcher()
	cache, err := mediacache.New(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	// Not started: the queue stays inspectable.
	m := NewManager(cache, f, 3, 5*time.Second, 3)

	m.DownloadPlaylist([]string{"a", "b", "c", "d", "e"}, 2)

	m.mu.Lock()
	queue := append([]string{}, m.queue...)
	m.mu.Unlock()

	want := []string{"c", "d", "e", "a", "b"}
	if len(queue) != len(want) {
		t.Fatalf("queue = %v, want %v", queue, want)
	}
	for i := range want {
		if queue[i] != want[i] {
			t.Fatalf("queue = %v, want %v", queue, want)
		}
	}
}
