package mediacache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/velkrow/metalvault/internal/models"
)

const mib = 1024 * 1024

func newTestCache(t *testing.T, maxSizeGB float64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), maxSizeGB)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func writeFile(t *testing.T, c *Cache, name string, size int64) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(c.Dir(), name), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func admit(t *testing.T, c *Cache, id string, size int64) {
	t.Helper()
	name := id + ".webm"
	writeFile(t, c, name, size)
	c.Admit(id, name, size)
}

func cachedIDs(c *Cache) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := map[string]bool{}
	for id := range c.entries {
		ids[id] = true
	}
	return ids
}

func TestLookupTouchesAccessTime(t *testing.T) {
	c := newTestCache(t, 1)
	admit(t, c, "vid1", 100)

	c.mu.Lock()
	c.entries["vid1"].LastAccessed = time.Now().UTC().Add(-time.Hour)
	c.mu.Unlock()

	path, ok := c.Lookup("vid1")
	if !ok {
		t.Fatal("expected hit")
	}
	if filepath.Base(path) != "vid1.webm" {
		t.Errorf("path = %s", path)
	}

	c.mu.Lock()
	age := time.Since(c.entries["vid1"].LastAccessed)
	c.mu.Unlock()
	if age > time.Minute {
		t.Errorf("last_accessed not refreshed, age %v", age)
	}

	if _, ok := c.Lookup("missing"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestLRUEviction(t *testing.T) {
	// Quota 30 MiB. Admit A, B, C at 10 MiB each, touch A, then make room
	// for D: B has the oldest access time and must be the one evicted.
	c := newTestCache(t, 30.0/1024)

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"A", "B", "C"} {
		admit(t, c, id, 10*mib)
		c.mu.Lock()
		c.entries[id].LastAccessed = base.Add(time.Duration(i) * time.Minute)
		c.mu.Unlock()
	}
	if _, ok := c.Lookup("A"); !ok {
		t.Fatal("A should be cached")
	}

	c.MakeRoom(10 * mib)
	admit(t, c, "D", 10*mib)

	ids := cachedIDs(c)
	for _, want := range []string{"A", "C", "D"} {
		if !ids[want] {
			t.Errorf("%s missing after eviction, have %v", want, ids)
		}
	}
	if ids["B"] {
		t.Error("B should have been evicted as least recently used")
	}
	if total := c.Stats().TotalSizeBytes; total > 30*mib {
		t.Errorf("total %d exceeds quota", total)
	}
}

func TestQuotaShrinkEvicts(t *testing.T) {
	c := newTestCache(t, 30.0/1024)
	for _, id := range []string{"A", "B", "C"} {
		admit(t, c, id, 10*mib)
	}

	c.SetQuota(15.0 / 1024)

	stats := c.Stats()
	if stats.TotalSizeBytes > 15*mib {
		t.Errorf("total %d exceeds shrunk quota", stats.TotalSizeBytes)
	}
	if stats.FileCount > 1 {
		t.Errorf("file count = %d after shrink to 15 MiB", stats.FileCount)
	}
}

func TestOrphanSweep(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	admit(t, c, "tracked", 100)

	// Untracked file on disk, tracked entry without a file.
	if err := os.WriteFile(filepath.Join(dir, "stray.m4a"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	c.entries["ghost"] = &models.CacheEntry{
		Filename:     "ghost.webm",
		SizeBytes:    1,
		LastAccessed: time.Now().UTC(),
		DownloadDate: time.Now().UTC(),
	}
	c.saveMetadata()
	c.mu.Unlock()

	reopened, err := New(dir, 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "stray.m4a")); !os.IsNotExist(err) {
		t.Error("stray file survived orphan sweep")
	}
	ids := cachedIDs(reopened)
	if ids["ghost"] {
		t.Error("entry without file survived sweep")
	}
	if !ids["tracked"] {
		t.Error("valid entry dropped by sweep")
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, 1)
	admit(t, c, "a", 100)
	admit(t, c, "b", 100)

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if stats := c.Stats(); stats.FileCount != 0 || stats.TotalSizeBytes != 0 {
		t.Errorf("stats after clear: %+v", stats)
	}
}

func TestCleanOlderThan(t *testing.T) {
	c := newTestCache(t, 1)
	admit(t, c, "old", 100)
	admit(t, c, "fresh", 100)
	c.mu.Lock()
	c.entries["old"].LastAccessed = time.Now().UTC().Add(-48 * time.Hour)
	c.mu.Unlock()

	if n := c.CleanOlderThan(24 * time.Hour); n != 1 {
		t.Errorf("CleanOlderThan = %d, want 1", n)
	}
	ids := cachedIDs(c)
	if ids["old"] || !ids["fresh"] {
		t.Errorf("remaining ids = %v", ids)
	}
}
