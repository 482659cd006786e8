// Package mediacache manages the on-disk audio cache with a size quota and
// LRU eviction. Entries are keyed by external video id; a JSON sidecar
// tracks size and access times.
package mediacache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/velkrow/metalvault/internal/models"
)

const metadataFile = "cache_metadata.json"

// DefaultEstimate is the assumed size of an incoming file when the real
// size is unknown.
const DefaultEstimate int64 = 10 * 1024 * 1024

type Cache struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	entries  map[string]*models.CacheEntry
}

// New opens (or creates) the cache directory, loads the sidecar, and sweeps
// orphans in both directions: untracked files are deleted, entries whose
// file is gone are dropped.
func New(dir string, maxSizeGB float64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{
		dir:      dir,
		maxBytes: int64(maxSizeGB * 1024 * 1024 * 1024),
		entries:  map[string]*models.CacheEntry{},
	}
	c.loadMetadata()
	c.sweepOrphans()
	log.Printf("[cache] initialized at %s, max size %.2f GB, %d entries", dir, maxSizeGB, len(c.entries))
	return c, nil
}

func (c *Cache) loadMetadata() {
	data, err := os.ReadFile(filepath.Join(c.dir, metadataFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[cache] error loading metadata: %v", err)
		}
		return
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.Printf("[cache] corrupt metadata, starting fresh: %v", err)
		c.entries = map[string]*models.CacheEntry{}
	}
}

// saveMetadata must be called with the lock held.
func (c *Cache) saveMetadata() {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		log.Printf("[cache] error marshalling metadata: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, metadataFile), data, 0o644); err != nil {
		log.Printf("[cache] error saving metadata: %v", err)
	}
}

func (c *Cache) sweepOrphans() {
	c.mu.Lock()
	defer c.mu.Unlock()

	tracked := map[string]bool{}
	for id, e := range c.entries {
		path := filepath.Join(c.dir, e.Filename)
		if _, err := os.Stat(path); err != nil {
			log.Printf("[cache] file missing for %s, dropping entry", id)
			delete(c.entries, id)
			continue
		}
		tracked[e.Filename] = true
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		log.Printf("[cache] error listing dir: %v", err)
		return
	}
	for _, f := range files {
		if f.IsDir() || f.Name() == metadataFile || tracked[f.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, f.Name())); err != nil {
			log.Printf("[cache] error deleting orphan %s: %v", f.Name(), err)
		} else {
			log.Printf("[cache] deleted orphan file %s", f.Name())
		}
	}
	c.saveMetadata()
}

// Lookup returns the path of a cached file and refreshes its access time.
// The second return is false when the id is not cached.
func (c *Cache) Lookup(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	path := filepath.Join(c.dir, e.Filename)
	if _, err := os.Stat(path); err != nil {
		log.Printf("[cache] cached file missing for %s, dropping entry", id)
		delete(c.entries, id)
		c.saveMetadata()
		return "", false
	}
	e.LastAccessed = time.Now().UTC()
	c.saveMetadata()
	return path, true
}

// Admit records a freshly downloaded file. The file must already be in the
// cache directory.
func (c *Cache) Admit(id, filename string, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	c.entries[id] = &models.CacheEntry{
		Filename:     filename,
		SizeBytes:    size,
		LastAccessed: now,
		DownloadDate: now,
	}
	c.saveMetadata()
	log.Printf("[cache] added %s (%.2f MB)", filename, float64(size)/(1024*1024))
}

// totalSize must be called with the lock held. Entries with missing files
// are dropped as a side effect.
func (c *Cache) totalSize() int64 {
	var total int64
	for id, e := range c.entries {
		info, err := os.Stat(filepath.Join(c.dir, e.Filename))
		if err != nil {
			delete(c.entries, id)
			continue
		}
		total += info.Size()
	}
	return total
}

// MakeRoom evicts least-recently-used files until the cache can take
// estimate more bytes without exceeding the quota.
func (c *Cache) MakeRoom(estimate int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.makeRoomLocked(estimate)
	c.saveMetadata()
}

func (c *Cache) makeRoomLocked(estimate int64) {
	current := c.totalSize()
	if current+estimate <= c.maxBytes {
		return
	}
	log.Printf("[cache] cleanup needed: current %.2f MB, max %.2f MB",
		float64(current)/(1024*1024), float64(c.maxBytes)/(1024*1024))

	type lruItem struct {
		id string
		e  *models.CacheEntry
	}
	items := make([]lruItem, 0, len(c.entries))
	for id, e := range c.entries {
		items = append(items, lruItem{id, e})
	}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].e.LastAccessed.Before(items[j-1].e.LastAccessed); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}

	target := c.maxBytes - estimate
	for _, it := range items {
		if current <= target {
			break
		}
		path := filepath.Join(c.dir, it.e.Filename)
		if info, err := os.Stat(path); err == nil {
			if err := os.Remove(path); err != nil {
				log.Printf("[cache] error evicting %s: %v", it.e.Filename, err)
			} else {
				current -= info.Size()
				log.Printf("[cache] evicted %s (%.2f MB)", it.e.Filename, float64(info.Size())/(1024*1024))
			}
		}
		delete(c.entries, it.id)
	}
}

// Clear deletes every cached file and resets the sidecar.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for _, e := range c.entries {
		if err := os.Remove(filepath.Join(c.dir, e.Filename)); err == nil {
			deleted++
		}
	}
	c.entries = map[string]*models.CacheEntry{}
	c.saveMetadata()
	log.Printf("[cache] cleared, deleted %d files", deleted)
	return deleted
}

// CleanOlderThan removes entries not accessed within the given age.
func (c *Cache) CleanOlderThan(age time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().UTC().Add(-age)
	deleted := 0
	for id, e := range c.entries {
		if e.LastAccessed.Before(cutoff) {
			os.Remove(filepath.Join(c.dir, e.Filename))
			delete(c.entries, id)
			deleted++
		}
	}
	c.saveMetadata()
	return deleted
}

func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.totalSize()
	available := c.maxBytes - total
	if available < 0 {
		available = 0
	}
	usage := 0.0
	if c.maxBytes > 0 {
		usage = float64(total) / float64(c.maxBytes) * 100
	}
	return models.CacheStats{
		TotalSizeBytes: total,
		MaxSizeBytes:   c.maxBytes,
		UsagePercent:   usage,
		FileCount:      len(c.entries),
		AvailableBytes: available,
	}
}

// SetQuota updates the size limit. Shrinking below the current total
// triggers immediate eviction.
func (c *Cache) SetQuota(maxSizeGB float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.maxBytes
	c.maxBytes = int64(maxSizeGB * 1024 * 1024 * 1024)
	log.Printf("[cache] max size updated: %d -> %d bytes", old, c.maxBytes)
	if c.maxBytes < old {
		c.makeRoomLocked(0)
	}
	c.saveMetadata()
}

// Dir returns the cache directory, used by the download manager for
// destination paths and partial-file cleanup.
func (c *Cache) Dir() string {
	return c.dir
}

// Drop removes a single entry when its file disappeared externally.
func (c *Cache) Drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		delete(c.entries, id)
		c.saveMetadata()
	}
}

// FindByFilename maps a filename back to its video id.
func (c *Cache) FindByFilename(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.Filename == name {
			return id, true
		}
	}
	return "", false
}
