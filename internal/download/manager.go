// Package download runs the bounded-parallel worker pool that fetches
// audio streams into the media cache.
package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/velkrow/metalvault/internal/fetcher"
	"github.com/velkrow/metalvault/internal/mediacache"
	"github.com/velkrow/metalvault/internal/models"
)

const (
	MinParallel = 1
	MaxParallel = 10

	pollTick   = 200 * time.Millisecond
	maxBackoff = 30 * time.Second
)

type Manager struct {
	mu sync.Mutex

	cache *mediacache.Cache
	fetch fetcher.Fetcher

	tasks map[string]*models.DownloadTask
	queue []string

	maxParallel int
	timeout     time.Duration
	maxAttempts int

	active    int
	succeeded int
	failed    int

	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewManager(cache *mediacache.Cache, fetch fetcher.Fetcher, maxParallel int, timeout time.Duration, maxAttempts int) *Manager {
	if maxParallel < MinParallel || maxParallel > MaxParallel {
		maxParallel = 3
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Manager{
		cache:       cache,
		fetch:       fetch,
		tasks:       map[string]*models.DownloadTask{},
		maxParallel: maxParallel,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		stop:        make(chan struct{}),
	}
}

// Start launches the dispatcher. Workers are spawned per task up to the
// parallel limit; the limit is re-read on every dispatch so resizes take
// effect on the next task.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.dispatch()
	log.Printf("[download] manager started, max parallel %d", m.maxParallel)
}

func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.stop)
	m.wg.Wait()
	log.Println("[download] manager stopped")
}

func (m *Manager) dispatch() {
	defer m.wg.Done()
	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			for {
				id, ok := m.takeNext()
				if !ok {
					break
				}
				m.wg.Add(1)
				go m.run(id)
			}
		}
	}
}

func (m *Manager) takeNext() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active >= m.maxParallel || len(m.queue) == 0 {
		return "", false
	}
	id := m.queue[0]
	m.queue = m.queue[1:]
	task, ok := m.tasks[id]
	if !ok || task.State != models.DownloadQueued {
		return "", false
	}
	now := time.Now().UTC()
	task.State = models.DownloadDownloading
	task.StartedAt = &now
	m.active++
	return id, true
}

func (m *Manager) run(id string) {
	defer m.wg.Done()

	m.removePartials(id)
	m.cache.MakeRoom(mediacache.DefaultEstimate)

	m.mu.Lock()
	timeout := m.timeout
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	path, err := m.fetch.FetchAudio(ctx, id, m.cache.Dir())
	cancel()

	if err == nil {
		var info os.FileInfo
		info, err = os.Stat(path)
		if err == nil && info.Size() == 0 {
			err = fmt.Errorf("empty file for %s", id)
		}
		if err == nil {
			m.cache.Admit(id, filepath.Base(path), info.Size())
			m.finish(id, path, nil)
			return
		}
	}
	m.finish(id, "", err)
}

func (m *Manager) finish(id, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active--
	task := m.tasks[id]
	if task == nil {
		return
	}
	task.Attempts++

	if err == nil {
		now := time.Now().UTC()
		task.State = models.DownloadCompleted
		task.FilePath = path
		task.CompletedAt = &now
		m.succeeded++
		return
	}

	task.Error = err.Error()
	if task.Attempts < m.maxAttempts && !m.stopped {
		task.State = models.DownloadQueued
		delay := Backoff(task.Attempts)
		log.Printf("[download] %s failed (attempt %d/%d), retrying in %s: %v",
			id, task.Attempts, m.maxAttempts, delay, err)
		time.AfterFunc(delay, func() { m.requeue(id) })
		return
	}

	now := time.Now().UTC()
	task.State = models.DownloadFailed
	task.CompletedAt = &now
	m.failed++
	log.Printf("[download] %s failed permanently after %d attempts: %v", id, task.Attempts, err)
}

func (m *Manager) requeue(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.State != models.DownloadQueued {
		return
	}
	for _, queued := range m.queue {
		if queued == id {
			return
		}
	}
	m.queue = append(m.queue, id)
}

// Backoff returns the retry delay after the given number of attempts,
// capped at 30 seconds.
func Backoff(attempts int) time.Duration {
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// removePartials deletes leftover files from an interrupted earlier run.
func (m *Manager) removePartials(id string) {
	patterns := []string{id + ".part", id + ".ytdl", id + ".*.part"}
	for _, ext := range fetcher.AudioExtensions {
		patterns = append(patterns, id+ext+".part")
	}
	for _, p := range patterns {
		matches, _ := filepath.Glob(filepath.Join(m.cache.Dir(), p))
		for _, match := range matches {
			os.Remove(match)
		}
	}
}

// Download requests a cached audio file. When already cached it returns
// the path immediately; otherwise it returns the (possibly pre-existing)
// task. Idempotent per id: concurrent callers share one download.
func (m *Manager) Download(id string, priority bool) (string, *models.DownloadTask, error) {
	if id == "" {
		return "", nil, fmt.Errorf("empty video id")
	}
	if path, ok := m.cache.Lookup(id); ok {
		return path, nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok {
		switch task.State {
		case models.DownloadQueued, models.DownloadDownloading:
			return "", cloneTask(task), nil
		case models.DownloadCompleted:
			// Cache entry vanished since completion; fall through to requeue.
		}
	}

	task := &models.DownloadTask{
		VideoID:  id,
		State:    models.DownloadQueued,
		QueuedAt: time.Now().UTC(),
	}
	m.tasks[id] = task
	if priority {
		m.queue = append([]string{id}, m.queue...)
	} else {
		m.queue = append(m.queue, id)
	}
	return "", cloneTask(task), nil
}

// DownloadPlaylist queues a playlist's ids: the current item first, the
// next two as priority, then the remainder in order.
func (m *Manager) DownloadPlaylist(ids []string, currentIndex int) {
	if len(ids) == 0 {
		return
	}
	if currentIndex < 0 || currentIndex >= len(ids) {
		currentIndex = 0
	}

	var front []string
	for i := currentIndex; i < len(ids) && i <= currentIndex+2; i++ {
		front = append(front, ids[i])
	}
	// Priority inserts prepend, so walk backwards to keep order.
	for i := len(front) - 1; i >= 0; i-- {
		m.Download(front[i], true)
	}
	for i, id := range ids {
		if i >= currentIndex && i <= currentIndex+2 {
			continue
		}
		m.Download(id, false)
	}
}

// Cancel aborts a queued task. In-flight downloads are left to complete or
// time out.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.State != models.DownloadQueued {
		return false
	}
	now := time.Now().UTC()
	task.State = models.DownloadCancelled
	task.CompletedAt = &now
	for i, queued := range m.queue {
		if queued == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	return true
}

// Status returns a snapshot of the task for an id, or nil when unknown.
func (m *Manager) Status(id string) *models.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil
	}
	return cloneTask(task)
}

func cloneTask(t *models.DownloadTask) *models.DownloadTask {
	c := *t
	return &c
}

func (m *Manager) Statistics() models.DownloadStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	done := m.succeeded + m.failed
	rate := 0.0
	if done > 0 {
		rate = float64(m.succeeded) / float64(done) * 100
	}
	return models.DownloadStats{
		Total:       len(m.tasks),
		Succeeded:   m.succeeded,
		Failed:      m.failed,
		SuccessRate: rate,
		Active:      m.active,
		Queued:      len(m.queue),
	}
}

// SetMaxParallel resizes the worker cap. Out-of-range values are clamped.
// The new limit applies from the next task dispatch.
func (m *Manager) SetMaxParallel(n int) {
	if n < MinParallel {
		n = MinParallel
	}
	if n > MaxParallel {
		n = MaxParallel
	}
	m.mu.Lock()
	m.maxParallel = n
	m.mu.Unlock()
	log.Printf("[download] max parallel set to %d", n)
}

func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

func (m *Manager) SetMaxAttempts(n int) {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.maxAttempts = n
	m.mu.Unlock()
}

// MaxParallelLimit reports the configured cap, used by the stats endpoint.
func (m *Manager) MaxParallelLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxParallel
}
