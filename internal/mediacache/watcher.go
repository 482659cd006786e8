package mediacache

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the cache directory for external deletions and drops the
// matching sidecar entries so stats and lookups stay honest.
type Watcher struct {
	cache   *Cache
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

func NewWatcher(cache *Cache) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(cache.Dir()); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		cache:   cache,
		watcher: fw,
		stop:    make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() {
	go w.eventLoop()
	log.Println("[cache] directory watcher started")
}

func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if name == metadataFile {
				continue
			}
			if id, ok := w.cache.FindByFilename(name); ok {
				log.Printf("[cache] %s removed externally, dropping %s", name, id)
				w.cache.Drop(id)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[cache] watcher error: %v", err)
		}
	}
}
