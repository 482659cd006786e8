package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/velkrow/metalvault/internal/httputil"
	"github.com/velkrow/metalvault/internal/models"
)

// handleAudio serves a cached audio file. It never starts a download:
// 200 with the bytes when cached, 202 while a fetch is in flight, 404
// otherwise.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if path, ok := s.cache.Lookup(id); ok {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeFile(w, r, path)
		return
	}

	if task := s.downloads.Status(id); task != nil {
		switch task.State {
		case models.DownloadQueued, models.DownloadDownloading:
			w.Header().Set("Retry-After", "5")
			httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
				"state":    task.State,
				"attempts": task.Attempts,
			})
			return
		}
	}
	httputil.WriteError(w, http.StatusNotFound, "NOT_CACHED", "audio not cached; queue a download first")
}

func (s *Server) handleAudioInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info := map[string]interface{}{"video_id": id, "cached": false}

	if path, ok := s.cache.Lookup(id); ok {
		info["cached"] = true
		info["filename"] = filepath.Base(path)
		if st, err := os.Stat(path); err == nil {
			info["size_bytes"] = st.Size()
		}
	} else if task := s.downloads.Status(id); task != nil {
		info["state"] = task.State
		info["attempts"] = task.Attempts
		if task.Error != "" {
			info["last_error"] = task.Error
		}
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleDownloadStatus(w http.ResponseWriter, r *http.Request) {
	task := s.downloads.Status(r.PathValue("id"))
	if task == nil {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no download task for this id")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

func (s *Server) handleDownloadStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.downloads.Statistics())
}

// handleQueueDownloads enqueues audio fetches: either a single id, or a
// playlist with prefetch priority around the current position.
func (s *Server) handleQueueDownloads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoID      string   `json:"video_id,omitempty"`
		VideoIDs     []string `json:"video_ids,omitempty"`
		CurrentIndex int      `json:"current_index,omitempty"`
		Priority     bool     `json:"priority,omitempty"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}

	switch {
	case req.VideoID != "":
		path, task, err := s.downloads.Download(req.VideoID, req.Priority)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
			return
		}
		if path != "" {
			httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"cached": true})
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, task)
	case len(req.VideoIDs) > 0:
		s.downloads.DownloadPlaylist(req.VideoIDs, req.CurrentIndex)
		httputil.WriteJSON(w, http.StatusAccepted, map[string]int{"queued": len(req.VideoIDs)})
	default:
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "video_id or video_ids required")
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.cache.Stats())
}
