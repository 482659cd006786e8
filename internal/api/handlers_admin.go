package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/velkrow/metalvault/internal/auth"
	"github.com/velkrow/metalvault/internal/httputil"
	"github.com/velkrow/metalvault/internal/jobs"
	"github.com/velkrow/metalvault/internal/models"
)

// ──────────────────── Auth ────────────────────

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	configured, err := s.authSvc.Configured()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"configured": configured})
}

func (s *Server) handleAuthSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	switch err := s.authSvc.Setup(req.Password); {
	case errors.Is(err, auth.ErrAlreadySetup):
		httputil.WriteError(w, http.StatusConflict, "ALREADY_CONFIGURED", "admin password already configured")
	case errors.Is(err, auth.ErrWeakPassword):
		httputil.WriteError(w, http.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters")
	case err != nil:
		writeRepoError(w, err)
	default:
		httputil.WriteJSON(w, http.StatusCreated, map[string]string{"message": "admin password configured"})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	token, err := s.authSvc.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrLocked):
		httputil.WriteError(w, http.StatusLocked, "LOCKED", "too many failed attempts, try again later")
	case errors.Is(err, auth.ErrNotSetup):
		httputil.WriteError(w, http.StatusConflict, "NOT_CONFIGURED", "run setup first")
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid password")
	case err != nil:
		writeRepoError(w, err)
	default:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	switch err := s.authSvc.ChangePassword(req.Current, req.New); {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is wrong")
	case errors.Is(err, auth.ErrWeakPassword):
		httputil.WriteError(w, http.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters")
	case err != nil:
		writeRepoError(w, err)
	default:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
	}
}

// ──────────────────── Scrape control ────────────────────

func (s *Server) handleStartScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date       string `json:"date"` // DD-MM-YYYY
		WithCovers *bool  `json:"with_covers,omitempty"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	withCovers := true
	if req.WithCovers != nil {
		withCovers = *req.WithCovers
	}

	if s.orchestrator.Running() {
		httputil.WriteError(w, http.StatusConflict, "SCRAPE_RUNNING", "a scrape is already running")
		return
	}
	taskID, err := s.jobQueue.EnqueueScrape(req.Date, withCovers)
	if errors.Is(err, jobs.ErrConflict) {
		httputil.WriteError(w, http.StatusConflict, "SCRAPE_QUEUED", "this date is already queued or running")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"date":    req.Date,
	})
}

func (s *Server) handleStopScrape(w http.ResponseWriter, r *http.Request) {
	if !s.orchestrator.Running() {
		httputil.WriteError(w, http.StatusConflict, "NOT_RUNNING", "no scrape is running")
		return
	}
	s.orchestrator.Stop()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "stop requested"})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.orchestrator.Progress())
}

func (s *Server) handleDeleteByDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	n, err := s.albumRepo.DeleteByDate(day)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

func (s *Server) handleDeleteByRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err1 := time.Parse("2006-01-02", q.Get("from"))
	to, err2 := time.Parse("2006-01-02", q.Get("to"))
	if err1 != nil || err2 != nil || to.Before(from) {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_RANGE", "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	n, err := s.albumRepo.DeleteByRange(from, to)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := s.albumRepo.Stats()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"catalog":   stats,
		"downloads": s.downloads.Statistics(),
		"cache":     s.cache.Stats(),
		"scrape":    s.orchestrator.Progress(),
	})
}

// ──────────────────── Settings ────────────────────

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsRepo.ByCategory(r.PathValue("category"))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	var req map[string]json.RawMessage
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	for key, value := range req {
		if err := s.settingsRepo.Set(key, string(value), category); err != nil {
			writeRepoError(w, err)
			return
		}
	}
	// Settings that govern live components take effect immediately.
	s.applyRuntimeSettings()
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated": len(req)})
}

// applyRuntimeSettings pushes persisted tunables into running components.
func (s *Server) applyRuntimeSettings() {
	if err := s.config.MergeFromDB(s.settingsRepo); err != nil {
		return
	}
	s.downloads.SetMaxParallel(s.config.MaxParallel)
	s.downloads.SetTimeout(s.config.DownloadTimeout)
	s.downloads.SetMaxAttempts(s.config.DownloadAttempts)
	s.cache.SetQuota(s.config.CacheMaxSizeGB)
}

// ──────────────────── Verification ────────────────────

func (s *Server) handleBulkVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold    int `json:"threshold"`
		SinceDays    int `json:"since_days"`
		Limit        int `json:"limit"`
		DelaySeconds int `json:"delay_seconds"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	if req.Threshold <= 0 || req.Threshold > 100 {
		req.Threshold = 75
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.DelaySeconds < 0 || req.DelaySeconds > 60 {
		req.DelaySeconds = 0
	}

	albums, err := s.albumRepo.Unverified(req.SinceDays, req.Limit)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if len(albums) == 0 {
		httputil.WriteJSON(w, http.StatusOK, map[string]int{"checked": 0, "verified": 0})
		return
	}

	go s.runBulkVerify(albums, req.Threshold, time.Duration(req.DelaySeconds)*time.Second)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "verification started",
		"albums":    len(albums),
		"threshold": req.Threshold,
	})
}

func (s *Server) handleLinkHealth(w http.ResponseWriter, r *http.Request) {
	sinceDays := httputil.QueryInt(r, "since_days", 0)
	albums, err := s.albumRepo.Unverified(sinceDays, 0)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	report := struct {
		Unverified int `json:"unverified"`
		NoLinks    int `json:"no_platform_links"`
		YouTube    int `json:"with_youtube_link"`
		Bandcamp   int `json:"with_bandcamp_link"`
	}{Unverified: len(albums)}
	for _, a := range albums {
		hasAny := false
		for _, p := range models.Platforms {
			if a.PlatformURL(p) != nil {
				hasAny = true
				break
			}
		}
		if !hasAny {
			report.NoLinks++
		}
		if a.YouTubeURL != nil {
			report.YouTube++
		}
		if a.BandcampURL != nil {
			report.Bandcamp++
		}
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// ──────────────────── Cache ────────────────────

func (s *Server) handleCacheClean(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OlderThanDays int `json:"older_than_days"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil || req.OlderThanDays < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "older_than_days must be a positive integer")
		return
	}
	removed := s.cache.CleanOlderThan(time.Duration(req.OlderThanDays) * 24 * time.Hour)
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	removed := s.cache.Clear()
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
