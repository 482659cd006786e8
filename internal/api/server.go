// Package api exposes the catalog, admin, media, and playlist endpoints
// as a JSON HTTP service.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/velkrow/metalvault/internal/auth"
	"github.com/velkrow/metalvault/internal/config"
	"github.com/velkrow/metalvault/internal/db"
	"github.com/velkrow/metalvault/internal/download"
	"github.com/velkrow/metalvault/internal/httputil"
	"github.com/velkrow/metalvault/internal/jobs"
	"github.com/velkrow/metalvault/internal/mediacache"
	"github.com/velkrow/metalvault/internal/models"
	"github.com/velkrow/metalvault/internal/pipeline"
	"github.com/velkrow/metalvault/internal/repository"
	"github.com/velkrow/metalvault/internal/version"
)

type Server struct {
	config       *config.Config
	db           *db.DB
	authSvc      *auth.Service
	albumRepo    *repository.AlbumRepository
	genreRepo    *repository.GenreRepository
	playlistRepo *repository.PlaylistRepository
	settingsRepo *repository.SettingsRepository

	orchestrator *pipeline.Orchestrator
	jobQueue     *jobs.Queue
	cache        *mediacache.Cache
	downloads    *download.Manager

	wsHub   *WSHub
	ver     version.Info
	router  *http.ServeMux
	httpSrv *http.Server
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	authSvc *auth.Service,
	orch *pipeline.Orchestrator,
	jobQueue *jobs.Queue,
	cache *mediacache.Cache,
	downloads *download.Manager,
) *Server {
	s := &Server{
		config:       cfg,
		db:           database,
		authSvc:      authSvc,
		albumRepo:    repository.NewAlbumRepository(database.DB),
		genreRepo:    repository.NewGenreRepository(database.DB),
		playlistRepo: repository.NewPlaylistRepository(database.DB),
		settingsRepo: repository.NewSettingsRepository(database.DB),
		orchestrator: orch,
		jobQueue:     jobQueue,
		cache:        cache,
		downloads:    downloads,
		wsHub:        NewWSHub(),
		ver:          version.Load(),
		router:       http.NewServeMux(),
	}
	s.setupRoutes()

	// Live scrape progress fans out to every connected client.
	orch.OnProgress(func(p models.ProgressReport) {
		s.wsHub.Broadcast("scrape:progress", p)
	})
	return s
}

func (s *Server) WSHub() *WSHub { return s.wsHub }

func (s *Server) setupRoutes() {
	admin := func(h http.HandlerFunc) http.Handler { return s.authSvc.RequireAuth(h) }

	// Public catalog
	s.router.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.router.HandleFunc("GET /api/v1/dates", s.handleDates)
	s.router.HandleFunc("GET /api/v1/dates/grouped", s.handleGroupedDates)
	s.router.HandleFunc("GET /api/v1/albums/{date}", s.handleAlbumsByDate)
	s.router.HandleFunc("GET /api/v1/albums/period/{kind}/{key}", s.handleAlbumsByPeriod)
	s.router.HandleFunc("GET /api/v1/albums/by-genre/{name}", s.handleAlbumsByGenre)
	s.router.HandleFunc("GET /api/v1/album/{id}", s.handleGetAlbum)
	s.router.HandleFunc("GET /api/v1/search", s.handleSearch)
	s.router.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.router.HandleFunc("GET /api/v1/genres", s.handleGenres)
	s.router.HandleFunc("GET /api/v1/genres/stats", s.handleGenreStats)

	// Covers
	s.router.Handle("GET /covers/", http.StripPrefix("/covers/",
		http.FileServer(http.Dir(s.config.CoversDir()))))

	// Auth
	s.router.HandleFunc("GET /api/v1/auth/status", s.handleAuthStatus)
	s.router.HandleFunc("POST /api/v1/auth/setup", s.handleAuthSetup)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.Handle("POST /api/v1/auth/password", admin(s.handleChangePassword))

	// WebSocket progress feed
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	// Admin: scrape control
	s.router.Handle("POST /api/v1/admin/scrape", admin(s.handleStartScrape))
	s.router.Handle("POST /api/v1/admin/scrape/stop", admin(s.handleStopScrape))
	s.router.HandleFunc("GET /api/v1/admin/scrape/status", s.handleScrapeStatus)
	s.router.Handle("DELETE /api/v1/admin/albums/{date}", admin(s.handleDeleteByDate))
	s.router.Handle("DELETE /api/v1/admin/albums", admin(s.handleDeleteByRange))
	s.router.Handle("GET /api/v1/admin/summary", admin(s.handleSummary))

	// Admin: settings
	s.router.Handle("GET /api/v1/admin/settings/{category}", admin(s.handleGetSettings))
	s.router.Handle("PUT /api/v1/admin/settings/{category}", admin(s.handlePutSettings))

	// Admin: verification
	s.router.Handle("POST /api/v1/admin/verify", admin(s.handleBulkVerify))
	s.router.Handle("GET /api/v1/admin/link-health", admin(s.handleLinkHealth))

	// Admin: cache
	s.router.Handle("POST /api/v1/admin/cache/clean", admin(s.handleCacheClean))
	s.router.Handle("POST /api/v1/admin/cache/clear", admin(s.handleCacheClear))

	// Media
	s.router.HandleFunc("GET /api/v1/youtube/audio/{id}", s.handleAudio)
	s.router.HandleFunc("GET /api/v1/youtube/audio/{id}/info", s.handleAudioInfo)
	s.router.HandleFunc("GET /api/v1/youtube/download/status/{id}", s.handleDownloadStatus)
	s.router.HandleFunc("GET /api/v1/youtube/download/stats", s.handleDownloadStats)
	s.router.HandleFunc("POST /api/v1/youtube/queue", s.handleQueueDownloads)
	s.router.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)

	// Playlists: reads are public, mutations need the admin token.
	s.router.HandleFunc("GET /api/v1/playlists", s.handleListPlaylists)
	s.router.Handle("POST /api/v1/playlists", admin(s.handleCreatePlaylist))
	s.router.HandleFunc("GET /api/v1/playlists/{id}", s.handleGetPlaylist)
	s.router.Handle("PUT /api/v1/playlists/{id}", admin(s.handleUpdatePlaylist))
	s.router.Handle("DELETE /api/v1/playlists/{id}", admin(s.handleDeletePlaylist))
	s.router.Handle("POST /api/v1/playlists/{id}/items", admin(s.handleAddPlaylistItem))
	s.router.Handle("DELETE /api/v1/playlists/{id}/items/{itemId}", admin(s.handleRemovePlaylistItem))
	s.router.Handle("PUT /api/v1/playlists/{id}/reorder", admin(s.handleReorderPlaylist))
	s.router.HandleFunc("GET /api/v1/playlists/dynamic/{kind}/{key}", s.handleDynamicPlaylist)
}

// writeRepoError maps repository sentinels onto HTTP statuses.
func writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case err == repository.ErrNotFound:
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case err == repository.ErrInvalidPeriod:
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PERIOD", err.Error())
	case err == repository.ErrBadReorder:
		httputil.WriteError(w, http.StatusBadRequest, "BAD_REORDER", err.Error())
	default:
		log.Printf("[api] internal error: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.corsMiddleware(s.router),
	}
	log.Printf("[api] listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
