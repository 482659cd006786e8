package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/velkrow/metalvault/internal/api"
	"github.com/velkrow/metalvault/internal/auth"
	"github.com/velkrow/metalvault/internal/config"
	"github.com/velkrow/metalvault/internal/db"
	"github.com/velkrow/metalvault/internal/download"
	"github.com/velkrow/metalvault/internal/fetcher"
	"github.com/velkrow/metalvault/internal/jobs"
	"github.com/velkrow/metalvault/internal/mediacache"
	"github.com/velkrow/metalvault/internal/pipeline"
	"github.com/velkrow/metalvault/internal/repository"
	"github.com/velkrow/metalvault/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("MetalVault %s starting...", ver.Version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	settingsRepo := repository.NewSettingsRepository(database.DB)
	if err := cfg.MergeFromDB(settingsRepo); err != nil {
		log.Printf("[main] settings merge: %v", err)
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret, err = auth.LoadOrCreateSecret(filepath.Join(cfg.DataDir, "jwt.secret"))
		if err != nil {
			log.Fatalf("jwt secret: %v", err)
		}
	}
	authSvc := auth.NewService(repository.NewAdminRepository(database.DB), secret)

	cache, err := mediacache.New(cfg.CacheDir(), cfg.CacheMaxSizeGB)
	if err != nil {
		log.Fatalf("media cache: %v", err)
	}
	watcher, err := mediacache.NewWatcher(cache)
	if err != nil {
		log.Printf("[main] cache watcher unavailable: %v", err)
	} else {
		watcher.Start()
	}

	fetch := fetcher.NewYTDLP(cfg.YTDLPPath)
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if v, err := fetch.Version(probeCtx); err != nil {
		log.Printf("[main] %v (downloads will fail until installed)", err)
	} else {
		log.Printf("[main] yt-dlp %s", v)
	}
	probeCancel()

	downloads := download.NewManager(cache, fetch, cfg.MaxParallel, cfg.DownloadTimeout, cfg.DownloadAttempts)
	downloads.Start()

	orch := pipeline.NewOrchestrator(
		cfg,
		repository.NewAlbumRepository(database.DB),
		repository.NewGenreRepository(database.DB),
		settingsRepo,
		downloads,
	)

	queue := jobs.NewQueue(cfg.RedisAddr)
	srv := api.NewServer(cfg, database, authSvc, orch, queue, cache, downloads)
	queue.RegisterHandler(jobs.TaskScrapeDate, jobs.NewScrapeHandler(orch, srv.WSHub()))
	if err := queue.Start(); err != nil {
		log.Fatalf("job queue: %v", err)
	}

	var sched *pipeline.Scheduler
	if cfg.ScheduleEnabled {
		hour, minute := cfg.ScheduleClock()
		sched = pipeline.NewScheduler(orch, hour, minute)
		if err := sched.Start(true); err != nil {
			log.Printf("[main] scheduler: %v", err)
		}
	}

	go func() {
		log.Printf("[main] listening on :%d", cfg.Port)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[main] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	if sched != nil {
		sched.Stop()
	}
	queue.Stop()
	downloads.Stop()
	if watcher != nil {
		watcher.Stop()
	}
}
