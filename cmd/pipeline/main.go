// Command pipeline runs the scrape pipeline from the shell, without the
// HTTP service or the Redis queue. Useful for backfills and cron-driven
// deployments.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velkrow/metalvault/internal/config"
	"github.com/velkrow/metalvault/internal/db"
	"github.com/velkrow/metalvault/internal/download"
	"github.com/velkrow/metalvault/internal/fetcher"
	"github.com/velkrow/metalvault/internal/mediacache"
	"github.com/velkrow/metalvault/internal/pipeline"
	"github.com/velkrow/metalvault/internal/repository"
)

func main() {
	var (
		date      = flag.String("date", "", "scrape a single day (DD-MM-YYYY)")
		startDate = flag.String("start-date", "", "range start (DD-MM-YYYY)")
		endDate   = flag.String("end-date", "", "range end (DD-MM-YYYY)")
		yesterday = flag.Bool("yesterday", false, "scrape yesterday")
		today     = flag.Bool("today", false, "scrape today")
		scheduler = flag.Bool("scheduler", false, "run the daily scheduler and block")
		schedTime = flag.String("time", "", "scheduler fire time HH:MM (overrides config)")
		noCovers  = flag.Bool("no-covers", false, "skip cover art downloads")
		dryRun    = flag.Bool("dry-run", false, "print what would run and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if *schedTime != "" {
		cfg.ScheduleTime = *schedTime
	}

	if *dryRun {
		printPlan(cfg, *date, *startDate, *endDate, *yesterday, *today, *scheduler)
		return
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
		log.Printf("[pipeline] settings merge: %v", err)
	}

	cache, err := mediacache.New(cfg.CacheDir(), cfg.CacheMaxSizeGB)
	if err != nil {
		log.Fatalf("media cache: %v", err)
	}
	downloads := download.NewManager(
		cache, fetcher.NewYTDLP(cfg.YTDLPPath),
		cfg.MaxParallel, cfg.DownloadTimeout, cfg.DownloadAttempts)
	downloads.Start()
	defer downloads.Stop()

	orch := pipeline.NewOrchestrator(
		cfg,
		repository.NewAlbumRepository(database.DB),
		repository.NewGenreRepository(database.DB),
		settingsRepo,
		downloads,
	)

	withCovers := !*noCovers
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *scheduler:
		hour, minute := cfg.ScheduleClock()
		sched := pipeline.NewScheduler(orch, hour, minute)
		if err := sched.Start(true); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		log.Printf("[pipeline] scheduler armed for %02d:%02d, waiting...", hour, minute)
		<-ctx.Done()
		sched.Stop()

	case *startDate != "" || *endDate != "":
		start, err1 := pipeline.ParseDay(*startDate)
		end, err2 := pipeline.ParseDay(*endDate)
		if err1 != nil || err2 != nil || end.Before(start) {
			log.Fatal("range needs --start-date and --end-date as DD-MM-YYYY with start <= end")
		}
		summaries, errs := orch.RunRange(ctx, start, end, withCovers)
		for _, s := range summaries {
			log.Printf("[pipeline] %s: %d scraped, %d verified, %d queued (rate_limited=%v)",
				s.Date, s.Total, s.Verified, s.Queued, s.RateLimited)
		}
		if len(errs) > 0 {
			for _, err := range errs {
				log.Printf("[pipeline] error: %v", err)
			}
			os.Exit(1)
		}

	default:
		day, err := resolveDay(*date, *yesterday, *today)
		if err != nil {
			log.Fatalf("%v", err)
		}
		summary, err := orch.RunForDate(ctx, day, withCovers)
		if err != nil {
			log.Fatalf("scrape failed: %v", err)
		}
		log.Printf("[pipeline] %s: %d scraped, %d verified, %d queued (rate_limited=%v)",
			summary.Date, summary.Total, summary.Verified, summary.Queued, summary.RateLimited)
	}
}

// printPlan resolves the selected dates and reports them without touching
// the database or the browser.
func printPlan(cfg *config.Config, date, startDate, endDate string, yesterday, today, scheduler bool) {
	switch {
	case scheduler:
		hour, minute := cfg.ScheduleClock()
		log.Printf("[pipeline] dry run: scheduler would fire daily at %02d:%02d and scrape the previous day", hour, minute)

	case startDate != "" || endDate != "":
		start, err1 := pipeline.ParseDay(startDate)
		end, err2 := pipeline.ParseDay(endDate)
		if err1 != nil || err2 != nil || end.Before(start) {
			log.Fatal("range needs --start-date and --end-date as DD-MM-YYYY with start <= end")
		}
		days := int(end.Sub(start).Hours()/24) + 1
		log.Printf("[pipeline] dry run: would scrape %d day(s) from %s to %s",
			days, start.Format("02-01-2006"), end.Format("02-01-2006"))

	default:
		day, err := resolveDay(date, yesterday, today)
		if err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("[pipeline] dry run: would scrape %s", day.Format("02-01-2006"))
	}
}

func resolveDay(date string, yesterday, today bool) (time.Time, error) {
	now := time.Now()
	switch {
	case yesterday:
		return now.AddDate(0, 0, -1), nil
	case today:
		return now, nil
	case date != "":
		return pipeline.ParseDay(date)
	}
	flag.Usage()
	os.Exit(2)
	return time.Time{}, nil
}
