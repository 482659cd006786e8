// Package pipeline orchestrates a full scrape day: collect, persist,
// normalize genres, verify playability, and queue audio downloads.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/velkrow/metalvault/internal/browser"
	"github.com/velkrow/metalvault/internal/config"
	"github.com/velkrow/metalvault/internal/download"
	"github.com/velkrow/metalvault/internal/genre"
	"github.com/velkrow/metalvault/internal/models"
	"github.com/velkrow/metalvault/internal/repository"
	"github.com/velkrow/metalvault/internal/scraper"
	"github.com/velkrow/metalvault/internal/verifier"
)

// ErrAlreadyRunning means a scrape is in flight; only one runs at a time.
var ErrAlreadyRunning = errors.New("a scrape is already running")

const interDayPause = 30 * time.Second

// Summary is the outcome of one day's run.
type Summary struct {
	Date        string `json:"date"`
	Total       int    `json:"total"`
	Persisted   int    `json:"persisted"`
	Verified    int    `json:"verified"`
	Queued      int    `json:"queued_downloads"`
	RateLimited bool   `json:"rate_limited"`
}

type Orchestrator struct {
	cfg       *config.Config
	albums    *repository.AlbumRepository
	genres    *repository.GenreRepository
	settings  *repository.SettingsRepository
	downloads *download.Manager

	running atomic.Bool

	mu         sync.Mutex
	progress   models.ProgressReport
	cancel     context.CancelFunc
	onProgress func(models.ProgressReport)
}

func NewOrchestrator(
	cfg *config.Config,
	albums *repository.AlbumRepository,
	genres *repository.GenreRepository,
	settings *repository.SettingsRepository,
	downloads *download.Manager,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		albums:    albums,
		genres:    genres,
		settings:  settings,
		downloads: downloads,
	}
}

// OnProgress registers a callback invoked with every progress update,
// used to fan out over websockets.
func (o *Orchestrator) OnProgress(fn func(models.ProgressReport)) {
	o.mu.Lock()
	o.onProgress = fn
	o.mu.Unlock()
}

// Progress returns a snapshot of the current (or last) run's state.
func (o *Orchestrator) Progress() models.ProgressReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Running reports whether a scrape is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Stop requests a cooperative shutdown of the in-flight run.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.progress.ShouldStop = true
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) update(fn func(p *models.ProgressReport)) {
	o.mu.Lock()
	fn(&o.progress)
	snapshot := o.progress
	cb := o.onProgress
	o.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// browserConfig maps runtime tunables onto the session config.
func (o *Orchestrator) browserConfig() browser.Config {
	cfg := browser.DefaultConfig()
	cfg.Headless = o.cfg.Headless
	cfg.BaseDelay = o.cfg.RequestDelay
	cfg.NavTimeout = o.cfg.NavTimeout
	cfg.MaxRetries = o.cfg.MaxRetries
	if o.cfg.RetryBase > 0 {
		cfg.RetryBase = o.cfg.RetryBase
	}
	if o.cfg.ChallengeMaxWait > 0 {
		cfg.ChallengeMaxWait = o.cfg.ChallengeMaxWait
	}
	if o.cfg.ChallengeRetries > 0 {
		cfg.ChallengeRetries = o.cfg.ChallengeRetries
	}
	return cfg
}

// pageSize bounds one listing request; the endpoint caps at 200.
func (o *Orchestrator) pageSize() int {
	if o.cfg.PageSize >= 1 && o.cfg.PageSize <= 200 {
		return o.cfg.PageSize
	}
	return 200
}

// threshold reads the persisted similarity floor, falling back to the
// config default.
func (o *Orchestrator) threshold() int {
	raw, err := o.settings.Get("verify_min_similarity")
	if err == nil {
		if v := cast.ToInt(raw); v >= 0 && v <= 100 {
			return v
		}
	}
	return o.cfg.VerifyMinSimilarity
}

// RunForDate executes the full pipeline for one release day. Exactly one
// run may be in flight; concurrent calls get ErrAlreadyRunning.
func (o *Orchestrator) RunForDate(ctx context.Context, day time.Time, withCovers bool) (*Summary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := time.Now().UTC()
	o.mu.Lock()
	o.cancel = cancel
	o.progress = models.ProgressReport{
		RunID:       uuid.NewString(),
		Running:     true,
		CurrentDate: day.Format("2006-01-02"),
		StartedAt:   &now,
	}
	o.mu.Unlock()

	summary, err := o.run(runCtx, day, withCovers)

	end := time.Now().UTC()
	o.update(func(p *models.ProgressReport) {
		p.Running = false
		p.EndedAt = &end
		if err != nil {
			p.Error = err.Error()
		}
		if summary != nil {
			p.RateLimited = summary.RateLimited
		}
	})
	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, day time.Time, withCovers bool) (*Summary, error) {
	summary := &Summary{Date: day.Format("2006-01-02")}

	// ── Scrape ──
	o.update(func(p *models.ProgressReport) { p.Message = "starting browser" })
	session, err := browser.NewSession(o.browserConfig())
	if err != nil {
		return summary, fmt.Errorf("browser: %w", err)
	}

	sc := scraper.New(session, o.cfg.BaseURL, o.pageSize(), o.cfg.CoversDir())
	albums, scrapeErr := sc.AlbumsForDate(ctx, day, withCovers, func(current, total int, msg string) {
		o.update(func(p *models.ProgressReport) {
			p.Progress = current
			p.Total = total
			p.Message = msg
		})
	})
	session.Close()
	if scrapeErr != nil {
		if errors.Is(scrapeErr, browser.ErrRateLimited) {
			summary.RateLimited = true
			return summary, nil
		}
		return summary, fmt.Errorf("scrape: %w", scrapeErr)
	}
	summary.Total = len(albums)

	if len(albums) == 0 {
		// An empty day is indistinguishable from being silently blocked;
		// flag it and leave the catalog untouched.
		summary.RateLimited = true
		log.Printf("[pipeline] no albums found for %s, leaving catalog untouched", summary.Date)
		return summary, nil
	}

	// ── Artifact ──
	artifactPath, err := o.writeArtifact(day, albums)
	if err != nil {
		return summary, fmt.Errorf("artifact: %w", err)
	}

	// ── Persist ──
	o.update(func(p *models.ProgressReport) { p.Message = "persisting albums" })
	for _, album := range albums {
		if err := ctx.Err(); err != nil {
			os.Remove(artifactPath)
			return summary, err
		}
		if err := o.albums.Upsert(album); err != nil {
			os.Remove(artifactPath)
			return summary, fmt.Errorf("persist %s: %w", album.ID, err)
		}
		summary.Persisted++
	}

	// ── Genres ──
	o.update(func(p *models.ProgressReport) { p.Message = "normalizing genres" })
	for _, album := range albums {
		if album.GenreRaw == nil {
			continue
		}
		parsed := genre.Parse(*album.GenreRaw)
		if err := o.genres.ReplaceParsed(album.ID, genre.Rows(album.ID, parsed)); err != nil {
			log.Printf("[pipeline] genre rows for %s: %v", album.ID, err)
		}
		for _, tax := range genre.Taxonomy(parsed) {
			if err := o.genres.UpsertTaxonomy(&tax); err != nil {
				log.Printf("[pipeline] taxonomy %s: %v", tax.Name, err)
			}
		}
	}
	if err := o.genres.RecomputeStats(); err != nil {
		log.Printf("[pipeline] recompute genre stats: %v", err)
	}

	// ── Verify ──
	threshold := o.threshold()
	o.update(func(p *models.ProgressReport) { p.Message = "verifying playability" })
	ver := verifier.New(o.browserConfig())
	defer ver.Close()
	for i, album := range albums {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, verr := ver.VerifyAlbum(ctx, album, threshold)
		if verr != nil {
			log.Printf("[pipeline] verify %s - %s: %v", album.BandName, album.Title, verr)
			continue
		}
		o.applyVerification(album, res)
		if res.Playable() {
			summary.Verified++
		}
		o.update(func(p *models.ProgressReport) {
			p.Progress = i + 1
			p.Total = len(albums)
			p.Message = fmt.Sprintf("verified %s - %s", album.BandName, album.Title)
		})
	}

	// ── Queue downloads ──
	summary.Queued = o.queueDownloads(albums)

	log.Printf("[pipeline] %s done: %d albums, %d verified, %d downloads queued",
		summary.Date, summary.Total, summary.Verified, summary.Queued)
	return summary, nil
}

func (o *Orchestrator) applyVerification(album *models.Album, res verifier.Result) {
	if res.YouTube != nil && res.YouTube.Found {
		if err := o.albums.SetVerification(album.ID, models.PlatformYouTube, res.YouTube); err != nil {
			log.Printf("[pipeline] store youtube verification for %s: %v", album.ID, err)
		} else {
			album.YouTubeEmbedURL = &res.YouTube.EmbedURL
			kind := res.YouTube.EmbedKind
			album.YouTubeEmbedKind = &kind
		}
	}
	if res.Bandcamp != nil && res.Bandcamp.Found {
		if err := o.albums.SetVerification(album.ID, models.PlatformBandcamp, res.Bandcamp); err != nil {
			log.Printf("[pipeline] store bandcamp verification for %s: %v", album.ID, err)
		}
	}
}

// queueDownloads enqueues audio fetches for albums verified as single
// YouTube videos. The post-scrape parallelism knob is applied before
// the burst is queued.
func (o *Orchestrator) queueDownloads(albums []*models.Album) int {
	if o.downloads == nil {
		return 0
	}
	if n := o.cfg.PostScrapeParallel; n >= 1 && n <= 10 {
		o.downloads.SetMaxParallel(n)
	}
	queued := 0
	for _, album := range albums {
		if album.YouTubeEmbedURL == nil || album.YouTubeEmbedKind == nil {
			continue
		}
		if *album.YouTubeEmbedKind != models.EmbedVideo {
			continue
		}
		if id := verifier.VideoIDFromEmbed(*album.YouTubeEmbedURL); id != "" {
			o.downloads.Download(id, false)
			queued++
		}
	}
	return queued
}

// ArtifactName is the on-disk name of a day's raw scrape output.
func ArtifactName(day time.Time) string {
	return fmt.Sprintf("albums_%s.json", day.Format("02-01-2006"))
}

func (o *Orchestrator) writeArtifact(day time.Time, albums []*models.Album) (string, error) {
	dir := o.cfg.ArtifactDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ArtifactName(day))
	data, err := json.MarshalIndent(albums, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ParseDay parses the DD-MM-YYYY day format used on the CLI and the admin
// endpoints.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse("02-01-2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q not DD-MM-YYYY", s)
	}
	return d, nil
}

// RunRange runs consecutive days with a pause between them. A failed day
// is logged and the range continues; the error list is returned.
func (o *Orchestrator) RunRange(ctx context.Context, start, end time.Time, withCovers bool) ([]*Summary, []error) {
	var summaries []*Summary
	var errs []error
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day != start {
			select {
			case <-time.After(interDayPause):
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
				return summaries, errs
			}
		}
		summary, err := o.RunForDate(ctx, day, withCovers)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			log.Printf("[pipeline] day %s failed: %v", day.Format("2006-01-02"), err)
			errs = append(errs, fmt.Errorf("%s: %w", day.Format("2006-01-02"), err))
			if errors.Is(err, context.Canceled) {
				return summaries, errs
			}
		}
	}
	return summaries, errs
}
