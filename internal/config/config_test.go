package config

import (
	"testing"
	"time"

	"github.com/velkrow/metalvault/internal/models"
)

type fakeSettings []models.Setting

func (f fakeSettings) All() ([]models.Setting, error) { return f, nil }

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.VerifyMinSimilarity != 90 {
		t.Errorf("verify_min_similarity = %d", cfg.VerifyMinSimilarity)
	}
	if cfg.RequestDelay != 3*time.Second {
		t.Errorf("request delay = %s", cfg.RequestDelay)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MV_PORT", "9090")
	t.Setenv("MV_VERIFY_MIN_SIMILARITY", "75")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 || cfg.VerifyMinSimilarity != 75 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("MV_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestMergeFromDB(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.MergeFromDB(fakeSettings{
		{Key: "request_delay_seconds", Value: "5"},
		{Key: "verify_min_similarity", Value: "80"},
		{Key: "schedule_time", Value: `"04:30"`},
		{Key: "verify_min_similarity_bogus", Value: "1"},
		{Key: "max_parallel_downloads", Value: "0"}, // invalid, ignored
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RequestDelay != 5*time.Second {
		t.Errorf("request delay = %s", cfg.RequestDelay)
	}
	if cfg.VerifyMinSimilarity != 80 {
		t.Errorf("verify_min_similarity = %d", cfg.VerifyMinSimilarity)
	}
	if cfg.ScheduleTime != "04:30" {
		t.Errorf("schedule_time = %q", cfg.ScheduleTime)
	}
	if cfg.MaxParallel != 3 {
		t.Errorf("max_parallel = %d, invalid override must be ignored", cfg.MaxParallel)
	}
}

func TestMergeFromDBScraperTunables(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.MergeFromDB(fakeSettings{
		{Key: "retry_base_seconds", Value: "20"},
		{Key: "cloudflare_max_wait_seconds", Value: "60"},
		{Key: "cloudflare_retries", Value: "5"},
		{Key: "page_size", Value: "100"},
		{Key: "youtube_post_scrape_downloads", Value: "5"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RetryBase != 20*time.Second {
		t.Errorf("retry base = %s", cfg.RetryBase)
	}
	if cfg.ChallengeMaxWait != 60*time.Second {
		t.Errorf("challenge max wait = %s", cfg.ChallengeMaxWait)
	}
	if cfg.ChallengeRetries != 5 {
		t.Errorf("challenge retries = %d", cfg.ChallengeRetries)
	}
	if cfg.PageSize != 100 {
		t.Errorf("page size = %d", cfg.PageSize)
	}
	if cfg.PostScrapeParallel != 5 {
		t.Errorf("post-scrape downloads = %d", cfg.PostScrapeParallel)
	}
}

func TestMergeFromDBClampsRanges(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.MergeFromDB(fakeSettings{
		{Key: "max_parallel_downloads", Value: "50"},
		{Key: "download_timeout_seconds", Value: "30"},
		{Key: "page_size", Value: "500"},
		{Key: "cache_max_size_gb", Value: "500"},
		{Key: "youtube_post_scrape_downloads", Value: "0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxParallel != 3 {
		t.Errorf("max_parallel = %d, out-of-range override must be ignored", cfg.MaxParallel)
	}
	if cfg.DownloadTimeout != 600*time.Second {
		t.Errorf("download timeout = %s, out-of-range override must be ignored", cfg.DownloadTimeout)
	}
	if cfg.PageSize != 200 {
		t.Errorf("page size = %d, out-of-range override must be ignored", cfg.PageSize)
	}
	if cfg.CacheMaxSizeGB != 5 {
		t.Errorf("cache size = %.1f, out-of-range override must be ignored", cfg.CacheMaxSizeGB)
	}
	if cfg.PostScrapeParallel != 3 {
		t.Errorf("post-scrape downloads = %d, out-of-range override must be ignored", cfg.PostScrapeParallel)
	}
}

func TestMergeFromDBLegacyKeyAliases(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.MergeFromDB(fakeSettings{
		{Key: "youtube_cache_max_size_gb", Value: "10"},
		{Key: "youtube_parallel_downloads", Value: "6"},
		{Key: "youtube_download_timeout", Value: "120"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheMaxSizeGB != 10 {
		t.Errorf("cache size = %.1f", cfg.CacheMaxSizeGB)
	}
	if cfg.MaxParallel != 6 {
		t.Errorf("max_parallel = %d", cfg.MaxParallel)
	}
	if cfg.DownloadTimeout != 120*time.Second {
		t.Errorf("download timeout = %s", cfg.DownloadTimeout)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"cache size too big", "MV_CACHE_MAX_SIZE_GB", "200"},
		{"parallel too big", "MV_MAX_PARALLEL_DOWNLOADS", "11"},
		{"timeout too short", "MV_DOWNLOAD_TIMEOUT_SECONDS", "30"},
		{"page size too big", "MV_PAGE_SIZE", "500"},
		{"page size zero", "MV_PAGE_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s accepted", tt.key, tt.value)
			}
		})
	}
}

func TestScheduleClock(t *testing.T) {
	cfg := &Config{ScheduleTime: "03:15"}
	h, m := cfg.ScheduleClock()
	if h != 3 || m != 15 {
		t.Errorf("clock = %d:%d", h, m)
	}
}

func TestParseClockInvalid(t *testing.T) {
	for _, s := range []string{"25:00", "12:60", "noon", ""} {
		if _, err := parseClock(s); err == nil {
			t.Errorf("parseClock(%q) accepted", s)
		}
	}
}
