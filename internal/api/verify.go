package api

import (
	"context"
	"log"
	"time"

	"github.com/velkrow/metalvault/internal/browser"
	"github.com/velkrow/metalvault/internal/models"
	"github.com/velkrow/metalvault/internal/verifier"
)

// runBulkVerify re-checks a batch of unverified albums in the background.
// Results land directly on the album rows; progress goes out over the
// websocket hub. A zero delay keeps the verifier's default pacing.
func (s *Server) runBulkVerify(albums []*models.Album, threshold int, delay time.Duration) {
	cfg := browser.DefaultConfig()
	cfg.Headless = s.config.Headless
	cfg.BaseDelay = s.config.RequestDelay
	cfg.NavTimeout = s.config.NavTimeout
	cfg.MaxRetries = s.config.MaxRetries
	if s.config.RetryBase > 0 {
		cfg.RetryBase = s.config.RetryBase
	}
	if s.config.ChallengeMaxWait > 0 {
		cfg.ChallengeMaxWait = s.config.ChallengeMaxWait
	}
	if s.config.ChallengeRetries > 0 {
		cfg.ChallengeRetries = s.config.ChallengeRetries
	}

	ver := verifier.New(cfg)
	if delay > 0 {
		ver.Delay = delay
	}
	defer ver.Close()

	ctx := context.Background()
	verified := 0
	for i, album := range albums {
		res, err := ver.VerifyAlbum(ctx, album, threshold)
		if err != nil {
			log.Printf("[api] bulk verify %s - %s: %v", album.BandName, album.Title, err)
			continue
		}
		if res.YouTube != nil && res.YouTube.Found {
			if err := s.albumRepo.SetVerification(album.ID, models.PlatformYouTube, res.YouTube); err != nil {
				log.Printf("[api] store youtube verification for %s: %v", album.ID, err)
			}
		}
		if res.Bandcamp != nil && res.Bandcamp.Found {
			if err := s.albumRepo.SetVerification(album.ID, models.PlatformBandcamp, res.Bandcamp); err != nil {
				log.Printf("[api] store bandcamp verification for %s: %v", album.ID, err)
			}
		}
		if res.Playable() {
			verified++
		}
		s.wsHub.Broadcast("verify:progress", map[string]interface{}{
			"done":     i + 1,
			"total":    len(albums),
			"verified": verified,
		})
	}
	s.wsHub.Broadcast("verify:done", map[string]interface{}{
		"checked":  len(albums),
		"verified": verified,
	})
	log.Printf("[api] bulk verify done: %d/%d verified", verified, len(albums))
}
