package verifier

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/velkrow/metalvault/internal/browser"
	"github.com/velkrow/metalvault/internal/models"
)

const (
	// Sessions are recycled after this many albums to keep the browser's
	// memory bounded on long runs.
	recycleAfter = 50

	rebuildRetries  = 2
	interAlbumDelay = 2 * time.Second
)

// Result carries the per-platform outcome for one album.
type Result struct {
	YouTube  *models.VerificationResult
	Bandcamp *models.VerificationResult
}

// Playable reports whether either platform produced an accepted embed.
func (r Result) Playable() bool {
	return (r.YouTube != nil && r.YouTube.Found) || (r.Bandcamp != nil && r.Bandcamp.Found)
}

type Verifier struct {
	cfg       browser.Config
	session   *browser.Session
	processed int

	// Delay is the pause between consecutive albums; Recycle is how many
	// albums a session serves before being rebuilt.
	Delay   time.Duration
	Recycle int
}

// New prepares a verifier; the browser session is started lazily on the
// first album.
func New(cfg browser.Config) *Verifier {
	return &Verifier{cfg: cfg, Delay: interAlbumDelay, Recycle: recycleAfter}
}

func (v *Verifier) Close() {
	if v.session != nil {
		v.session.Close()
		v.session = nil
	}
}

func (v *Verifier) ensureSession() error {
	if v.session != nil {
		return nil
	}
	s, err := browser.NewSession(v.cfg)
	if err != nil {
		return err
	}
	v.session = s
	v.processed = 0
	return nil
}

func (v *Verifier) rebuild() error {
	v.Close()
	return v.ensureSession()
}

// VerifyAlbum checks both platforms for one album. A dead browser session
// is rebuilt and the album retried before giving up. Callers iterating
// many albums get the inter-album pacing for free.
func (v *Verifier) VerifyAlbum(ctx context.Context, album *models.Album, threshold int) (Result, error) {
	if v.processed > 0 && v.Delay > 0 {
		select {
		case <-time.After(v.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	var res Result
	var lastErr error
	for attempt := 0; attempt <= rebuildRetries; attempt++ {
		if err := v.ensureSession(); err != nil {
			return res, err
		}
		res, lastErr = v.verifyOnce(ctx, album, threshold)
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, context.Canceled) || !isConnectionError(lastErr) {
			return res, lastErr
		}
		log.Printf("[verifier] browser session lost, rebuilding (attempt %d/%d): %v",
			attempt+1, rebuildRetries, lastErr)
		if err := v.rebuild(); err != nil {
			return res, err
		}
	}
	if lastErr != nil {
		return res, lastErr
	}

	v.processed++
	if v.Recycle > 0 && v.processed >= v.Recycle {
		log.Printf("[verifier] recycling browser session after %d albums", v.processed)
		if err := v.rebuild(); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (v *Verifier) verifyOnce(ctx context.Context, album *models.Album, threshold int) (Result, error) {
	var res Result

	yt, err := v.verifyYouTube(ctx, album, threshold)
	if err != nil {
		return res, err
	}
	res.YouTube = yt

	bc, err := v.verifyBandcamp(ctx, album, threshold)
	if err != nil {
		return res, err
	}
	res.Bandcamp = bc
	return res, nil
}

// isConnectionError classifies failures that mean the browser process or
// its devtools socket is gone, as opposed to a page-level problem.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"websocket",
		"connection refused",
		"connection reset",
		"broken pipe",
		"target closed",
		"context deadline exceeded",
		"chrome failed to start",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
