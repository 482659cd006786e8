// Package browser owns the headless-browser sessions used by the scraper
// and the verifier. A session paces its navigations, retries with backoff,
// and waits out anti-bot interstitials.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36 Edg/118.0.2088.46",
}

var viewports = [][2]int{
	{1920, 1080},
	{1600, 900},
	{1440, 900},
	{1366, 768},
}

// ErrChallenge is returned when an anti-bot interstitial does not clear
// within the configured wait.
var ErrChallenge = errors.New("challenge page did not clear")

// ErrRateLimited marks a navigation rejected upstream with HTTP 429.
var ErrRateLimited = errors.New("rate limited by upstream")

type Config struct {
	Headless         bool
	BaseDelay        time.Duration // minimum delay between navigations
	NavTimeout       time.Duration // per-navigation timeout
	MaxRetries       int
	RetryBase        time.Duration
	ChallengeMaxWait time.Duration
	ChallengeRetries int // reload-and-wait rounds before giving up
}

func DefaultConfig() Config {
	return Config{
		Headless:         true,
		BaseDelay:        3 * time.Second,
		NavTimeout:       45 * time.Second,
		MaxRetries:       7,
		RetryBase:        10 * time.Second,
		ChallengeMaxWait: 30 * time.Second,
		ChallengeRetries: 3,
	}
}

type Session struct {
	cfg         Config
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	limiter     *rate.Limiter
	rng         *rand.Rand
	requests    int
}

// NewSession starts a browser with a randomized user agent and viewport.
func NewSession(cfg Config) (*Session, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ua := userAgents[rng.Intn(len(userAgents))]
	vp := viewports[rng.Intn(len(viewports))]

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.WindowSize(vp[0], vp[1]),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	// Force the browser process up front so a broken install fails fast.
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		limiter:     rate.NewLimiter(rate.Every(cfg.BaseDelay), 1),
		rng:         rng,
	}
	log.Printf("[browser] session started (ua=%q viewport=%dx%d)", ua[:30]+"...", vp[0], vp[1])
	return s, nil
}

func (s *Session) Close() {
	s.cancelCtx()
	s.cancelAlloc()
}

// Run executes chromedp actions against the session's page with the
// navigation timeout applied.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// pace enforces the base inter-request delay with jitter, plus a longer
// cooldown every tenth request.
func (s *Session) pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	// Jitter in [0.8, 1.2] over an extra fraction of the base delay.
	jitter := time.Duration(float64(s.cfg.BaseDelay) * (0.8 + s.rng.Float64()*0.4) * 0.2)
	s.requests++
	if s.requests%10 == 0 {
		cooldown := 3*time.Second + time.Duration(s.rng.Int63n(int64(3*time.Second)))
		log.Printf("[browser] cooldown after %d requests: %s", s.requests, cooldown.Round(time.Millisecond))
		jitter += cooldown
	}
	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads a URL, waiting out pacing, retrying transient failures
// with exponential backoff, honoring 429 Retry-After, and detecting
// challenge interstitials. Returns the rendered HTML.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt, lastErr)
			log.Printf("[browser] retry %d/%d for %s in %s: %v", attempt, s.cfg.MaxRetries, url, delay.Round(time.Second), lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err := s.pace(ctx); err != nil {
			return "", err
		}

		html, err := s.navigateOnce(ctx, url)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) {
			return "", err
		}
	}
	return "", fmt.Errorf("navigation failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func (s *Session) navigateOnce(ctx context.Context, url string) (string, error) {
	var status int64
	var retryAfter string
	err := s.Run(ctx,
		chromedp.ActionFunc(func(c context.Context) error {
			resp, err := chromedp.RunResponse(c, chromedp.Navigate(url))
			if err != nil {
				return err
			}
			if resp != nil {
				status = resp.Status
				if v, ok := resp.Headers["Retry-After"]; ok {
					retryAfter, _ = v.(string)
				}
			}
			return nil
		}),
	)
	if err != nil {
		return "", err
	}
	if status == 429 {
		if secs, perr := strconv.Atoi(strings.TrimSpace(retryAfter)); perr == nil && secs > 0 {
			log.Printf("[browser] 429 from upstream, honoring Retry-After %ds", secs)
			select {
			case <-time.After(time.Duration(secs) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "", ErrRateLimited
	}
	if status >= 500 {
		return "", fmt.Errorf("upstream status %d", status)
	}

	if err := s.waitChallenge(ctx); err != nil {
		return "", err
	}

	var html string
	if err := s.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *Session) retryDelay(attempt int, lastErr error) time.Duration {
	d := s.cfg.RetryBase * time.Duration(1<<uint(attempt-1))
	if d > 300*time.Second {
		d = 300 * time.Second
	}
	return d
}

const challengeMarkerJS = `(function() {
	var sels = ['#cf-challenge-running', '.cf-browser-verification', '[data-ray]', '.challenge-running'];
	for (var i = 0; i < sels.length; i++) {
		if (document.querySelector(sels[i])) return true;
	}
	var t = document.title.toLowerCase();
	return t.indexOf('just a moment') !== -1 || t.indexOf('cloudflare') !== -1;
})()`

// waitChallenge watches for anti-bot interstitial markers, waiting up to
// ChallengeMaxWait per round and reloading the page between rounds.
func (s *Session) waitChallenge(ctx context.Context) error {
	present, err := s.challengeShown(ctx)
	if err != nil || !present {
		return err
	}

	rounds := s.cfg.ChallengeRetries
	if rounds < 1 {
		rounds = 1
	}
	for round := 1; round <= rounds; round++ {
		log.Printf("[browser] challenge page detected, waiting for it to clear (round %d/%d)", round, rounds)
		deadline := time.Now().Add(s.cfg.ChallengeMaxWait)
		for time.Now().Before(deadline) {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			if present, err = s.challengeShown(ctx); err != nil {
				return err
			}
			if !present {
				log.Println("[browser] challenge cleared")
				return nil
			}
		}
		if round < rounds {
			if err := s.Run(ctx, chromedp.Reload()); err != nil {
				return err
			}
		}
	}
	return ErrChallenge
}

func (s *Session) challengeShown(ctx context.Context) (bool, error) {
	var present bool
	err := s.Run(ctx, chromedp.Evaluate(challengeMarkerJS, &present))
	return present, err
}

// Text fetches the page body text, used for JSON endpoints rendered by the
// browser.
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.Run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}
