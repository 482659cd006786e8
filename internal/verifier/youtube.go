package verifier

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/velkrow/metalvault/internal/models"
)

var (
	videoIDRe    = regexp.MustCompile(`(?:[?&]v=|youtu\.be/|/embed/|/shorts/)([A-Za-z0-9_-]{11})`)
	playlistIDRe = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]+)`)
	channelRe    = regexp.MustCompile(`youtube\.com/(channel/|c/|user/|@)`)
)

// YouTubeVideoEmbed builds the privacy-enhanced embed URL for a video.
func YouTubeVideoEmbed(videoID string) string {
	return "https://www.youtube-nocookie.com/embed/" + videoID
}

// YouTubePlaylistEmbed builds the privacy-enhanced embed URL for a playlist.
func YouTubePlaylistEmbed(playlistID string) string {
	return "https://www.youtube-nocookie.com/embed/videoseries?list=" + playlistID
}

// VideoIDFromEmbed recovers the video id from an embed URL, or "" for
// playlists and foreign URLs.
func VideoIDFromEmbed(embedURL string) string {
	if strings.Contains(embedURL, "videoseries") {
		return ""
	}
	if m := videoIDRe.FindStringSubmatch(embedURL); m != nil {
		return m[1]
	}
	return ""
}

// IsChannelURL reports whether a profile link points at a channel rather
// than a concrete video or playlist.
func IsChannelURL(raw string) bool {
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "youtube.com") {
		return false
	}
	if playlistIDRe.MatchString(raw) || videoIDRe.MatchString(raw) {
		return false
	}
	return channelRe.MatchString(lower)
}

// channelTabURLs lists the channel pages scanned in order: uploads
// first, then playlists.
func channelTabURLs(channelURL string) []string {
	trimmed := strings.TrimRight(channelURL, "/")
	return []string{trimmed + "/videos", trimmed + "/playlists"}
}

// candidate is one search result or channel upload under consideration.
type candidate struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

const searchResultsJS = `(function() {
	var out = [];
	document.querySelectorAll('a#video-title, a.yt-simple-endpoint#video-title, a#video-title-link').forEach(function(a) {
		var title = (a.getAttribute('title') || a.textContent || '').trim();
		if (title && a.href) out.push({title: title, href: a.href});
	});
	if (out.length === 0) {
		document.querySelectorAll('ytd-video-renderer a[href*="watch"], ytd-playlist-renderer a[href*="list="], ytd-grid-playlist-renderer a[href*="list="]').forEach(function(a) {
			var title = (a.getAttribute('title') || a.textContent || '').trim();
			if (title && a.href) out.push({title: title, href: a.href});
		});
	}
	return out.slice(0, 20);
})()`

// verifyYouTube finds the best playable YouTube match for an album.
// A direct video or playlist URL on the band's profile short-circuits the
// search with a full score; a channel URL gets its uploads and playlists
// scanned before falling back to a global search.
func (v *Verifier) verifyYouTube(ctx context.Context, album *models.Album, threshold int) (*models.VerificationResult, error) {
	if album.YouTubeURL != nil {
		if res := directMatch(*album.YouTubeURL, album.Title); res != nil {
			return res, nil
		}
		if IsChannelURL(*album.YouTubeURL) {
			res, err := v.scanChannel(ctx, *album.YouTubeURL, album, threshold)
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
		}
	}

	query := fmt.Sprintf("%s %s full album", album.BandName, album.Title)
	searchURL := "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
	if _, err := v.session.Navigate(ctx, searchURL); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	var candidates []candidate
	if err := v.session.Run(ctx, chromedp.Evaluate(searchResultsJS, &candidates)); err != nil {
		return nil, fmt.Errorf("youtube results: %w", err)
	}
	if len(candidates) == 0 {
		return &models.VerificationResult{Found: false}, nil
	}

	best := bestCandidate(album, candidates)
	if !best.Found || !Accepted(best.MatchScore, threshold) {
		log.Printf("[verifier] youtube: no acceptable match for %s - %s (best %d)",
			album.BandName, album.Title, best.MatchScore)
		return &models.VerificationResult{Found: false, MatchScore: best.MatchScore}, nil
	}
	return &best, nil
}

// scanChannel walks the band channel's uploads and playlists tabs. A hit
// clearing the threshold wins before any global search; nil means keep
// looking.
func (v *Verifier) scanChannel(ctx context.Context, channelURL string, album *models.Album, threshold int) (*models.VerificationResult, error) {
	for _, tab := range channelTabURLs(channelURL) {
		if _, err := v.session.Navigate(ctx, tab); err != nil {
			return nil, fmt.Errorf("youtube channel: %w", err)
		}
		var items []candidate
		if err := v.session.Run(ctx, chromedp.Evaluate(searchResultsJS, &items)); err != nil {
			return nil, fmt.Errorf("youtube channel items: %w", err)
		}
		if best := bestCandidate(album, items); best.Found && Accepted(best.MatchScore, threshold) {
			log.Printf("[verifier] youtube: channel match for %s - %s (%d)",
				album.BandName, album.Title, best.MatchScore)
			return &best, nil
		}
	}
	return nil, nil
}

// bestCandidate scores every candidate and keeps the top one that yields
// a valid embed.
func bestCandidate(album *models.Album, candidates []candidate) models.VerificationResult {
	best := models.VerificationResult{Found: false}
	for _, c := range candidates {
		score := Score(album.BandName, album.Title, c.Title)
		if score <= best.MatchScore {
			continue
		}
		embedURL, kind, ok := embedFromURL(c.Href)
		if !ok {
			continue
		}
		best = models.VerificationResult{
			Found:        true,
			EmbedURL:     embedURL,
			MatchScore:   score,
			MatchedTitle: c.Title,
			EmbedKind:    kind,
		}
	}
	return best
}

// directMatch accepts a profile link that already points at a concrete
// video or playlist.
func directMatch(profileURL, albumTitle string) *models.VerificationResult {
	embedURL, kind, ok := embedFromURL(profileURL)
	if !ok {
		return nil
	}
	return &models.VerificationResult{
		Found:        true,
		EmbedURL:     embedURL,
		MatchScore:   100,
		MatchedTitle: albumTitle,
		EmbedKind:    kind,
	}
}

// embedFromURL converts a watch or playlist URL into its embed form.
// Playlist links win over a video id in the same URL.
func embedFromURL(raw string) (string, models.EmbedKind, bool) {
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "youtube.com") && !strings.Contains(lower, "youtu.be") {
		return "", "", false
	}
	if m := playlistIDRe.FindStringSubmatch(raw); m != nil {
		return YouTubePlaylistEmbed(m[1]), models.EmbedPlaylist, true
	}
	if m := videoIDRe.FindStringSubmatch(raw); m != nil {
		return YouTubeVideoEmbed(m[1]), models.EmbedVideo, true
	}
	return "", "", false
}
