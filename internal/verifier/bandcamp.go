package verifier

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/velkrow/metalvault/internal/models"
)

var bandcampAlbumIDRe = regexp.MustCompile(`album=(\d+)`)

// BandcampEmbed builds the canonical embedded-player URL for an album id.
func BandcampEmbed(albumID string) string {
	return "https://bandcamp.com/EmbeddedPlayer/album=" + albumID +
		"/size=large/bgcol=333333/linkcol=0f91ff/tracklist=true/artwork=small/transparent=true/"
}

// BandcampIframeFallback wraps an album page in the standard 350x470
// player iframe, used when the page exposes no numeric album id.
func BandcampIframeFallback(albumURL string) string {
	return fmt.Sprintf(
		`<iframe style="border: 0; width: 350px; height: 470px;" src="%s" seamless></iframe>`,
		albumURL)
}

const discographyJS = `(function() {
	var out = [];
	document.querySelectorAll('#music-grid li a, .music-grid li a, ol.editable-grid li a').forEach(function(a) {
		var titleEl = a.querySelector('.title') || a;
		var title = (titleEl.textContent || '').trim().split('\n')[0].trim();
		if (title && a.href && a.href.indexOf('/album/') !== -1) {
			out.push({title: title, href: a.href});
		}
	});
	return out.slice(0, 50);
})()`

// verifyBandcamp matches an album against the band's Bandcamp discography
// and resolves the embedded-player URL for the winner.
func (v *Verifier) verifyBandcamp(ctx context.Context, album *models.Album, threshold int) (*models.VerificationResult, error) {
	if album.BandcampURL == nil {
		return nil, nil
	}

	musicURL := discographyURL(*album.BandcampURL)
	if _, err := v.session.Navigate(ctx, musicURL); err != nil {
		return nil, fmt.Errorf("bandcamp page: %w", err)
	}

	var items []candidate
	if err := v.session.Run(ctx, chromedp.Evaluate(discographyJS, &items)); err != nil {
		return nil, fmt.Errorf("bandcamp discography: %w", err)
	}
	if len(items) == 0 {
		return &models.VerificationResult{Found: false}, nil
	}

	var bestItem *candidate
	bestScore := 0
	for i, item := range items {
		if score := Score(album.BandName, album.Title, item.Title); score > bestScore {
			bestScore = score
			bestItem = &items[i]
		}
	}
	if bestItem == nil || !Accepted(bestScore, threshold) {
		log.Printf("[verifier] bandcamp: no acceptable match for %s - %s (best %d)",
			album.BandName, album.Title, bestScore)
		return &models.VerificationResult{Found: false, MatchScore: bestScore}, nil
	}

	embedURL, err := v.resolveEmbed(ctx, bestItem.Href)
	if err != nil {
		return nil, err
	}
	if embedURL == "" {
		embedURL = BandcampIframeFallback(bestItem.Href)
	}
	return &models.VerificationResult{
		Found:        true,
		EmbedURL:     embedURL,
		MatchScore:   bestScore,
		MatchedTitle: bestItem.Title,
		EmbedKind:    models.EmbedPlaylist,
	}, nil
}

// resolveEmbed loads the album page and digs the numeric album id out of
// its embedded-player markup.
func (v *Verifier) resolveEmbed(ctx context.Context, albumURL string) (string, error) {
	html, err := v.session.Navigate(ctx, albumURL)
	if err != nil {
		return "", fmt.Errorf("bandcamp album page: %w", err)
	}
	if m := bandcampAlbumIDRe.FindStringSubmatch(html); m != nil {
		return BandcampEmbed(m[1]), nil
	}
	return "", nil
}

// discographyURL normalizes a band link to its /music listing.
func discographyURL(bandURL string) string {
	trimmed := strings.TrimRight(bandURL, "/")
	if strings.HasSuffix(trimmed, "/music") || strings.Contains(trimmed, "/album/") {
		return bandURL
	}
	return trimmed + "/music"
}
