package scraper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/velkrow/metalvault/internal/models"
)

var (
	bandIDRe  = regexp.MustCompile(`bands/.*?/(\d+)`)
	albumIDRe = regexp.MustCompile(`albums/.*?/(\d+)`)
	hrefRe    = regexp.MustCompile(`href=["']([^"']+)["']`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	ordinalRe = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)
)

// listingResponse is the DataTables-style payload of the search endpoint.
type listingResponse struct {
	TotalRecords int        `json:"iTotalRecords"`
	Rows         [][]string `json:"aaData"`
}

// ParseListing decodes one page of the paginated search response.
func ParseListing(body string) (*listingResponse, error) {
	// The browser may wrap the JSON in <pre> when rendering it.
	body = strings.TrimSpace(body)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in listing response")
	}
	var resp listingResponse
	if err := json.Unmarshal([]byte(body[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &resp, nil
}

// Row is one parsed listing row before enrichment.
type Row struct {
	BandName       string
	BandID         string
	BandURL        string
	AlbumName      string
	AlbumID        string
	AlbumURL       string
	ReleaseType    models.ReleaseType
	ReleaseDate    string // YYYY-MM-DD
	ReleaseDateRaw string
}

// ParseRow decodes a 4-cell listing row: band link, album link, type, date.
func ParseRow(cells []string) (*Row, error) {
	if len(cells) < 4 {
		return nil, fmt.Errorf("row has %d cells, want 4", len(cells))
	}

	bandURL := extractHref(cells[0])
	albumURL := extractHref(cells[1])
	r := &Row{
		BandName:       stripTags(cells[0]),
		BandURL:        bandURL,
		BandID:         ExtractID(bandURL, bandIDRe),
		AlbumName:      stripTags(cells[1]),
		AlbumURL:       albumURL,
		AlbumID:        ExtractID(albumURL, albumIDRe),
		ReleaseType:    NormalizeReleaseType(strings.TrimSpace(cells[2])),
		ReleaseDateRaw: strings.TrimSpace(cells[3]),
	}
	r.ReleaseDate = ParseReleaseDate(r.ReleaseDateRaw)
	if r.AlbumID == "" {
		return nil, fmt.Errorf("no album id in %q", cells[1])
	}
	return r, nil
}

func extractHref(html string) string {
	if m := hrefRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

func stripTags(html string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(html, ""))
}

// ExtractID pulls the numeric id out of a directory-site URL.
func ExtractID(url string, re *regexp.Regexp) string {
	if url == "" {
		return ""
	}
	if m := re.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// BandID extracts the band id from a band page URL.
func BandID(url string) string { return ExtractID(url, bandIDRe) }

// AlbumID extracts the album id from an album page URL.
func AlbumID(url string) string { return ExtractID(url, albumIDRe) }

// ParseReleaseDate normalizes the listing date cell to YYYY-MM-DD. The cell
// usually carries the ISO date in an HTML comment ("August 31st, 2025
// <!-- 2025-08-31 -->"); the human-readable form is the fallback.
func ParseReleaseDate(raw string) string {
	if i := strings.Index(raw, "<!--"); i >= 0 {
		if j := strings.Index(raw, "-->"); j > i {
			iso := strings.TrimSpace(raw[i+4 : j])
			if len(iso) == 10 {
				if _, err := time.Parse("2006-01-02", iso); err == nil {
					return iso
				}
			}
		}
	}

	clean := strings.TrimSpace(stripTags(raw))
	clean = ordinalRe.ReplaceAllString(clean, "$1")
	for _, layout := range []string{"January 2, 2006", "January 2 2006", "2 January 2006", "2006-01-02"} {
		if d, err := time.Parse(layout, clean); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return clean
}

// NormalizeReleaseType maps the site's release-type labels onto the enum.
func NormalizeReleaseType(s string) models.ReleaseType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full-length":
		return models.ReleaseFullLength
	case "ep":
		return models.ReleaseEP
	case "single":
		return models.ReleaseSingle
	case "demo":
		return models.ReleaseDemo
	case "compilation", "boxed set / compilation":
		return models.ReleaseCompilation
	case "live album":
		return models.ReleaseLive
	case "split", "split album":
		return models.ReleaseSplit
	case "boxed set":
		return models.ReleaseBoxedSet
	default:
		return models.ReleaseOther
	}
}

// platformPatterns maps URL substrings to platforms, checked in priority
// order.
var platformPatterns = []struct {
	platform models.Platform
	hosts    []string
}{
	{models.PlatformBandcamp, []string{"bandcamp.com"}},
	{models.PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{models.PlatformSpotify, []string{"spotify.com", "open.spotify.com"}},
	{models.PlatformDiscogs, []string{"discogs.com"}},
	{models.PlatformLastFM, []string{"last.fm", "lastfm.com", "www.last.fm"}},
	{models.PlatformSoundCloud, []string{"soundcloud.com"}},
	{models.PlatformTidal, []string{"tidal.com", "listen.tidal.com"}},
}

// PlatformFor classifies an external link by host. The second return is
// false for unrecognized hosts.
func PlatformFor(url string) (models.Platform, bool) {
	lower := strings.ToLower(url)
	for _, p := range platformPatterns {
		for _, host := range p.hosts {
			if strings.Contains(lower, host) {
				return p.platform, true
			}
		}
	}
	return "", false
}

// TrackFromRaw validates and converts one scraped tracklist entry.
func TrackFromRaw(albumID, number, name, length, lyricsURL string) (models.Track, bool) {
	number = strings.TrimSuffix(strings.TrimSpace(number), ".")
	var n int
	if _, err := fmt.Sscanf(number, "%d", &n); err != nil || n <= 0 {
		return models.Track{}, false
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "(loading lyrics...)") {
		return models.Track{}, false
	}
	t := models.Track{AlbumID: albumID, TrackNumber: n, Name: name}
	if l := strings.TrimSpace(length); l != "" {
		t.Length = &l
	}
	if u := strings.TrimSpace(lyricsURL); u != "" {
		t.LyricsURL = &u
	}
	return t, true
}
