// Package scraper extracts album listings and per-album detail from the
// directory site through a headless-browser session.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/velkrow/metalvault/internal/browser"
	"github.com/velkrow/metalvault/internal/models"
)

const maxPageSize = 200

// Progress is called as the scraper advances; msg is human-readable.
type Progress func(current, total int, msg string)

type Scraper struct {
	session   *browser.Session
	baseURL   string
	pageSize  int
	coversDir string
	client    *http.Client
}

func New(session *browser.Session, baseURL string, pageSize int, coversDir string) *Scraper {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Scraper{
		session:   session,
		baseURL:   baseURL,
		pageSize:  pageSize,
		coversDir: coversDir,
		client:    &http.Client{Timeout: 45 * time.Second},
	}
}

// AlbumsForDate lists the target day's albums by paginating the month's
// search results and enriching each match. Cancellation is observed at
// page and per-album boundaries via ctx.
func (s *Scraper) AlbumsForDate(ctx context.Context, day time.Time, withCovers bool, progress Progress) ([]*models.Album, error) {
	target := day.Format("2006-01-02")
	log.Printf("[scraper] searching albums released on %s", target)

	var albums []*models.Album
	start := 0
	page := 0
	for {
		if err := ctx.Err(); err != nil {
			return albums, err
		}

		listing, err := s.fetchPage(ctx, day, start)
		if err != nil {
			return albums, fmt.Errorf("fetch page %d: %w", page+1, err)
		}
		if len(listing.Rows) == 0 {
			log.Printf("[scraper] no more rows at offset %d", start)
			break
		}

		matched := 0
		for _, cells := range listing.Rows {
			if err := ctx.Err(); err != nil {
				return albums, err
			}
			row, perr := ParseRow(cells)
			if perr != nil {
				log.Printf("[scraper] skipping row: %v", perr)
				continue
			}
			if row.ReleaseDate != target {
				continue
			}
			album := s.albumFromRow(row, day)
			if err := s.enrich(ctx, album, row, withCovers); err != nil {
				log.Printf("[scraper] enrichment failed for %s - %s: %v", album.BandName, album.Title, err)
			}
			albums = append(albums, album)
			matched++
			if progress != nil {
				progress(len(albums), listing.TotalRecords, fmt.Sprintf("scraped %s - %s", album.BandName, album.Title))
			}
		}
		log.Printf("[scraper] page %d: %d rows, %d matching %s", page+1, len(listing.Rows), matched, target)

		if len(listing.Rows) < s.pageSize {
			break
		}
		start += len(listing.Rows)
		page++
	}

	log.Printf("[scraper] found %d albums for %s", len(albums), target)
	return albums, nil
}

func (s *Scraper) fetchPage(ctx context.Context, day time.Time, start int) (*listingResponse, error) {
	params := url.Values{
		"sEcho":            {"1"},
		"iColumns":         {"4"},
		"sColumns":         {",,,"},
		"iDisplayStart":    {strconv.Itoa(start)},
		"iDisplayLength":   {strconv.Itoa(s.pageSize)},
		"sSearch":          {""},
		"bRegex":           {"false"},
		"iSortCol_0":       {"2"},
		"sSortDir_0":       {"asc"},
		"iSortingCols":     {"1"},
		"bSortable_0":      {"false"},
		"bSortable_1":      {"true"},
		"bSortable_2":      {"true"},
		"bSortable_3":      {"false"},
		"releaseYearFrom":  {strconv.Itoa(day.Year())},
		"releaseMonthFrom": {strconv.Itoa(int(day.Month()))},
		"releaseYearTo":    {strconv.Itoa(day.Year())},
		"releaseMonthTo":   {strconv.Itoa(int(day.Month()))},
	}
	searchURL := s.baseURL + "/search/ajax-advanced/searching/albums?" + params.Encode()

	if _, err := s.session.Navigate(ctx, searchURL); err != nil {
		return nil, err
	}
	body, err := s.session.Text(ctx)
	if err != nil {
		return nil, err
	}
	return ParseListing(body)
}

func (s *Scraper) albumFromRow(row *Row, day time.Time) *models.Album {
	return &models.Album{
		ID:             row.AlbumID,
		Title:          row.AlbumName,
		BandID:         row.BandID,
		BandName:       row.BandName,
		ReleaseDate:    day,
		ReleaseDateRaw: row.ReleaseDateRaw,
		ReleaseType:    row.ReleaseType,
	}
}

const coverLookupJS = `(function() {
	var img = document.querySelector('a.image img')
		|| document.querySelector('img.album_img')
		|| document.querySelector('img[src*="albums"]')
		|| document.querySelector('#album_img img');
	if (!img) {
		var info = document.querySelector('#album_info');
		if (info) img = info.querySelector('img');
	}
	return img ? img.src : '';
})()`

const detailsJS = `(function() {
	var info = {};
	var dl = document.querySelector('div#album_info dl');
	if (dl) {
		var dts = dl.querySelectorAll('dt');
		var dds = dl.querySelectorAll('dd');
		dts.forEach(function(dt, i) {
			if (dds[i]) {
				var key = dt.textContent.trim().toLowerCase().replace(/[^a-z0-9]/g, '_');
				var value = dds[i].textContent.trim();
				if (key && value) info[key] = value;
			}
		});
	}
	return info;
})()`

const tracklistJS = `(function() {
	var tracks = [];
	var table = document.querySelector('table.table_lyrics');
	if (!table) return tracks;
	table.querySelectorAll('tr').forEach(function(row) {
		var cells = row.querySelectorAll('td');
		if (cells.length < 2) return;
		var num = (cells[0].textContent || '').trim();
		var name = (cells[1].textContent || '').trim();
		var len = cells.length > 2 ? (cells[2].textContent || '').trim() : '';
		if (!num.match(/^\d+\.?$/)) return;
		var t = {number: num, name: name, length: len, lyrics_url: ''};
		var lyrics = cells[1].querySelector('a[href*="lyrics"]');
		if (lyrics) t.lyrics_url = lyrics.href;
		tracks.push(t);
	});
	return tracks;
})()`

const bandDetailsJS = `(function() {
	var info = {};
	var div = document.querySelector('#band_info');
	if (!div) return info;
	var dts = div.querySelectorAll('dt');
	var dds = div.querySelectorAll('dd');
	dts.forEach(function(dt, i) {
		if (!dds[i]) return;
		var key = dt.textContent.trim().toLowerCase();
		var value = dds[i].textContent.trim();
		if (key.indexOf('country of origin') !== -1) info.country_of_origin = value;
		else if (key.indexOf('location') !== -1) info.location = value;
		else if (key.indexOf('genre') !== -1) info.genre = value;
		else if (key.indexOf('themes') !== -1) info.themes = value;
		else if (key.indexOf('current label') !== -1) info.current_label = value;
		else if (key.indexOf('years active') !== -1) info.years_active = value;
	});
	return info;
})()`

const relatedLinksJS = `(function() {
	var out = [];
	document.querySelectorAll('a[href]').forEach(function(a) { out.push(a.href); });
	return out;
})()`

type rawTrack struct {
	Number    string `json:"number"`
	Name      string `json:"name"`
	Length    string `json:"length"`
	LyricsURL string `json:"lyrics_url"`
}

// enrich fills the album from its detail page, band page, and the band's
// related-links endpoint.
func (s *Scraper) enrich(ctx context.Context, album *models.Album, row *Row, withCovers bool) error {
	if row.AlbumURL == "" {
		return nil
	}

	if _, err := s.session.Navigate(ctx, row.AlbumURL); err != nil {
		return fmt.Errorf("album page: %w", err)
	}

	var coverURL string
	if err := s.session.Run(ctx, chromedp.Evaluate(coverLookupJS, &coverURL)); err == nil && coverURL != "" {
		album.CoverURL = &coverURL
		if withCovers {
			if path, derr := s.downloadCover(ctx, album.ID, coverURL); derr != nil {
				log.Printf("[scraper] cover download failed for %s: %v", album.ID, derr)
			} else {
				album.CoverPath = &path
			}
		}
	}

	details := map[string]string{}
	if err := s.session.Run(ctx, chromedp.Evaluate(detailsJS, &details)); err == nil && len(details) > 0 {
		album.Details = details
	}

	var raw []rawTrack
	if err := s.session.Run(ctx, chromedp.Evaluate(tracklistJS, &raw)); err == nil {
		for _, rt := range raw {
			if t, ok := TrackFromRaw(album.ID, rt.Number, rt.Name, rt.Length, rt.LyricsURL); ok {
				album.Tracks = append(album.Tracks, t)
			}
		}
	}

	if row.BandURL != "" {
		if err := s.enrichBand(ctx, album, row.BandURL); err != nil {
			log.Printf("[scraper] band enrichment failed for %s: %v", album.BandName, err)
		}
	}
	return nil
}

func (s *Scraper) enrichBand(ctx context.Context, album *models.Album, bandURL string) error {
	if _, err := s.session.Navigate(ctx, bandURL); err != nil {
		return fmt.Errorf("band page: %w", err)
	}

	facts := map[string]string{}
	if err := s.session.Run(ctx, chromedp.Evaluate(bandDetailsJS, &facts)); err != nil {
		return err
	}
	setOpt := func(dst **string, key string) {
		if v, ok := facts[key]; ok && v != "" {
			*dst = &v
		}
	}
	setOpt(&album.Country, "country_of_origin")
	setOpt(&album.Location, "location")
	setOpt(&album.GenreRaw, "genre")
	setOpt(&album.Themes, "themes")
	setOpt(&album.Label, "current_label")
	setOpt(&album.YearsActive, "years_active")

	if album.BandID == "" {
		return nil
	}
	linksURL := fmt.Sprintf("%s/link/ajax-list/type/band/id/%s", s.baseURL, album.BandID)
	if _, err := s.session.Navigate(ctx, linksURL); err != nil {
		return fmt.Errorf("related links: %w", err)
	}
	var hrefs []string
	if err := s.session.Run(ctx, chromedp.Evaluate(relatedLinksJS, &hrefs)); err != nil {
		return err
	}
	s.assignPlatformLinks(album, hrefs)
	return nil
}

// assignPlatformLinks keeps the first link seen per platform, in the
// page's order.
func (s *Scraper) assignPlatformLinks(album *models.Album, hrefs []string) {
	for _, href := range hrefs {
		platform, ok := PlatformFor(href)
		if !ok {
			continue
		}
		h := href
		switch platform {
		case models.PlatformBandcamp:
			if album.BandcampURL == nil {
				album.BandcampURL = &h
			}
		case models.PlatformYouTube:
			if album.YouTubeURL == nil {
				album.YouTubeURL = &h
			}
		case models.PlatformSpotify:
			if album.SpotifyURL == nil {
				album.SpotifyURL = &h
			}
		case models.PlatformDiscogs:
			if album.DiscogsURL == nil {
				album.DiscogsURL = &h
			}
		case models.PlatformLastFM:
			if album.LastFMURL == nil {
				album.LastFMURL = &h
			}
		case models.PlatformSoundCloud:
			if album.SoundCloudURL == nil {
				album.SoundCloudURL = &h
			}
		case models.PlatformTidal:
			if album.TidalURL == nil {
				album.TidalURL = &h
			}
		}
	}
}

// downloadCover fetches the cover image over plain HTTP; covers are served
// from a static CDN and need no browser.
func (s *Scraper) downloadCover(ctx context.Context, albumID, coverURL string) (string, error) {
	if err := os.MkdirAll(s.coversDir, 0o755); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cover fetch status %d", resp.StatusCode)
	}

	path := filepath.Join(s.coversDir, albumID+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
