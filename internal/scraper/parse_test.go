package scraper

import (
	"testing"

	"github.com/velkrow/metalvault/internal/models"
)

func TestParseListing(t *testing.T) {
	body := `<pre>{"iTotalRecords": 2, "aaData": [["a","b","c","d"],["e","f","g","h"]]}</pre>`
	resp, err := ParseListing(body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", resp.TotalRecords)
	}
	if len(resp.Rows) != 2 || len(resp.Rows[0]) != 4 {
		t.Errorf("unexpected rows: %v", resp.Rows)
	}
}

func TestParseListingNoJSON(t *testing.T) {
	if _, err := ParseListing("<html><body>nothing here</body></html>"); err == nil {
		t.Error("expected error for body without JSON")
	}
}

func TestParseRow(t *testing.T) {
	cells := []string{
		`<a href="https://directory.example/bands/Gorgoroth/770">Gorgoroth</a>`,
		`<a href="https://directory.example/albums/Gorgoroth/Pentagram/5515">Pentagram</a>`,
		`Full-length`,
		`August 31st, 2025 <!-- 2025-08-31 -->`,
	}
	row, err := ParseRow(cells)
	if err != nil {
		t.Fatal(err)
	}
	if row.BandName != "Gorgoroth" || row.BandID != "770" {
		t.Errorf("band = %q/%q", row.BandName, row.BandID)
	}
	if row.AlbumName != "Pentagram" || row.AlbumID != "5515" {
		t.Errorf("album = %q/%q", row.AlbumName, row.AlbumID)
	}
	if row.ReleaseType != models.ReleaseFullLength {
		t.Errorf("type = %s", row.ReleaseType)
	}
	if row.ReleaseDate != "2025-08-31" {
		t.Errorf("date = %q", row.ReleaseDate)
	}
}

func TestParseRowMissingAlbumID(t *testing.T) {
	cells := []string{
		`<a href="https://directory.example/bands/X/1">X</a>`,
		`no link here`,
		`Demo`,
		`2025-01-01`,
	}
	if _, err := ParseRow(cells); err == nil {
		t.Error("expected error when album id is missing")
	}
}

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"August 31st, 2025 <!-- 2025-08-31 -->", "2025-08-31"},
		{"<!-- 2025-02-01 -->", "2025-02-01"},
		{"October 3rd, 2025", "2025-10-03"},
		{"March 22nd, 2024", "2024-03-22"},
		{"2025-12-05", "2025-12-05"},
		{"<!-- not-a-date --> January 1, 2026", "2026-01-01"},
	}
	for _, tt := range tests {
		if got := ParseReleaseDate(tt.raw); got != tt.want {
			t.Errorf("ParseReleaseDate(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeReleaseType(t *testing.T) {
	tests := []struct {
		in   string
		want models.ReleaseType
	}{
		{"Full-length", models.ReleaseFullLength},
		{"EP", models.ReleaseEP},
		{"Single", models.ReleaseSingle},
		{"Demo", models.ReleaseDemo},
		{"Compilation", models.ReleaseCompilation},
		{"Live album", models.ReleaseLive},
		{"Split", models.ReleaseSplit},
		{"Boxed set", models.ReleaseBoxedSet},
		{"Video", models.ReleaseOther},
	}
	for _, tt := range tests {
		if got := NormalizeReleaseType(tt.in); got != tt.want {
			t.Errorf("NormalizeReleaseType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPlatformFor(t *testing.T) {
	tests := []struct {
		url  string
		want models.Platform
		ok   bool
	}{
		{"https://band.bandcamp.com/album/x", models.PlatformBandcamp, true},
		{"https://www.youtube.com/watch?v=abc", models.PlatformYouTube, true},
		{"https://youtu.be/abc", models.PlatformYouTube, true},
		{"https://open.spotify.com/album/xyz", models.PlatformSpotify, true},
		{"https://www.discogs.com/artist/1", models.PlatformDiscogs, true},
		{"https://www.last.fm/music/X", models.PlatformLastFM, true},
		{"https://soundcloud.com/band", models.PlatformSoundCloud, true},
		{"https://listen.tidal.com/album/1", models.PlatformTidal, true},
		{"https://www.facebook.com/band", "", false},
	}
	for _, tt := range tests {
		got, ok := PlatformFor(tt.url)
		if ok != tt.ok || got != tt.want {
			t.Errorf("PlatformFor(%q) = %s/%v, want %s/%v", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTrackFromRaw(t *testing.T) {
	tr, ok := TrackFromRaw("5515", "3.", "The Ritual", "4:32", "https://directory.example/lyrics/1")
	if !ok {
		t.Fatal("valid track rejected")
	}
	if tr.TrackNumber != 3 || tr.Name != "The Ritual" {
		t.Errorf("track = %+v", tr)
	}
	if tr.Length == nil || *tr.Length != "4:32" {
		t.Error("length not kept")
	}

	if _, ok := TrackFromRaw("1", "x", "Name", "", ""); ok {
		t.Error("non-numeric number accepted")
	}
	if _, ok := TrackFromRaw("1", "1", "", "", ""); ok {
		t.Error("empty name accepted")
	}
	if _, ok := TrackFromRaw("1", "1", "Song (loading lyrics...)", "", ""); ok {
		t.Error("placeholder name accepted")
	}
	if _, ok := TrackFromRaw("1", "0", "Intro", "", ""); ok {
		t.Error("zero track number accepted")
	}
}

func TestExtractIDs(t *testing.T) {
	if got := BandID("https://directory.example/bands/Dark_Funeral/1337"); got != "1337" {
		t.Errorf("BandID = %q", got)
	}
	if got := AlbumID("https://directory.example/albums/Dark_Funeral/Nosferatu/99"); got != "99" {
		t.Errorf("AlbumID = %q", got)
	}
	if got := BandID(""); got != "" {
		t.Errorf("BandID(empty) = %q", got)
	}
}
