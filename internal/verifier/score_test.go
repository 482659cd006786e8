package verifier

import (
	"strings"
	"testing"

	"github.com/velkrow/metalvault/internal/models"
)

func TestScoreFullAlbumUpload(t *testing.T) {
	got := Score("AngelMaker", "This Used to Be Heaven", "AngelMaker - This Used to Be Heaven (Full Album 2025)")
	if got != 100 {
		t.Errorf("score = %d, want 100", got)
	}
	if !Accepted(got, 90) {
		t.Error("full-album upload must clear the default threshold")
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	band, album := "AngelMaker", "This Used to Be Heaven"
	candidate := "AngelMaker - This Used to Be Heaven (Full Album 2025)"

	same := Score(band, album, candidate)
	upper := Score(band, album, strings.ToUpper(candidate))
	lower := Score(band, album, strings.ToLower(candidate))
	if upper != same || lower != same {
		t.Errorf("case changed the score: same=%d upper=%d lower=%d", same, upper, lower)
	}
	if !Accepted(upper, 90) {
		t.Errorf("shouted candidate scored %d, must clear the default threshold", upper)
	}
}

func TestScoreThresholdInclusive(t *testing.T) {
	if !Accepted(90, 90) {
		t.Error("score equal to threshold must be accepted")
	}
	if Accepted(89, 90) {
		t.Error("score below threshold must be rejected")
	}
}

func TestScoreUnrelatedCandidate(t *testing.T) {
	got := Score("Gorgoroth", "Pentagram", "Top 10 Cooking Tips for Beginners")
	if got >= 70 {
		t.Errorf("unrelated candidate scored %d", got)
	}
}

func TestScoreEmptyCandidate(t *testing.T) {
	if got := Score("Band", "Album", ""); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

func TestScoreBoostCapped(t *testing.T) {
	got := Score("Mayhem", "De Mysteriis Dom Sathanas", "Mayhem De Mysteriis Dom Sathanas full album")
	if got > 100 {
		t.Errorf("score = %d, must not exceed 100", got)
	}
}

func TestScorePartialTitleMatch(t *testing.T) {
	// Band and album both appear but surrounded by extra channel text.
	got := Score("Dark Funeral", "We Are the Apocalypse",
		"Dark Funeral - We Are the Apocalypse | Official Visualizer Compilation")
	if got < 70 {
		t.Errorf("score = %d, want >= 70 for a strong partial match", got)
	}
}

func TestEmbedFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
		kind models.EmbedKind
		ok   bool
	}{
		{
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ",
			models.EmbedVideo, true,
		},
		{
			"https://youtu.be/dQw4w9WgXcQ",
			"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ",
			models.EmbedVideo, true,
		},
		{
			"https://www.youtube.com/playlist?list=PLabc123",
			"https://www.youtube-nocookie.com/embed/videoseries?list=PLabc123",
			models.EmbedPlaylist, true,
		},
		{
			// Playlist id wins over the video id in the same URL.
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc123",
			"https://www.youtube-nocookie.com/embed/videoseries?list=PLabc123",
			models.EmbedPlaylist, true,
		},
		{"https://www.youtube.com/@somechannel", "", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", "", false},
	}
	for _, tt := range tests {
		got, kind, ok := embedFromURL(tt.url)
		if ok != tt.ok || got != tt.want || kind != tt.kind {
			t.Errorf("embedFromURL(%q) = %q/%s/%v, want %q/%s/%v",
				tt.url, got, kind, ok, tt.want, tt.kind, tt.ok)
		}
	}
}

func TestBandcampEmbedExactURL(t *testing.T) {
	got := BandcampEmbed("123456789")
	want := "https://bandcamp.com/EmbeddedPlayer/album=123456789/size=large/bgcol=333333/linkcol=0f91ff/tracklist=true/artwork=small/transparent=true/"
	if got != want {
		t.Errorf("BandcampEmbed = %q, want %q", got, want)
	}
}

func TestDiscographyURLCases(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://band.bandcamp.com", "https://band.bandcamp.com/music"},
		{"https://band.bandcamp.com/", "https://band.bandcamp.com/music"},
		{"https://band.bandcamp.com/music", "https://band.bandcamp.com/music"},
		{"https://band.bandcamp.com/album/x", "https://band.bandcamp.com/album/x"},
	}
	for _, tt := range tests {
		if got := discographyURL(tt.in); got != tt.want {
			t.Errorf("discographyURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
