package verifier

import (
	"strings"
	"testing"
)

func TestBandcampEmbed(t *testing.T) {
	got := BandcampEmbed("1234567890")
	if !strings.HasPrefix(got, "https://bandcamp.com/EmbeddedPlayer/album=1234567890/") {
		t.Errorf("embed URL = %q", got)
	}
	if !strings.Contains(got, "tracklist=true") {
		t.Errorf("embed URL missing tracklist flag: %q", got)
	}
}

func TestBandcampIframeFallback(t *testing.T) {
	got := BandcampIframeFallback("https://someband.bandcamp.com/album/demo")
	want := `<iframe style="border: 0; width: 350px; height: 470px;" src="https://someband.bandcamp.com/album/demo" seamless></iframe>`
	if got != want {
		t.Errorf("iframe fallback = %q, want %q", got, want)
	}
}

func TestDiscographyURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://someband.bandcamp.com", "https://someband.bandcamp.com/music"},
		{"https://someband.bandcamp.com/", "https://someband.bandcamp.com/music"},
		{"https://someband.bandcamp.com/music", "https://someband.bandcamp.com/music"},
		{"https://someband.bandcamp.com/album/demo", "https://someband.bandcamp.com/album/demo"},
	}
	for _, tt := range tests {
		if got := discographyURL(tt.in); got != tt.want {
			t.Errorf("discographyURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
