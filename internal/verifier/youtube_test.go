package verifier

import (
	"testing"

	"github.com/velkrow/metalvault/internal/models"
)

func TestIsChannelURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/channel/UCabc123", true},
		{"https://www.youtube.com/c/SomeBand", true},
		{"https://www.youtube.com/user/somebandofficial", true},
		{"https://www.youtube.com/@someband", true},
		{"https://www.youtube.com/@someband/", true},
		// Concrete video and playlist links are not channels.
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"https://www.youtube.com/playlist?list=PLabc123", false},
		{"https://youtu.be/dQw4w9WgXcQ", false},
		{"https://band.bandcamp.com/album/x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsChannelURL(tt.url); got != tt.want {
			t.Errorf("IsChannelURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestChannelTabURLs(t *testing.T) {
	got := channelTabURLs("https://www.youtube.com/@someband/")
	want := []string{
		"https://www.youtube.com/@someband/videos",
		"https://www.youtube.com/@someband/playlists",
	}
	if len(got) != len(want) {
		t.Fatalf("channelTabURLs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tab[%d] = %q, want %q (uploads must come before playlists)", i, got[i], want[i])
		}
	}
}

func TestBestCandidatePicksValidEmbed(t *testing.T) {
	album := &models.Album{BandName: "AngelMaker", Title: "This Used to Be Heaven"}
	candidates := []candidate{
		// Higher score but the href cannot be embedded.
		{Title: "AngelMaker - This Used to Be Heaven (Full Album)", Href: "https://www.youtube.com/@angelmaker"},
		{Title: "AngelMaker - This Used to Be Heaven", Href: "https://www.youtube.com/watch?v=abcdefghijk"},
	}

	best := bestCandidate(album, candidates)
	if !best.Found {
		t.Fatal("expected a match")
	}
	if best.EmbedURL != "https://www.youtube-nocookie.com/embed/abcdefghijk" {
		t.Errorf("EmbedURL = %q, want the embeddable watch link", best.EmbedURL)
	}
	if best.EmbedKind != models.EmbedVideo {
		t.Errorf("EmbedKind = %q, want video", best.EmbedKind)
	}
}
