package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/velkrow/metalvault/internal/auth"
	"github.com/velkrow/metalvault/internal/config"
	"github.com/velkrow/metalvault/internal/db"
	"github.com/velkrow/metalvault/internal/models"
	"github.com/velkrow/metalvault/internal/pipeline"
	"github.com/velkrow/metalvault/internal/repository"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir(), Port: 8080}
	authSvc := auth.NewService(repository.NewAdminRepository(nil), []byte("0123456789abcdef0123456789abcdef"))
	orch := pipeline.NewOrchestrator(cfg, nil, nil, nil, nil)
	return NewServer(cfg, &db.DB{}, authSvc, orch, nil, nil, nil)
}

func TestPlaylistMutationsRequireAuth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/playlists"},
		{http.MethodPut, "/api/v1/playlists/1"},
		{http.MethodDelete, "/api/v1/playlists/1"},
		{http.MethodPost, "/api/v1/playlists/1/items"},
		{http.MethodDelete, "/api/v1/playlists/1/items/2"},
		{http.MethodPut, "/api/v1/playlists/1/reorder"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", tt.method, tt.path, rec.Code)
		}
	}
}

func strPtr(s string) *string { return &s }

func TestPlaylistItemForPrefersVerifiedEmbed(t *testing.T) {
	score := 95
	kind := models.EmbedVideo
	album := &models.Album{
		ID:                "123",
		YouTubeURL:        strPtr("https://youtube.com/watch?v=abcdefghijk"),
		YouTubeEmbedURL:   strPtr("https://www.youtube-nocookie.com/embed/abcdefghijk"),
		YouTubeMatchScore: &score,
		YouTubeEmbedKind:  &kind,
	}

	item, err := playlistItemFor(album, models.PlatformYouTube)
	if err != nil {
		t.Fatalf("playlistItemFor: %v", err)
	}
	if item.PlayableURL != *album.YouTubeEmbedURL {
		t.Errorf("PlayableURL = %q, want embed URL", item.PlayableURL)
	}
	if item.VerifyStatus != models.VerifyVerified {
		t.Errorf("VerifyStatus = %q, want verified", item.VerifyStatus)
	}
	if item.MatchScore == nil || *item.MatchScore != 95 {
		t.Errorf("MatchScore = %v, want 95", item.MatchScore)
	}
}

func TestPlaylistItemForFallsBackToLandingPage(t *testing.T) {
	album := &models.Album{
		ID:         "456",
		SpotifyURL: strPtr("https://open.spotify.com/album/xyz"),
	}

	item, err := playlistItemFor(album, "")
	if err != nil {
		t.Fatalf("playlistItemFor: %v", err)
	}
	if item.Platform != models.PlatformSpotify {
		t.Errorf("Platform = %q, want spotify", item.Platform)
	}
	if item.PlayableURL != *album.SpotifyURL {
		t.Errorf("PlayableURL = %q, want landing page", item.PlayableURL)
	}
	if item.VerifyStatus != models.VerifyPending {
		t.Errorf("VerifyStatus = %q, want pending", item.VerifyStatus)
	}
}

func TestPlaylistItemForNoLinks(t *testing.T) {
	if _, err := playlistItemFor(&models.Album{ID: "789"}, ""); err == nil {
		t.Fatal("expected error for album with no links")
	}
	album := &models.Album{ID: "789", BandcampURL: strPtr("https://x.bandcamp.com")}
	if _, err := playlistItemFor(album, models.PlatformTidal); err == nil {
		t.Fatal("expected error when requested platform has no link")
	}
}

func TestPeriodFilterFromQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/api/v1/albums/period/week/2025-W35?search=+doom+&playable=true&genres=Black+Metal,+Doom+Metal,,", nil)

	f := periodFilterFromQuery(r)
	if f.Search != "doom" {
		t.Errorf("Search = %q, want %q", f.Search, "doom")
	}
	if !f.OnlyPlayable {
		t.Error("OnlyPlayable = false, want true")
	}
	want := []string{"Black Metal", "Doom Metal"}
	if len(f.Genres) != len(want) {
		t.Fatalf("Genres = %v, want %v", f.Genres, want)
	}
	for i := range want {
		if f.Genres[i] != want[i] {
			t.Errorf("Genres[%d] = %q, want %q", i, f.Genres[i], want[i])
		}
	}
}

func TestWriteRepoErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", repository.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid period", repository.ErrInvalidPeriod, http.StatusBadRequest, "INVALID_PERIOD"},
		{"bad reorder", repository.ErrBadReorder, http.StatusBadRequest, "BAD_REORDER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeRepoError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}
