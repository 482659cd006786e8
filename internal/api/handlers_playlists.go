package api

import (
	"errors"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/spf13/cast"
	"github.com/velkrow/metalvault/internal/httputil"
	"github.com/velkrow/metalvault/internal/models"
	"github.com/velkrow/metalvault/internal/repository"
)

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.playlistRepo.List()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description,omitempty"`
		IsPublic    bool    `json:"is_public"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil || req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "name is required")
		return
	}
	p := &models.Playlist{Name: req.Name, Description: req.Description, IsPublic: req.IsPublic}
	if err := s.playlistRepo.Create(p); err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", "playlist id must be numeric")
		return
	}
	p, err := s.playlistRepo.Get(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", "playlist id must be numeric")
		return
	}
	p, err := s.playlistRepo.Get(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	var req struct {
		Name        *string `json:"name,omitempty"`
		Description *string `json:"description,omitempty"`
		IsPublic    *bool   `json:"is_public,omitempty"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.IsPublic != nil {
		p.IsPublic = *req.IsPublic
	}
	if err := s.playlistRepo.Update(p); err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", "playlist id must be numeric")
		return
	}
	if err := s.playlistRepo.Delete(id); err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// handleAddPlaylistItem appends an album. The playable URL and verify
// state are snapshotted from the album row at insert time.
func (s *Server) handleAddPlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", "playlist id must be numeric")
		return
	}
	var req struct {
		AlbumID     string          `json:"album_id"`
		Platform    models.Platform `json:"platform,omitempty"`
		TrackNumber *int            `json:"track_number,omitempty"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil || req.AlbumID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "album_id is required")
		return
	}

	album, err := s.albumRepo.GetByID(req.AlbumID)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	item, err := playlistItemFor(album, req.Platform)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "NO_PLAYABLE_URL", err.Error())
		return
	}
	item.PlaylistID = id
	item.TrackNumber = req.TrackNumber

	if err := s.playlistRepo.AddItem(item); err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

// playlistItemFor picks the best source for an album: a verified embed
// when available, otherwise the platform landing page, platforms in
// link-priority order unless one was requested.
func playlistItemFor(album *models.Album, requested models.Platform) (*models.PlaylistItem, error) {
	platforms := models.Platforms
	if requested != "" {
		platforms = []models.Platform{requested}
	}

	for _, p := range platforms {
		item := &models.PlaylistItem{AlbumID: album.ID, Platform: p, VerifyStatus: models.VerifyPending}
		switch p {
		case models.PlatformYouTube:
			if album.YouTubeEmbedURL != nil {
				item.PlayableURL = *album.YouTubeEmbedURL
				item.VerifyStatus = models.VerifyVerified
				item.MatchScore = album.YouTubeMatchScore
				item.MatchedTitle = album.YouTubeMatchedTitle
				item.EmbedKind = album.YouTubeEmbedKind
				return item, nil
			}
		case models.PlatformBandcamp:
			if album.BandcampEmbedURL != nil {
				item.PlayableURL = *album.BandcampEmbedURL
				item.VerifyStatus = models.VerifyVerified
				item.MatchScore = album.BandcampMatchScore
				item.MatchedTitle = album.BandcampMatchedTitle
				item.EmbedKind = album.BandcampEmbedKind
				return item, nil
			}
		}
		if url := album.PlatformURL(p); url != nil {
			item.PlayableURL = *url
			return item, nil
		}
	}
	return nil, errors.New("album has no links for the requested platform")
}

func (s *Server) handleRemovePlaylistItem(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r, "id")
	itemID, err2 := pathID(r, "itemId")
	if err1 != nil || err2 != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", "ids must be numeric")
		return
	}
	if err := s.playlistRepo.RemoveItem(id, itemID); err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "removed"})
}

func (s *Server) handleReorderPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_ID", "playlist id must be numeric")
		return
	}
	var req struct {
		ItemIDs []int64 `json:"item_ids"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil || len(req.ItemIDs) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "item_ids is required")
		return
	}
	if err := s.playlistRepo.Reorder(id, req.ItemIDs); err != nil {
		writeRepoError(w, err)
		return
	}
	p, err := s.playlistRepo.Get(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// handleDynamicPlaylist builds an ephemeral playlist from a period. The
// player settings decide which embed sources are eligible; shuffle is
// opt-in per request.
func (s *Server) handleDynamicPlaylist(w http.ResponseWriter, r *http.Request) {
	kind := repository.PeriodKind(r.PathValue("kind"))
	key := r.PathValue("key")

	f := periodFilterFromQuery(r)
	f.OnlyPlayable = true
	albums, err := s.albumRepo.ForPlaylist(kind, key, f)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	includeYouTube := s.playerToggle("player_youtube_enabled", true)
	includeBandcamp := s.playerToggle("player_bandcamp_enabled", true)

	var items []*models.PlaylistItem
	for _, album := range albums {
		if includeYouTube && album.YouTubeEmbedURL != nil {
			if item, err := playlistItemFor(album, models.PlatformYouTube); err == nil {
				items = append(items, item)
				continue
			}
		}
		if includeBandcamp && album.BandcampEmbedURL != nil {
			if item, err := playlistItemFor(album, models.PlatformBandcamp); err == nil {
				items = append(items, item)
			}
		}
	}

	if httputil.QueryBool(r, "shuffle", false) {
		rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	}
	for i, item := range items {
		item.Position = i + 1
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"kind":  string(kind),
		"key":   key,
		"count": len(items),
		"items": items,
	})
}

// playerToggle reads a boolean player setting with a default.
func (s *Server) playerToggle(key string, def bool) bool {
	raw, err := s.settingsRepo.Get(key)
	if err != nil {
		return def
	}
	return cast.ToBool(raw)
}
