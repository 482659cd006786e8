package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/velkrow/metalvault/internal/httputil"
	"github.com/velkrow/metalvault/internal/repository"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.db.Ping(); err != nil {
		status = "degraded"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"version":    s.ver.Version,
		"ws_clients": s.wsHub.ClientCount(),
	})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.albumRepo.AvailableDates()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dates)
}

func (s *Server) handleGroupedDates(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "week"
	}
	groups, err := s.albumRepo.GroupedDates(repository.PeriodKind(view))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}

func (s *Server) handleAlbumsByDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	albums, err := s.albumRepo.ByDate(day)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":   day.Format("2006-01-02"),
		"count":  len(albums),
		"albums": albums,
	})
}

// periodFilterFromQuery decodes the shared filter params: genres is a
// comma-separated list, search matches band/album/genre, playable keeps
// only verified albums.
func periodFilterFromQuery(r *http.Request) repository.PeriodFilter {
	f := repository.PeriodFilter{
		Search:       strings.TrimSpace(r.URL.Query().Get("search")),
		OnlyPlayable: httputil.QueryBool(r, "playable", false),
	}
	if raw := r.URL.Query().Get("genres"); raw != "" {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				f.Genres = append(f.Genres, g)
			}
		}
	}
	return f
}

func (s *Server) handleAlbumsByPeriod(w http.ResponseWriter, r *http.Request) {
	kind := repository.PeriodKind(r.PathValue("kind"))
	key := r.PathValue("key")

	page := httputil.QueryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := httputil.QueryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	albums, total, err := s.albumRepo.ByPeriod(kind, key, (page-1)*limit, limit, periodFilterFromQuery(r))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"kind":   string(kind),
		"key":    key,
		"page":   page,
		"limit":  limit,
		"total":  total,
		"albums": albums,
	})
}

func (s *Server) handleAlbumsByGenre(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ids, err := s.genreRepo.AlbumIDsByGenre(name)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	limit := httputil.QueryInt(r, "limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	albums := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if len(albums) >= limit {
			break
		}
		album, err := s.albumRepo.GetByID(id)
		if err != nil {
			continue
		}
		albums = append(albums, album)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"genre":  name,
		"count":  len(albums),
		"albums": albums,
	})
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := s.albumRepo.GetByID(r.PathValue("id"))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, album)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	albums, err := s.albumRepo.Search(
		q.Get("q"), q.Get("genre"), q.Get("country"),
		httputil.QueryInt(r, "limit", 50))
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(albums),
		"results": albums,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.albumRepo.Stats()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	taxonomy, err := s.genreRepo.ListTaxonomy()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, taxonomy)
}

func (s *Server) handleGenreStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.genreRepo.Stats()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
