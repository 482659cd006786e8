package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/velkrow/metalvault/internal/models"
)

type AlbumRepository struct {
	db *sql.DB
}

func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// albumColumns is the standard SELECT list for albums
const albumColumns = `album_id, album_name, band_id, band_name, release_date, release_date_raw,
	release_type, cover_url, cover_path,
	bandcamp_url, youtube_url, spotify_url, discogs_url, lastfm_url, soundcloud_url, tidal_url,
	youtube_embed_url, youtube_matched_title, youtube_match_score, youtube_embed_kind,
	bandcamp_embed_url, bandcamp_matched_title, bandcamp_match_score, bandcamp_embed_kind,
	playable_verified, verified_at,
	country_of_origin, location, genre, themes, current_label, years_active,
	details, created_at`

func scanAlbum(row interface{ Scan(dest ...interface{}) error }) (*models.Album, error) {
	a := &models.Album{}
	var details []byte
	err := row.Scan(
		&a.ID, &a.Title, &a.BandID, &a.BandName, &a.ReleaseDate, &a.ReleaseDateRaw,
		&a.ReleaseType, &a.CoverURL, &a.CoverPath,
		&a.BandcampURL, &a.YouTubeURL, &a.SpotifyURL, &a.DiscogsURL, &a.LastFMURL,
		&a.SoundCloudURL, &a.TidalURL,
		&a.YouTubeEmbedURL, &a.YouTubeMatchedTitle, &a.YouTubeMatchScore, &a.YouTubeEmbedKind,
		&a.BandcampEmbedURL, &a.BandcampMatchedTitle, &a.BandcampMatchScore, &a.BandcampEmbedKind,
		&a.PlayableVerified, &a.VerifiedAt,
		&a.Country, &a.Location, &a.GenreRaw, &a.Themes, &a.Label, &a.YearsActive,
		&details, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if jerr := json.Unmarshal(details, &a.Details); jerr != nil {
			a.Details = nil
		}
	}
	return a, nil
}

// Upsert replaces the album row and its tracks in one transaction.
func (r *AlbumRepository) Upsert(album *models.Album) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var details interface{}
	if album.Details != nil {
		b, jerr := json.Marshal(album.Details)
		if jerr != nil {
			return fmt.Errorf("marshal details: %w", jerr)
		}
		details = b
	}

	query := `
		INSERT INTO albums (
			album_id, album_name, band_id, band_name, release_date, release_date_raw,
			release_type, cover_url, cover_path,
			bandcamp_url, youtube_url, spotify_url, discogs_url, lastfm_url, soundcloud_url, tidal_url,
			country_of_origin, location, genre, themes, current_label, years_active, details
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23
		)
		ON CONFLICT (album_id) DO UPDATE SET
			album_name = EXCLUDED.album_name,
			band_id = EXCLUDED.band_id,
			band_name = EXCLUDED.band_name,
			release_date = EXCLUDED.release_date,
			release_date_raw = EXCLUDED.release_date_raw,
			release_type = EXCLUDED.release_type,
			cover_url = EXCLUDED.cover_url,
			cover_path = COALESCE(EXCLUDED.cover_path, albums.cover_path),
			bandcamp_url = EXCLUDED.bandcamp_url,
			youtube_url = EXCLUDED.youtube_url,
			spotify_url = EXCLUDED.spotify_url,
			discogs_url = EXCLUDED.discogs_url,
			lastfm_url = EXCLUDED.lastfm_url,
			soundcloud_url = EXCLUDED.soundcloud_url,
			tidal_url = EXCLUDED.tidal_url,
			country_of_origin = EXCLUDED.country_of_origin,
			location = EXCLUDED.location,
			genre = EXCLUDED.genre,
			themes = EXCLUDED.themes,
			current_label = EXCLUDED.current_label,
			years_active = EXCLUDED.years_active,
			details = EXCLUDED.details
		RETURNING created_at`

	err = tx.QueryRow(query,
		album.ID, album.Title, album.BandID, album.BandName, album.ReleaseDate, album.ReleaseDateRaw,
		album.ReleaseType, album.CoverURL, album.CoverPath,
		album.BandcampURL, album.YouTubeURL, album.SpotifyURL, album.DiscogsURL,
		album.LastFMURL, album.SoundCloudURL, album.TidalURL,
		album.Country, album.Location, album.GenreRaw, album.Themes, album.Label, album.YearsActive,
		details,
	).Scan(&album.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert album %s: %w", album.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM tracks WHERE album_id = $1`, album.ID); err != nil {
		return fmt.Errorf("clear tracks for %s: %w", album.ID, err)
	}
	for _, t := range album.Tracks {
		_, err := tx.Exec(`
			INSERT INTO tracks (album_id, track_number, track_name, track_length, lyrics_url)
			VALUES ($1, $2, $3, $4, $5)`,
			album.ID, t.TrackNumber, t.Name, t.Length, t.LyricsURL)
		if err != nil {
			return fmt.Errorf("insert track %d for %s: %w", t.TrackNumber, album.ID, err)
		}
	}

	return tx.Commit()
}

func (r *AlbumRepository) GetByID(id string) (*models.Album, error) {
	row := r.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE album_id = $1`, id)
	album, err := scanAlbum(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tracks, err := r.tracksFor(album.ID)
	if err != nil {
		return nil, err
	}
	album.Tracks = tracks
	return album, nil
}

func (r *AlbumRepository) tracksFor(albumID string) ([]models.Track, error) {
	rows, err := r.db.Query(`
		SELECT album_id, track_number, track_name, track_length, lyrics_url
		FROM tracks WHERE album_id = $1 ORDER BY track_number`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.AlbumID, &t.TrackNumber, &t.Name, &t.Length, &t.LyricsURL); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// ByDate returns all albums released on the given day, tracks included.
func (r *AlbumRepository) ByDate(day time.Time) ([]*models.Album, error) {
	rows, err := r.db.Query(`
		SELECT `+albumColumns+` FROM albums
		WHERE release_date = $1
		ORDER BY band_name, album_name`, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	albums, err := collectAlbums(rows)
	if err != nil {
		return nil, err
	}
	return r.attachTracks(albums)
}

func collectAlbums(rows *sql.Rows) ([]*models.Album, error) {
	defer rows.Close()
	var albums []*models.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (r *AlbumRepository) attachTracks(albums []*models.Album) ([]*models.Album, error) {
	for _, a := range albums {
		tracks, err := r.tracksFor(a.ID)
		if err != nil {
			return nil, err
		}
		a.Tracks = tracks
	}
	return albums, nil
}

// PeriodFilter narrows ByPeriod/ForPlaylist queries.
type PeriodFilter struct {
	Genres       []string
	Search       string
	OnlyPlayable bool
}

// ByPeriod returns one page of albums within a period plus the unpaged
// total. Genres are OR'd case-insensitive substring filters over the raw
// genre string and parsed genre names.
func (r *AlbumRepository) ByPeriod(kind PeriodKind, key string, offset, limit int, f PeriodFilter) ([]*models.Album, int, error) {
	start, end, err := PeriodRange(kind, key)
	if err != nil {
		return nil, 0, err
	}

	where, args := periodWhere(start, end, f)

	var total int
	countQuery := `SELECT COUNT(*) FROM albums a WHERE ` + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count period albums: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+albumColumns+` FROM albums a
		WHERE %s
		ORDER BY release_date DESC, band_name, album_name
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	albums, err := collectAlbums(rows)
	if err != nil {
		return nil, 0, err
	}
	albums, err = r.attachTracks(albums)
	if err != nil {
		return nil, 0, err
	}
	return albums, total, nil
}

func periodWhere(start, end time.Time, f PeriodFilter) (string, []interface{}) {
	conds := []string{"a.release_date BETWEEN $1 AND $2"}
	args := []interface{}{start.Format("2006-01-02"), end.Format("2006-01-02")}

	if f.Search != "" {
		n := len(args) + 1
		conds = append(conds, fmt.Sprintf(
			"(a.album_name ILIKE $%d OR a.band_name ILIKE $%d OR a.genre ILIKE $%d)", n, n, n))
		args = append(args, "%"+f.Search+"%")
	}
	if len(f.Genres) > 0 {
		var ors []string
		for _, g := range f.Genres {
			n := len(args) + 1
			ors = append(ors, fmt.Sprintf(
				"(a.genre ILIKE $%d OR EXISTS (SELECT 1 FROM parsed_genres pg WHERE pg.album_id = a.album_id AND pg.genre_name ILIKE $%d))", n, n))
			args = append(args, "%"+g+"%")
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if f.OnlyPlayable {
		conds = append(conds, "a.playable_verified")
	}
	return strings.Join(conds, " AND "), args
}

// ForPlaylist returns albums in a period for the dynamic-playlist endpoint,
// tracks omitted.
func (r *AlbumRepository) ForPlaylist(kind PeriodKind, key string, f PeriodFilter) ([]*models.Album, error) {
	start, end, err := PeriodRange(kind, key)
	if err != nil {
		return nil, err
	}
	where, args := periodWhere(start, end, f)
	rows, err := r.db.Query(`
		SELECT `+albumColumns+` FROM albums a
		WHERE `+where+`
		ORDER BY release_date DESC, band_name, album_name`, args...)
	if err != nil {
		return nil, err
	}
	return collectAlbums(rows)
}

// GroupedDate is one aggregate bucket from GroupedDates.
type GroupedDate struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// GroupedDates aggregates album counts per day, ISO week, or month,
// newest bucket first.
func (r *AlbumRepository) GroupedDates(kind PeriodKind) ([]GroupedDate, error) {
	var keyExpr string
	switch kind {
	case PeriodDay:
		keyExpr = `to_char(release_date, 'YYYY-MM-DD')`
	case PeriodWeek:
		keyExpr = `to_char(release_date, 'IYYY-"W"IW')`
	case PeriodMonth:
		keyExpr = `to_char(release_date, 'YYYY-MM')`
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidPeriod, kind)
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s AS period_key, MIN(release_date), MAX(release_date), COUNT(*)
		FROM albums
		GROUP BY period_key
		ORDER BY MAX(release_date) DESC`, keyExpr))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupedDate
	for rows.Next() {
		var g GroupedDate
		if err := rows.Scan(&g.Key, &g.Start, &g.End, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DateCount is one day with its album count.
type DateCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

func (r *AlbumRepository) AvailableDates() ([]DateCount, error) {
	rows, err := r.db.Query(`
		SELECT release_date, COUNT(*) FROM albums
		GROUP BY release_date ORDER BY release_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DateCount
	for rows.Next() {
		var d DateCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteByDate removes albums released on the given day. Tracks and
// playlist items cascade. Returns the number of albums removed.
func (r *AlbumRepository) DeleteByDate(day time.Time) (int64, error) {
	return r.deleteRange(day, day)
}

func (r *AlbumRepository) DeleteByRange(from, to time.Time) (int64, error) {
	return r.deleteRange(from, to)
}

func (r *AlbumRepository) deleteRange(from, to time.Time) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM albums WHERE release_date BETWEEN $1 AND $2`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("delete albums: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// SetVerification writes one platform's verification result onto the album
// and refreshes playable_verified.
func (r *AlbumRepository) SetVerification(albumID string, platform models.Platform, res *models.VerificationResult) error {
	var query string
	switch platform {
	case models.PlatformYouTube:
		query = `UPDATE albums SET
			youtube_embed_url = $2, youtube_matched_title = $3,
			youtube_match_score = $4, youtube_embed_kind = $5,
			playable_verified = ($2 IS NOT NULL OR bandcamp_embed_url IS NOT NULL),
			verified_at = NOW()
			WHERE album_id = $1`
	case models.PlatformBandcamp:
		query = `UPDATE albums SET
			bandcamp_embed_url = $2, bandcamp_matched_title = $3,
			bandcamp_match_score = $4, bandcamp_embed_kind = $5,
			playable_verified = ($2 IS NOT NULL OR youtube_embed_url IS NOT NULL),
			verified_at = NOW()
			WHERE album_id = $1`
	default:
		return fmt.Errorf("platform %s does not carry verified embeds", platform)
	}

	var embedURL, matchedTitle *string
	var score *int
	var kind *models.EmbedKind
	if res.Found {
		embedURL = &res.EmbedURL
		matchedTitle = &res.MatchedTitle
		score = &res.MatchScore
		kind = &res.EmbedKind
	}

	result, err := r.db.Exec(query, albumID, embedURL, matchedTitle, score, kind)
	if err != nil {
		return fmt.Errorf("set %s verification for %s: %w", platform, albumID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Unverified returns albums without any verified embed, newest first,
// optionally limited to the last N days.
func (r *AlbumRepository) Unverified(sinceDays, limit int) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE NOT playable_verified`
	args := []interface{}{}
	if sinceDays > 0 {
		query += ` AND release_date >= CURRENT_DATE - $1::int`
		args = append(args, sinceDays)
	}
	query += ` ORDER BY release_date DESC, band_name, album_name`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectAlbums(rows)
}

// Search performs a substring search over album, band, genre and country.
func (r *AlbumRepository) Search(q, genre, country string, limit int) ([]*models.Album, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	if q != "" {
		n := len(args) + 1
		conds = append(conds, fmt.Sprintf("(album_name ILIKE $%d OR band_name ILIKE $%d)", n, n))
		args = append(args, "%"+q+"%")
	}
	if genre != "" {
		args = append(args, "%"+genre+"%")
		conds = append(conds, fmt.Sprintf("genre ILIKE $%d", len(args)))
	}
	if country != "" {
		args = append(args, "%"+country+"%")
		conds = append(conds, fmt.Sprintf("country_of_origin ILIKE $%d", len(args)))
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT `+albumColumns+` FROM albums
		WHERE %s
		ORDER BY release_date DESC, band_name, album_name
		LIMIT $%d`, strings.Join(conds, " AND "), len(args))
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	albums, err := collectAlbums(rows)
	if err != nil {
		return nil, err
	}
	return r.attachTracks(albums)
}

// CatalogStats summarizes the catalog for the stats endpoint.
type CatalogStats struct {
	TotalAlbums  int            `json:"total_albums"`
	TotalTracks  int            `json:"total_tracks"`
	Verified     int            `json:"verified_albums"`
	TopGenres    []NameCount    `json:"top_genres"`
	TopCountries []NameCount    `json:"top_countries"`
	RecentDates  []DateCount    `json:"recent_dates"`
}

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (r *AlbumRepository) Stats() (*CatalogStats, error) {
	s := &CatalogStats{}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM albums`).Scan(&s.TotalAlbums); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&s.TotalTracks); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM albums WHERE playable_verified`).Scan(&s.Verified); err != nil {
		return nil, err
	}

	var err error
	s.TopGenres, err = r.nameCounts(`
		SELECT genre, COUNT(*) FROM albums
		WHERE genre IS NOT NULL AND genre != ''
		GROUP BY genre ORDER BY COUNT(*) DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	s.TopCountries, err = r.nameCounts(`
		SELECT country_of_origin, COUNT(*) FROM albums
		WHERE country_of_origin IS NOT NULL AND country_of_origin != ''
		GROUP BY country_of_origin ORDER BY COUNT(*) DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT release_date, COUNT(*) FROM albums
		GROUP BY release_date ORDER BY release_date DESC LIMIT 5`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d DateCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		s.RecentDates = append(s.RecentDates, d)
	}
	return s, rows.Err()
}

func (r *AlbumRepository) nameCounts(query string) ([]NameCount, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}
