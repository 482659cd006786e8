package models

import (
	"time"
)

// ──────────────────── Enums ────────────────────

type ReleaseType string

const (
	ReleaseFullLength  ReleaseType = "full-length"
	ReleaseEP          ReleaseType = "ep"
	ReleaseSingle      ReleaseType = "single"
	ReleaseDemo        ReleaseType = "demo"
	ReleaseCompilation ReleaseType = "compilation"
	ReleaseLive        ReleaseType = "live"
	ReleaseSplit       ReleaseType = "split"
	ReleaseBoxedSet    ReleaseType = "boxed-set"
	ReleaseOther       ReleaseType = "other"
)

// Platform names albums can carry canonical links for.
type Platform string

const (
	PlatformBandcamp   Platform = "bandcamp"
	PlatformYouTube    Platform = "youtube"
	PlatformSpotify    Platform = "spotify"
	PlatformDiscogs    Platform = "discogs"
	PlatformLastFM     Platform = "lastfm"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformTidal      Platform = "tidal"
)

// Platforms lists every platform in link-extraction priority order.
var Platforms = []Platform{
	PlatformBandcamp,
	PlatformYouTube,
	PlatformSpotify,
	PlatformDiscogs,
	PlatformLastFM,
	PlatformSoundCloud,
	PlatformTidal,
}

type EmbedKind string

const (
	EmbedVideo    EmbedKind = "video"
	EmbedPlaylist EmbedKind = "playlist"
)

type GenreKind string

const (
	GenreMain     GenreKind = "main"
	GenreModifier GenreKind = "modifier"
	GenreRelated  GenreKind = "related"
)

type GenrePeriod string

const (
	PeriodEarly GenrePeriod = "early"
	PeriodMid   GenrePeriod = "mid"
	PeriodLater GenrePeriod = "later"
	PeriodNone  GenrePeriod = "none"
)

type GenreCategory string

const (
	GenreCategoryBase     GenreCategory = "base"
	GenreCategoryModifier GenreCategory = "modifier"
	GenreCategoryStyle    GenreCategory = "style"
)

type DownloadState string

const (
	DownloadQueued      DownloadState = "queued"
	DownloadDownloading DownloadState = "downloading"
	DownloadCompleted   DownloadState = "completed"
	DownloadFailed      DownloadState = "failed"
	DownloadCancelled   DownloadState = "cancelled"
)

type VerifyState string

const (
	VerifyPending  VerifyState = "pending"
	VerifyVerified VerifyState = "verified"
	VerifyFailed   VerifyState = "failed"
)

// ──────────────────── Album ────────────────────

// Album is one release row keyed by the directory site's album identifier.
// Band facts are denormalized onto the row; tracks live in their own table.
type Album struct {
	ID             string      `json:"album_id" db:"album_id"`
	Title          string      `json:"album_name" db:"album_name"`
	BandID         string      `json:"band_id" db:"band_id"`
	BandName       string      `json:"band_name" db:"band_name"`
	ReleaseDate    time.Time   `json:"release_date" db:"release_date"`
	ReleaseDateRaw string      `json:"release_date_raw" db:"release_date_raw"`
	ReleaseType    ReleaseType `json:"release_type" db:"release_type"`

	CoverURL  *string `json:"cover_url,omitempty" db:"cover_url"`
	CoverPath *string `json:"cover_path,omitempty" db:"cover_path"`

	// Canonical landing pages, one per platform.
	BandcampURL   *string `json:"bandcamp_url,omitempty" db:"bandcamp_url"`
	YouTubeURL    *string `json:"youtube_url,omitempty" db:"youtube_url"`
	SpotifyURL    *string `json:"spotify_url,omitempty" db:"spotify_url"`
	DiscogsURL    *string `json:"discogs_url,omitempty" db:"discogs_url"`
	LastFMURL     *string `json:"lastfm_url,omitempty" db:"lastfm_url"`
	SoundCloudURL *string `json:"soundcloud_url,omitempty" db:"soundcloud_url"`
	TidalURL      *string `json:"tidal_url,omitempty" db:"tidal_url"`

	// Verified embeds, filled by the verifier.
	YouTubeEmbedURL      *string    `json:"youtube_embed_url,omitempty" db:"youtube_embed_url"`
	YouTubeMatchedTitle  *string    `json:"youtube_matched_title,omitempty" db:"youtube_matched_title"`
	YouTubeMatchScore    *int       `json:"youtube_match_score,omitempty" db:"youtube_match_score"`
	YouTubeEmbedKind     *EmbedKind `json:"youtube_embed_kind,omitempty" db:"youtube_embed_kind"`
	BandcampEmbedURL     *string    `json:"bandcamp_embed_url,omitempty" db:"bandcamp_embed_url"`
	BandcampMatchedTitle *string    `json:"bandcamp_matched_title,omitempty" db:"bandcamp_matched_title"`
	BandcampMatchScore   *int       `json:"bandcamp_match_score,omitempty" db:"bandcamp_match_score"`
	BandcampEmbedKind    *EmbedKind `json:"bandcamp_embed_kind,omitempty" db:"bandcamp_embed_kind"`

	PlayableVerified bool       `json:"playable_verified" db:"playable_verified"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty" db:"verified_at"`

	// Band facts scraped from the band page.
	Country     *string `json:"country_of_origin,omitempty" db:"country_of_origin"`
	Location    *string `json:"location,omitempty" db:"location"`
	GenreRaw    *string `json:"genre,omitempty" db:"genre"`
	Themes      *string `json:"themes,omitempty" db:"themes"`
	Label       *string `json:"current_label,omitempty" db:"current_label"`
	YearsActive *string `json:"years_active,omitempty" db:"years_active"`

	// Details preserves the raw key/value pairs from the album detail page.
	Details map[string]string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Tracks []Track `json:"tracklist,omitempty" db:"-"`
}

// PlatformURL returns the stored canonical URL for the named platform.
func (a *Album) PlatformURL(p Platform) *string {
	switch p {
	case PlatformBandcamp:
		return a.BandcampURL
	case PlatformYouTube:
		return a.YouTubeURL
	case PlatformSpotify:
		return a.SpotifyURL
	case PlatformDiscogs:
		return a.DiscogsURL
	case PlatformLastFM:
		return a.LastFMURL
	case PlatformSoundCloud:
		return a.SoundCloudURL
	case PlatformTidal:
		return a.TidalURL
	}
	return nil
}

type Track struct {
	AlbumID     string  `json:"album_id" db:"album_id"`
	TrackNumber int     `json:"track_number" db:"track_number"`
	Name        string  `json:"track_name" db:"track_name"`
	Length      *string `json:"track_length,omitempty" db:"track_length"`
	LyricsURL   *string `json:"lyrics_url,omitempty" db:"lyrics_url"`
}

// ──────────────────── Genres ────────────────────

type ParsedGenre struct {
	AlbumID    string      `json:"album_id" db:"album_id"`
	Name       string      `json:"genre_name" db:"genre_name"`
	Kind       GenreKind   `json:"kind" db:"kind"`
	Confidence float64     `json:"confidence" db:"confidence"`
	Period     GenrePeriod `json:"period" db:"period"`
}

type GenreTaxonomy struct {
	Name     string        `json:"genre_name" db:"genre_name"`
	Parent   *string       `json:"parent_name,omitempty" db:"parent_name"`
	Category GenreCategory `json:"category" db:"category"`
	Aliases  []string      `json:"aliases,omitempty" db:"aliases"`
	Color    *string       `json:"color,omitempty" db:"color"`
}

type GenreStat struct {
	Name       string    `json:"genre_name" db:"genre_name"`
	AlbumCount int       `json:"album_count" db:"album_count"`
	FirstSeen  time.Time `json:"first_release" db:"first_release"`
	LastSeen   time.Time `json:"last_release" db:"last_release"`
}

// ──────────────────── Playlists ────────────────────

type Playlist struct {
	ID          int64          `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description *string        `json:"description,omitempty" db:"description"`
	IsPublic    bool           `json:"is_public" db:"is_public"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	Items       []PlaylistItem `json:"items,omitempty" db:"-"`
}

type PlaylistItem struct {
	ID           int64       `json:"id" db:"id"`
	PlaylistID   int64       `json:"playlist_id" db:"playlist_id"`
	AlbumID      string      `json:"album_id" db:"album_id"`
	TrackNumber  *int        `json:"track_number,omitempty" db:"track_number"`
	Platform     Platform    `json:"platform" db:"platform"`
	PlayableURL  string      `json:"playable_url" db:"playable_url"`
	Position     int         `json:"position" db:"position"`
	VerifyStatus VerifyState `json:"verify_status" db:"verify_status"`
	MatchScore   *int        `json:"match_score,omitempty" db:"match_score"`
	MatchedTitle *string     `json:"matched_title,omitempty" db:"matched_title"`
	EmbedKind    *EmbedKind  `json:"embed_kind,omitempty" db:"embed_kind"`
}

// ──────────────────── Settings / Auth ────────────────────

type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	Category  string    `json:"category" db:"category"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	SettingCategoryGeneral       = "general"
	SettingCategoryPlatformLinks = "platform_links"
	SettingCategoryCache         = "cache"
	SettingCategoryPlayer        = "player"
)

// AdminAuth is the single admin credential row.
type AdminAuth struct {
	ID             int64      `json:"id" db:"id"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty" db:"last_login"`
	FailedAttempts int        `json:"failed_attempts" db:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty" db:"locked_until"`
}

// ──────────────────── Pipeline / downloads ────────────────────

// ProgressReport is the live state of the scrape pipeline, broadcast over
// the websocket hub and polled by the admin UI.
type ProgressReport struct {
	RunID       string     `json:"run_id,omitempty"`
	Running     bool       `json:"running"`
	CurrentDate string     `json:"current_date,omitempty"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	Message     string     `json:"message,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RateLimited bool       `json:"rate_limited"`
	ShouldStop  bool       `json:"should_stop"`
}

type DownloadTask struct {
	VideoID     string        `json:"video_id"`
	State       DownloadState `json:"state"`
	Attempts    int           `json:"attempts"`
	Error       string        `json:"error,omitempty"`
	FilePath    string        `json:"file_path,omitempty"`
	QueuedAt    time.Time     `json:"queued_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type DownloadStats struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
	Active      int     `json:"active"`
	Queued      int     `json:"queued"`
}

type CacheEntry struct {
	Filename     string    `json:"filename"`
	SizeBytes    int64     `json:"size_bytes"`
	LastAccessed time.Time `json:"last_accessed"`
	DownloadDate time.Time `json:"download_date"`
}

type CacheStats struct {
	TotalSizeBytes int64   `json:"total_size_bytes"`
	MaxSizeBytes   int64   `json:"max_size_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
	FileCount      int     `json:"file_count"`
	AvailableBytes int64   `json:"available_bytes"`
}

// VerificationResult is what the verifier reports for one album on one
// platform.
type VerificationResult struct {
	Found        bool      `json:"found"`
	EmbedURL     string    `json:"embed_url,omitempty"`
	MatchScore   int       `json:"match_score"`
	MatchedTitle string    `json:"matched_title,omitempty"`
	EmbedKind    EmbedKind `json:"embed_kind,omitempty"`
}
