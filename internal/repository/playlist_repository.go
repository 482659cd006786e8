package repository

import (
	"database/sql"
	"fmt"

	"github.com/velkrow/metalvault/internal/models"
)

type PlaylistRepository struct {
	db *sql.DB
}

func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

func (r *PlaylistRepository) Create(p *models.Playlist) error {
	return r.db.QueryRow(`
		INSERT INTO playlists (name, description, is_public)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.IsPublic,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PlaylistRepository) Get(id int64) (*models.Playlist, error) {
	p := &models.Playlist{}
	err := r.db.QueryRow(`
		SELECT id, name, description, is_public, created_at, updated_at
		FROM playlists WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.items(id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *PlaylistRepository) List() ([]*models.Playlist, error) {
	rows, err := r.db.Query(`
		SELECT p.id, p.name, p.description, p.is_public, p.created_at, p.updated_at
		FROM playlists p ORDER BY p.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Playlist
	for rows.Next() {
		p := &models.Playlist{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PlaylistRepository) Update(p *models.Playlist) error {
	res, err := r.db.Exec(`
		UPDATE playlists SET name = $2, description = $3, is_public = $4, updated_at = NOW()
		WHERE id = $1`, p.ID, p.Name, p.Description, p.IsPublic)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the playlist; items cascade.
func (r *PlaylistRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PlaylistRepository) items(playlistID int64) ([]models.PlaylistItem, error) {
	rows, err := r.db.Query(`
		SELECT id, playlist_id, album_id, track_number, platform, playable_url,
			position, verify_status, match_score, matched_title, embed_kind
		FROM playlist_items WHERE playlist_id = $1 ORDER BY position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.PlaylistItem
	for rows.Next() {
		var it models.PlaylistItem
		err := rows.Scan(&it.ID, &it.PlaylistID, &it.AlbumID, &it.TrackNumber,
			&it.Platform, &it.PlayableURL, &it.Position, &it.VerifyStatus,
			&it.MatchScore, &it.MatchedTitle, &it.EmbedKind)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddItem appends an item at position N+1 and bumps updated_at.
func (r *PlaylistRepository) AddItem(it *models.PlaylistItem) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO playlist_items (
			playlist_id, album_id, track_number, platform, playable_url,
			position, verify_status, match_score, matched_title, embed_kind
		)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_items WHERE playlist_id = $1),
			$6, $7, $8, $9)
		RETURNING id, position`,
		it.PlaylistID, it.AlbumID, it.TrackNumber, it.Platform, it.PlayableURL,
		it.VerifyStatus, it.MatchScore, it.MatchedTitle, it.EmbedKind,
	).Scan(&it.ID, &it.Position)
	if err != nil {
		return fmt.Errorf("add playlist item: %w", err)
	}
	if _, err := tx.Exec(`UPDATE playlists SET updated_at = NOW() WHERE id = $1`, it.PlaylistID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveItem deletes one item and closes the position gap so positions stay
// dense 1..N.
func (r *PlaylistRepository) RemoveItem(playlistID, itemID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var pos int
	err = tx.QueryRow(`
		DELETE FROM playlist_items WHERE id = $1 AND playlist_id = $2
		RETURNING position`, itemID, playlistID).Scan(&pos)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE playlist_items SET position = position - 1
		WHERE playlist_id = $1 AND position > $2`, playlistID, pos); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE playlists SET updated_at = NOW() WHERE id = $1`, playlistID); err != nil {
		return err
	}
	return tx.Commit()
}

// Reorder applies a full permutation of item ids in one transaction. The id
// list must contain exactly the playlist's items; positions become the list
// order, 1-based.
func (r *PlaylistRepository) Reorder(playlistID int64, itemIDs []int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM playlist_items WHERE playlist_id = $1`, playlistID).Scan(&count); err != nil {
		return err
	}
	if count != len(itemIDs) {
		return ErrBadReorder
	}

	seen := make(map[int64]bool, len(itemIDs))
	for pos, id := range itemIDs {
		if seen[id] {
			return ErrBadReorder
		}
		seen[id] = true
		res, err := tx.Exec(`
			UPDATE playlist_items SET position = $3
			WHERE id = $1 AND playlist_id = $2`, id, playlistID, pos+1)
		if err != nil {
			return fmt.Errorf("reorder item %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrBadReorder
		}
	}
	if _, err := tx.Exec(`UPDATE playlists SET updated_at = NOW() WHERE id = $1`, playlistID); err != nil {
		return err
	}
	return tx.Commit()
}
