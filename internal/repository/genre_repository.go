package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/velkrow/metalvault/internal/models"
)

type GenreRepository struct {
	db *sql.DB
}

func NewGenreRepository(db *sql.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// ReplaceParsed atomically swaps the parsed-genre rows for an album.
func (r *GenreRepository) ReplaceParsed(albumID string, genres []models.ParsedGenre) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM parsed_genres WHERE album_id = $1`, albumID); err != nil {
		return fmt.Errorf("clear parsed genres for %s: %w", albumID, err)
	}
	for _, g := range genres {
		_, err := tx.Exec(`
			INSERT INTO parsed_genres (album_id, genre_name, kind, confidence, period)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (album_id, genre_name, kind) DO UPDATE SET
				confidence = EXCLUDED.confidence,
				period = EXCLUDED.period`,
			albumID, g.Name, g.Kind, g.Confidence, g.Period)
		if err != nil {
			return fmt.Errorf("insert parsed genre %q for %s: %w", g.Name, albumID, err)
		}
	}
	return tx.Commit()
}

func (r *GenreRepository) UpsertTaxonomy(t *models.GenreTaxonomy) error {
	_, err := r.db.Exec(`
		INSERT INTO genre_taxonomy (genre_name, parent_name, category, aliases, color)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (genre_name) DO UPDATE SET
			parent_name = EXCLUDED.parent_name,
			category = EXCLUDED.category,
			aliases = EXCLUDED.aliases,
			color = COALESCE(EXCLUDED.color, genre_taxonomy.color)`,
		t.Name, t.Parent, t.Category, pq.Array(t.Aliases), t.Color)
	if err != nil {
		return fmt.Errorf("upsert taxonomy %q: %w", t.Name, err)
	}
	return nil
}

// Album counts cover every parsed-genre kind; an album tagged with a
// genre only as a modifier still counts toward it once.
const genreStatsRebuildQuery = `
	INSERT INTO genre_stats (genre_name, album_count, first_release, last_release)
	SELECT pg.genre_name, COUNT(DISTINCT pg.album_id), MIN(a.release_date), MAX(a.release_date)
	FROM parsed_genres pg
	JOIN albums a ON a.album_id = pg.album_id
	GROUP BY pg.genre_name`

// RecomputeStats rebuilds genre_stats wholesale from the parsed genres.
func (r *GenreRepository) RecomputeStats() error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM genre_stats`); err != nil {
		return fmt.Errorf("clear genre stats: %w", err)
	}
	if _, err := tx.Exec(genreStatsRebuildQuery); err != nil {
		return fmt.Errorf("rebuild genre stats: %w", err)
	}
	return tx.Commit()
}

func (r *GenreRepository) Stats() ([]models.GenreStat, error) {
	rows, err := r.db.Query(`
		SELECT genre_name, album_count, first_release, last_release
		FROM genre_stats ORDER BY album_count DESC, genre_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GenreStat
	for rows.Next() {
		var s models.GenreStat
		if err := rows.Scan(&s.Name, &s.AlbumCount, &s.FirstSeen, &s.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *GenreRepository) ListTaxonomy() ([]models.GenreTaxonomy, error) {
	rows, err := r.db.Query(`
		SELECT genre_name, parent_name, category, aliases, color
		FROM genre_taxonomy ORDER BY genre_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GenreTaxonomy
	for rows.Next() {
		var t models.GenreTaxonomy
		if err := rows.Scan(&t.Name, &t.Parent, &t.Category, pq.Array(&t.Aliases), &t.Color); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AlbumIDsByGenre returns album ids carrying the named parsed genre.
func (r *GenreRepository) AlbumIDsByGenre(name string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT album_id FROM parsed_genres WHERE genre_name ILIKE $1`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
