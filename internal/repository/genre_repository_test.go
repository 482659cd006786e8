package repository

import (
	"strings"
	"testing"
)

// The stats rebuild aggregates over every parsed-genre kind: an album
// tagged "Doom Metal" as a modifier counts the same as one tagged it
// as the main genre.
func TestGenreStatsRebuildCoversAllKinds(t *testing.T) {
	q := strings.ToLower(genreStatsRebuildQuery)

	if strings.Contains(q, "kind") {
		t.Error("rebuild query filters on genre kind; album_count must span all kinds")
	}
	if !strings.Contains(q, "count(distinct pg.album_id)") {
		t.Error("rebuild query must count each album once per genre")
	}
	if !strings.Contains(q, "group by pg.genre_name") {
		t.Error("rebuild query must aggregate per genre name")
	}
	for _, col := range []string{"genre_name", "album_count", "first_release", "last_release"} {
		if !strings.Contains(q, col) {
			t.Errorf("rebuild query missing column %q", col)
		}
	}
}
