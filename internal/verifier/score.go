// Package verifier checks that albums are actually playable on streaming
// platforms and records the best embeddable match for each.
package verifier

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

const fullAlbumBoost = 10

// Score rates how well a candidate title matches a band/album pair,
// on a 0-100 scale. Comparison is case-insensitive: uploaders shout.
// Token-sort comparison absorbs word reordering; partial-ratio
// comparisons catch titles that bury the album name in extra text.
// Candidates advertising a full album get a boost.
func Score(band, album, candidate string) int {
	if candidate == "" {
		return 0
	}
	band = strings.ToLower(band)
	album = strings.ToLower(album)
	candidate = strings.ToLower(candidate)

	full := fuzzy.TokenSortRatio(band+" "+album, candidate)
	albumScore := fuzzy.PartialRatio(album, candidate)
	bandScore := fuzzy.PartialRatio(band, candidate)

	score := full
	if bandScore >= 70 && albumScore >= 70 {
		if combined := (albumScore + bandScore) / 2; combined > score {
			score = combined
		}
	} else if albumScore > score {
		score = albumScore
	}

	if strings.Contains(candidate, "full album") {
		score += fullAlbumBoost
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Accepted reports whether a score clears the similarity threshold.
// The threshold itself is accepted.
func Accepted(score, threshold int) bool {
	return score >= threshold
}
