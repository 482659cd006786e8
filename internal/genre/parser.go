// Package genre parses raw directory-site genre strings into structured
// main/modifier/related components with period qualifiers and a confidence
// score, and derives taxonomy entries from the results.
package genre

import (
	"regexp"
	"sort"
	"strings"

	"github.com/velkrow/metalvault/internal/models"
)

// Parsed is one normalized genre extracted from a raw string.
type Parsed struct {
	Main       string
	Modifiers  []string
	Related    []string
	Period     models.GenrePeriod
	Confidence float64
}

var temporalRe = regexp.MustCompile(`(?i)\((early|mid|middle|later|late|now|current|recent)\)`)

// metalIndicators flag a word as metal when contained in it.
var metalIndicators = []string{
	"metal", "core", "grind", "doom", "black", "death", "thrash",
	"heavy", "power", "speed", "sludge", "stoner", "drone",
}

var nonMetalIndicators = []string{
	"rock", "punk", "hardcore", "jazz", "classical", "electronic",
	"ambient", "folk", "blues", "country", "noise", "shoegaze",
	"emo", "indie", "alternative", "experimental",
}

var modifierVocab = map[string]bool{
	"atmospheric": true, "melodic": true, "progressive": true,
	"symphonic": true, "technical": true, "brutal": true, "raw": true,
	"ambient": true, "experimental": true, "industrial": true,
	"epic": true, "aggressive": true, "dark": true, "blackened": true,
	"modern": true, "traditional": true, "avant-garde": true,
	"psychedelic": true, "post": true, "neo": true, "proto": true,
	"retro": true, "depressive": true, "funeral": true, "viking": true,
	"pagan": true, "folk": true, "gothic": true, "nu": true,
}

var multiWordModifiers = []string{"old school", "avant-garde"}

var aliases = map[string]string{
	"BM":                   "Black Metal",
	"DM":                   "Death Metal",
	"TM":                   "Thrash Metal",
	"HM":                   "Heavy Metal",
	"PM":                   "Power Metal",
	"Blackened Death Metal": "Black/Death Metal",
	"Death/Black Metal":     "Black/Death Metal",
	"Thrash/Death Metal":    "Death/Thrash Metal",
}

var canonicalPhrases = []string{"black metal", "death metal", "thrash metal", "heavy metal"}

// Parse splits a raw genre string into deduplicated Parsed records.
// Empty and whitespace-only input yields nil.
func Parse(raw string) []Parsed {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var out []Parsed
	// Semicolon is the strongest separator and usually marks a period change.
	for _, chunk := range strings.Split(raw, ";") {
		period := models.PeriodNone
		if m := temporalRe.FindStringSubmatch(chunk); m != nil {
			period = normalizePeriod(m[1])
			chunk = temporalRe.ReplaceAllString(chunk, "")
		}
		for _, segment := range strings.Split(chunk, ",") {
			segment = normalizeSpace(segment)
			if segment == "" {
				continue
			}
			if alias, ok := aliases[segment]; ok {
				segment = alias
			}
			for _, atom := range expandCompound(segment) {
				if p := classify(atom, period); p != nil {
					out = append(out, *p)
				}
			}
		}
	}
	return dedupe(out)
}

func normalizePeriod(p string) models.GenrePeriod {
	switch strings.ToLower(p) {
	case "early":
		return models.PeriodEarly
	case "mid", "middle":
		return models.PeriodMid
	case "later", "late", "now", "current", "recent":
		return models.PeriodLater
	}
	return models.PeriodNone
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// expandCompound splits "A/B Metal" segments and distributes the shared
// suffix and leading modifiers across the parts, so "Doom/Death Metal"
// yields "Doom Metal" and "Death Metal", and "Progressive Death/Black
// Metal" yields "Progressive Death Metal" and "Progressive Black Metal".
func expandCompound(segment string) []string {
	if !strings.Contains(segment, "/") {
		return []string{capitalize(segment)}
	}

	parts := strings.Split(segment, "/")
	for i := range parts {
		parts[i] = normalizeSpace(parts[i])
	}

	last := parts[len(parts)-1]
	lastWords := strings.Fields(strings.ToLower(last))
	suffix := ""
	if len(lastWords) > 0 && lastWords[len(lastWords)-1] == "metal" {
		suffix = "Metal"
	}

	// Leading modifier words of the first part carry across the compound.
	var prefix []string
	for _, w := range strings.Fields(parts[0]) {
		if modifierVocab[strings.ToLower(w)] {
			prefix = append(prefix, w)
		} else {
			break
		}
	}

	var atoms []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		if suffix != "" && !strings.Contains(lower, "metal") && !containsAny(lower, nonMetalIndicators) {
			part = part + " " + suffix
		}
		if i > 0 && len(prefix) > 0 && strings.Contains(strings.ToLower(part), "metal") &&
			!strings.HasPrefix(strings.ToLower(part), strings.ToLower(strings.Join(prefix, " "))) {
			part = strings.Join(prefix, " ") + " " + part
		}
		atoms = append(atoms, capitalize(part))
	}
	return atoms
}

func containsAny(text string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}

func classify(atom string, period models.GenrePeriod) *Parsed {
	if atom == "" {
		return nil
	}
	lower := strings.ToLower(atom)

	mods := extractModifiers(lower)
	if isMetal(lower) {
		return &Parsed{
			Main:       atom,
			Modifiers:  mods,
			Period:     period,
			Confidence: confidence(lower, mods),
		}
	}
	if containsAny(lower, nonMetalIndicators) {
		return &Parsed{
			Related:    []string{atom},
			Period:     period,
			Confidence: 0.8,
		}
	}
	// Unknown genre, keep as main with low confidence.
	return &Parsed{Main: atom, Period: period, Confidence: 0.5}
}

func isMetal(lower string) bool {
	for _, word := range strings.Fields(lower) {
		for _, ind := range metalIndicators {
			if strings.Contains(word, ind) {
				return true
			}
		}
	}
	return false
}

func extractModifiers(lower string) []string {
	seen := map[string]bool{}
	var mods []string
	for _, word := range strings.Fields(lower) {
		if modifierVocab[word] && !seen[word] {
			seen[word] = true
			mods = append(mods, capitalize(word))
		}
	}
	for _, mw := range multiWordModifiers {
		if strings.Contains(lower, mw) && !seen[mw] {
			seen[mw] = true
			mods = append(mods, capitalize(mw))
		}
	}
	sort.Strings(mods)
	return mods
}

func confidence(lower string, mods []string) float64 {
	c := 0.5 + 0.3 // base + metal
	if strings.Contains(lower, "metal") {
		c += 0.2
	}
	c += float64(len(mods)) * 0.1
	for _, phrase := range canonicalPhrases {
		if strings.Contains(lower, phrase) {
			c += 0.2
			break
		}
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func dedupe(genres []Parsed) []Parsed {
	if len(genres) == 0 {
		return nil
	}
	index := map[string]int{}
	var out []Parsed
	for _, g := range genres {
		key := strings.ToLower(g.Main)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, g)
			continue
		}
		merged := &out[i]
		merged.Modifiers = unionSorted(merged.Modifiers, g.Modifiers)
		merged.Related = unionSorted(merged.Related, g.Related)
		merged.Confidence = (merged.Confidence + g.Confidence) / 2
		if merged.Period == models.PeriodNone {
			merged.Period = g.Period
		}
	}
	return out
}

func unionSorted(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

var capitalSpecial = map[string]string{
	"metal": "Metal", "black": "Black", "death": "Death", "thrash": "Thrash",
	"heavy": "Heavy", "doom": "Doom", "power": "Power", "folk": "Folk",
	"progressive": "Progressive", "symphonic": "Symphonic", "gothic": "Gothic",
	"industrial": "Industrial", "post": "Post", "rock": "Rock",
	"hardcore": "Hardcore", "punk": "Punk",
}

func capitalize(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, part := range parts {
			if part == "" {
				continue
			}
			lower := strings.ToLower(part)
			if special, ok := capitalSpecial[lower]; ok {
				parts[j] = special
			} else {
				parts[j] = strings.ToUpper(lower[:1]) + lower[1:]
			}
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

// Rows expands parsed genres into store rows. Modifier and related rows
// carry proportionally reduced confidence.
func Rows(albumID string, parsed []Parsed) []models.ParsedGenre {
	var rows []models.ParsedGenre
	for _, p := range parsed {
		if p.Main != "" {
			rows = append(rows, models.ParsedGenre{
				AlbumID:    albumID,
				Name:       p.Main,
				Kind:       models.GenreMain,
				Confidence: p.Confidence,
				Period:     p.Period,
			})
		}
		for _, m := range p.Modifiers {
			rows = append(rows, models.ParsedGenre{
				AlbumID:    albumID,
				Name:       m,
				Kind:       models.GenreModifier,
				Confidence: p.Confidence * 0.8,
				Period:     p.Period,
			})
		}
		for _, rel := range p.Related {
			rows = append(rows, models.ParsedGenre{
				AlbumID:    albumID,
				Name:       rel,
				Kind:       models.GenreRelated,
				Confidence: p.Confidence * 0.7,
				Period:     p.Period,
			})
		}
	}
	return rows
}

// Taxonomy derives taxonomy upserts from parsed genres. Main genres become
// base entries with an inferred parent; modifiers become modifier entries.
func Taxonomy(parsed []Parsed) []models.GenreTaxonomy {
	seen := map[string]bool{}
	var out []models.GenreTaxonomy
	for _, p := range parsed {
		if p.Main != "" && !seen[p.Main] {
			seen[p.Main] = true
			t := models.GenreTaxonomy{Name: p.Main, Category: models.GenreCategoryBase}
			if parent := ParentOf(p.Main); parent != "" {
				t.Parent = &parent
			}
			out = append(out, t)
		}
		for _, m := range p.Modifiers {
			if !seen[m] {
				seen[m] = true
				out = append(out, models.GenreTaxonomy{Name: m, Category: models.GenreCategoryModifier})
			}
		}
		for _, r := range p.Related {
			if !seen[r] {
				seen[r] = true
				out = append(out, models.GenreTaxonomy{Name: r, Category: models.GenreCategoryStyle})
			}
		}
	}
	return out
}

// ParentOf infers a parent genre from the trailing words of a compound
// genre name ("Atmospheric Black Metal" -> "Black Metal"). Returns "" when
// no parent can be inferred.
func ParentOf(name string) string {
	words := strings.Fields(strings.ToLower(name))
	if len(words) < 2 {
		return ""
	}
	for i := 2; i >= 1; i-- {
		if i >= len(words) {
			continue
		}
		base := strings.Join(words[len(words)-i:], " ")
		if containsAny(base, metalIndicators) {
			parent := capitalize(base)
			if parent != name {
				return parent
			}
		}
	}
	return ""
}
