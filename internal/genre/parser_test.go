package genre

import (
	"testing"

	"github.com/velkrow/metalvault/internal/models"
)

func mains(parsed []Parsed) map[string]models.GenrePeriod {
	out := map[string]models.GenrePeriod{}
	for _, p := range parsed {
		if p.Main != "" {
			out[p.Main] = p.Period
		}
	}
	return out
}

func TestParseCompoundWithPeriods(t *testing.T) {
	parsed := Parse("Doom/Death Metal (early); Progressive Death/Black Metal (mid)")

	got := mains(parsed)
	want := map[string]models.GenrePeriod{
		"Doom Metal":              models.PeriodEarly,
		"Death Metal":             models.PeriodEarly,
		"Progressive Death Metal": models.PeriodMid,
		"Progressive Black Metal": models.PeriodMid,
	}
	if len(got) != len(want) {
		t.Fatalf("mains = %v, want %v", got, want)
	}
	for name, period := range want {
		if got[name] != period {
			t.Errorf("%s period = %s, want %s", name, got[name], period)
		}
	}
	for _, p := range parsed {
		if p.Main != "" && p.Confidence < 0.5 {
			t.Errorf("%s confidence = %.2f, want >= 0.5", p.Main, p.Confidence)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	if got := Parse(""); got != nil {
		t.Errorf("Parse(\"\") = %v, want nil", got)
	}
	if got := Parse("   \t "); got != nil {
		t.Errorf("Parse(whitespace) = %v, want nil", got)
	}
}

func TestParseSimple(t *testing.T) {
	parsed := Parse("Black Metal")
	if len(parsed) != 1 {
		t.Fatalf("got %d genres, want 1", len(parsed))
	}
	p := parsed[0]
	if p.Main != "Black Metal" {
		t.Errorf("main = %q, want \"Black Metal\"", p.Main)
	}
	if p.Confidence != 1.0 {
		t.Errorf("confidence = %.2f, want 1.0", p.Confidence)
	}
	if p.Period != models.PeriodNone {
		t.Errorf("period = %s, want none", p.Period)
	}
}

func TestParseModifiers(t *testing.T) {
	parsed := Parse("Atmospheric Black Metal")
	if len(parsed) != 1 {
		t.Fatalf("got %d genres, want 1", len(parsed))
	}
	p := parsed[0]
	if p.Main != "Atmospheric Black Metal" {
		t.Errorf("main = %q", p.Main)
	}
	if len(p.Modifiers) != 1 || p.Modifiers[0] != "Atmospheric" {
		t.Errorf("modifiers = %v, want [Atmospheric]", p.Modifiers)
	}
}

func TestParseRelatedNonMetal(t *testing.T) {
	parsed := Parse("Black Metal/Post-Rock")
	var related []string
	for _, p := range parsed {
		related = append(related, p.Related...)
	}
	if len(related) != 1 || related[0] != "Post-Rock" {
		t.Errorf("related = %v, want [Post-Rock]", related)
	}
	got := mains(parsed)
	if _, ok := got["Black Metal"]; !ok {
		t.Errorf("mains = %v, want Black Metal present", got)
	}
	if _, ok := got["Post-Rock Metal"]; ok {
		t.Error("suffix distribution must not touch non-metal parts")
	}
}

func TestParseAlias(t *testing.T) {
	parsed := Parse("Blackened Death Metal")
	got := mains(parsed)
	if _, ok := got["Black Metal"]; !ok {
		t.Errorf("mains = %v, want Black Metal from alias expansion", got)
	}
	if _, ok := got["Death Metal"]; !ok {
		t.Errorf("mains = %v, want Death Metal from alias expansion", got)
	}
}

func TestParseDeduplicates(t *testing.T) {
	parsed := Parse("Black Metal, Atmospheric Black Metal/Black Metal")
	count := 0
	for _, p := range parsed {
		if p.Main == "Black Metal" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Black Metal appears %d times, want 1", count)
	}
}

func TestRowsConfidenceScaling(t *testing.T) {
	parsed := []Parsed{{
		Main:       "Black Metal",
		Modifiers:  []string{"Atmospheric"},
		Related:    []string{"Post-Rock"},
		Period:     models.PeriodEarly,
		Confidence: 1.0,
	}}
	rows := Rows("a1", parsed)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	byKind := map[models.GenreKind]models.ParsedGenre{}
	for _, r := range rows {
		byKind[r.Kind] = r
		if r.AlbumID != "a1" {
			t.Errorf("album id = %q", r.AlbumID)
		}
		if r.Period != models.PeriodEarly {
			t.Errorf("%s period = %s, want early", r.Name, r.Period)
		}
	}
	if byKind[models.GenreMain].Confidence != 1.0 {
		t.Errorf("main confidence = %v", byKind[models.GenreMain].Confidence)
	}
	if byKind[models.GenreModifier].Confidence != 0.8 {
		t.Errorf("modifier confidence = %v", byKind[models.GenreModifier].Confidence)
	}
	if byKind[models.GenreRelated].Confidence != 0.7 {
		t.Errorf("related confidence = %v", byKind[models.GenreRelated].Confidence)
	}
}

func TestParentOf(t *testing.T) {
	tests := []struct {
		name   string
		parent string
	}{
		{"Atmospheric Black Metal", "Black Metal"},
		{"Technical Death Metal", "Death Metal"},
		{"Metal", ""},
		{"Shoegaze", ""},
	}
	for _, tt := range tests {
		if got := ParentOf(tt.name); got != tt.parent {
			t.Errorf("ParentOf(%q) = %q, want %q", tt.name, got, tt.parent)
		}
	}
}
