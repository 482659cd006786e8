package pipeline

import (
	"testing"
	"time"
)

func TestArtifactName(t *testing.T) {
	day := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	if got := ArtifactName(day); got != "albums_31-08-2025.json" {
		t.Errorf("ArtifactName = %q", got)
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("05-01-2026")
	if err != nil {
		t.Fatal(err)
	}
	if d.Year() != 2026 || d.Month() != time.January || d.Day() != 5 {
		t.Errorf("parsed %v", d)
	}

	for _, bad := range []string{"2026-01-05", "31/08/2025", "32-01-2026", ""} {
		if _, err := ParseDay(bad); err == nil {
			t.Errorf("ParseDay(%q) accepted", bad)
		}
	}
}

func TestSingleFlight(t *testing.T) {
	o := &Orchestrator{}
	if !o.running.CompareAndSwap(false, true) {
		t.Fatal("fresh orchestrator reported running")
	}
	// A second run must refuse while the flag is held.
	if _, err := o.RunForDate(nil, time.Now(), false); err != ErrAlreadyRunning {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}
}
