package repository

import (
	"errors"
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPeriodRange(t *testing.T) {
	tests := []struct {
		name  string
		kind  PeriodKind
		key   string
		start string
		end   string
	}{
		{"single day", PeriodDay, "2025-10-07", "2025-10-07", "2025-10-07"},
		{"month", PeriodMonth, "2025-10", "2025-10-01", "2025-10-31"},
		{"month february", PeriodMonth, "2024-02", "2024-02-01", "2024-02-29"},
		{"iso week mid-year", PeriodWeek, "2025-W41", "2025-10-06", "2025-10-12"},
		{"iso week 1 starts prior year", PeriodWeek, "2025-W01", "2024-12-30", "2025-01-05"},
		{"iso week 53", PeriodWeek, "2020-W53", "2020-12-28", "2021-01-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := PeriodRange(tt.kind, tt.key)
			if err != nil {
				t.Fatalf("PeriodRange(%s, %s): %v", tt.kind, tt.key, err)
			}
			if !start.Equal(day(tt.start)) {
				t.Errorf("start = %s, want %s", start.Format("2006-01-02"), tt.start)
			}
			if !end.Equal(day(tt.end)) {
				t.Errorf("end = %s, want %s", end.Format("2006-01-02"), tt.end)
			}
		})
	}
}

func TestPeriodRangeMatchesISOWeek(t *testing.T) {
	// Every day of a resolved week must report the same ISO week as the key.
	start, end, err := PeriodRange(PeriodWeek, "2025-W41")
	if err != nil {
		t.Fatal(err)
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		year, week := d.ISOWeek()
		if year != 2025 || week != 41 {
			t.Errorf("%s reports ISO week %d-W%02d", d.Format("2006-01-02"), year, week)
		}
	}
}

func TestPeriodRangeInvalid(t *testing.T) {
	tests := []struct {
		kind PeriodKind
		key  string
	}{
		{PeriodDay, "07-10-2025"},
		{PeriodDay, "2025-10"},
		{PeriodWeek, "2025-41"},
		{PeriodWeek, "2025-W99"},
		{PeriodMonth, "2025"},
		{PeriodKind("year"), "2025"},
	}
	for _, tt := range tests {
		if _, _, err := PeriodRange(tt.kind, tt.key); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("PeriodRange(%s, %q) err = %v, want ErrInvalidPeriod", tt.kind, tt.key, err)
		}
	}
}
