package repository

import (
	"fmt"
	"regexp"
	"time"
)

// PeriodKind selects the granularity of grouped-date queries.
type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

var (
	dayKeyRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	weekKeyRe  = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
	monthKeyRe = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
)

// PeriodRange resolves a period key ("2025-10-07", "2025-W41", "2025-10")
// into an inclusive [start, end] day range in UTC.
func PeriodRange(kind PeriodKind, key string) (time.Time, time.Time, error) {
	switch kind {
	case PeriodDay:
		if !dayKeyRe.MatchString(key) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: day key %q", ErrInvalidPeriod, key)
		}
		d, err := time.ParseInLocation("2006-01-02", key, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		return d, d, nil

	case PeriodWeek:
		m := weekKeyRe.FindStringSubmatch(key)
		if m == nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: week key %q", ErrInvalidPeriod, key)
		}
		var year, week int
		fmt.Sscanf(m[1], "%d", &year)
		fmt.Sscanf(m[2], "%d", &week)
		if week < 1 || week > 53 {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: week key %q", ErrInvalidPeriod, key)
		}
		start := isoWeekStart(year, week)
		return start, start.AddDate(0, 0, 6), nil

	case PeriodMonth:
		m := monthKeyRe.FindStringSubmatch(key)
		if m == nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: month key %q", ErrInvalidPeriod, key)
		}
		start, err := time.ParseInLocation("2006-01", key, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
		}
		return start, start.AddDate(0, 1, -1), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: kind %q", ErrInvalidPeriod, kind)
}

// isoWeekStart returns the Monday of the given ISO 8601 week.
func isoWeekStart(year, week int) time.Time {
	// Jan 4 is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}
