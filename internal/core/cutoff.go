package core

import (
	"sort"
	"strings"
	"time"
)

// CutoffSource records where the cutoff date came from.
type CutoffSource string

const (
	CutoffCallerSupplied CutoffSource = "caller-supplied"
	CutoffDefaultToNow   CutoffSource = "default-to-now"
)

// CutoffContext is the temporal boundary of a single invocation. It is built
// once at entry and passed down; nothing below it reads the clock.
type CutoffContext struct {
	Date   time.Time
	Source CutoffSource
}

// NewCutoffContext parses raw (YYYY-MM-DD). An empty value defaults to the
// calendar date of now.
func NewCutoffContext(raw string, now time.Time) (CutoffContext, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CutoffContext{Date: truncateDay(now), Source: CutoffDefaultToNow}, nil
	}
	date, err := ParseDate("cutoff_date", raw)
	if err != nil {
		return CutoffContext{}, err
	}
	return CutoffContext{Date: date, Source: CutoffCallerSupplied}, nil
}

// Boundary is the last instant that is still inside the cutoff: the cutoff
// date itself is inclusive through 23:59:59 UTC.
func (c CutoffContext) Boundary() time.Time {
	return c.Date.Add(24*time.Hour - time.Second)
}

// Allows reports whether a capture instant is at or before the boundary.
func (c CutoffContext) Allows(ts time.Time) bool {
	return !ts.UTC().After(c.Boundary())
}

// String returns the cutoff as YYYY-MM-DD.
func (c CutoffContext) String() string {
	return c.Date.Format(DateLayout)
}

// ParseDate parses a calendar date for the named field.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, InvalidDate(field, value, "")
	}
	return t, nil
}

// Clamp returns min(date, cutoff date). Clamp is idempotent.
func Clamp(date time.Time, cutoff CutoffContext) time.Time {
	day := truncateDay(date)
	if day.After(cutoff.Date) {
		return cutoff.Date
	}
	return day
}

// Filter drops snapshots captured after the cutoff boundary. Order is kept.
func Filter(snaps []Snapshot, cutoff CutoffContext) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if cutoff.Allows(snap.Timestamp) {
			out = append(out, snap)
		}
	}
	return out
}

// YearRange is the queryable span of one requested year.
type YearRange struct {
	Year int
	From time.Time
	To   time.Time
}

// PruneYears sorts and de-duplicates years, drops every year that begins
// after the cutoff and clamps the end of the remaining ones.
func PruneYears(years []int, cutoff CutoffContext) []YearRange {
	unique := make(map[int]struct{}, len(years))
	sorted := make([]int, 0, len(years))
	for _, y := range years {
		if _, ok := unique[y]; ok {
			continue
		}
		unique[y] = struct{}{}
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	ranges := make([]YearRange, 0, len(sorted))
	for _, y := range sorted {
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		if from.After(cutoff.Date) {
			continue
		}
		to := Clamp(time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC), cutoff)
		ranges = append(ranges, YearRange{Year: y, From: from, To: to})
	}
	return ranges
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
