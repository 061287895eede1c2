package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidDate  = errors.New("invalid date")
)

const (
	// DateLayout is the day-granularity key used for all usage indexing.
	DateLayout = "2006-01-02"
	// MonthLayout is the month label used in trends and query parameters.
	MonthLayout = "2006-01"
)

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// TruncateToDay normalizes the timestamp to midnight in the provided zone.
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	loc = EnsureLocation(loc)
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DateKey returns the UTC calendar day of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// MonthAnchor identifies a calendar month. All arithmetic on it happens in UTC.
type MonthAnchor struct {
	Year  int
	Month time.Month
}

// AnchorOf returns the UTC month containing t.
func AnchorOf(t time.Time) MonthAnchor {
	t = t.UTC()
	return MonthAnchor{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a YYYY-MM label.
func ParseMonth(raw string) (MonthAnchor, error) {
	ts, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return MonthAnchor{}, fmt.Errorf("%w: %q", ErrInvalidMonth, raw)
	}
	return AnchorOf(ts), nil
}

// Valid reports whether the anchor names a real month.
func (a MonthAnchor) Valid() bool {
	return a.Year > 0 && a.Month >= time.January && a.Month <= time.December
}

func (a MonthAnchor) String() string { return a.Start().Format(MonthLayout) }

// Start returns midnight UTC on the first day of the month.
func (a MonthAnchor) Start() time.Time {
	return time.Date(a.Year, a.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the exclusive end of the month (first day of the next month).
func (a MonthAnchor) End() time.Time { return a.Start().AddDate(0, 1, 0) }

// Days returns the number of calendar days in the month.
func (a MonthAnchor) Days() int {
	return time.Date(a.Year, a.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day returns midnight UTC of the given 1-based day. Days beyond the month
// roll into the following month the way time.Date normalizes them.
func (a MonthAnchor) Day(index int) time.Time {
	return time.Date(a.Year, a.Month, index, 0, 0, 0, 0, time.UTC)
}

// Previous returns the month before a.
func (a MonthAnchor) Previous() MonthAnchor { return AnchorOf(a.Start().AddDate(0, -1, 0)) }

// Date is a calendar day decoded from either YYYY-MM-DD or RFC3339 input and
// normalized to midnight UTC.
type Date struct {
	time.Time
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp. Timestamps carrying an
// offset are converted to UTC before the day is taken.
func ParseDate(raw string) (Date, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return Date{}, ErrInvalidDate
	}
	if ts, err := time.ParseInLocation(DateLayout, clean, time.UTC); err == nil {
		return Date{Time: ts}, nil
	}
	ts, err := time.Parse(time.RFC3339, clean)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date{Time: TruncateToDay(ts, time.UTC)}, nil
}

// Key returns the YYYY-MM-DD form of the date.
func (d Date) Key() string { return DateKey(d.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Key() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window represents a [start, end) range labelled with a period name.
type Window struct {
	period string
	start  time.Time
	end    time.Time
}

// MonthWindow covers the whole calendar month of the anchor.
func MonthWindow(anchor MonthAnchor) Window {
	return Window{period: anchor.String(), start: anchor.Start(), end: anchor.End()}
}

// NewWindowFromRange constructs a window covering the provided [start, end) bounds in UTC.
func NewWindowFromRange(start, end time.Time, label string) (Window, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Window{}, ErrInvalidDate
	}
	p := strings.TrimSpace(label)
	if p == "" {
		p = "custom"
	}
	return Window{period: p, start: start, end: end}, nil
}

// Period returns the window label (e.g., "2025-01").
func (w Window) Period() string { return w.period }

// Bounds returns the start/end timestamps.
func (w Window) Bounds() (time.Time, time.Time) { return w.start, w.end }

// StartString returns the start timestamp formatted as RFC3339.
func (w Window) StartString() string { return w.start.Format(time.RFC3339) }

// EndString returns the end timestamp formatted as RFC3339.
func (w Window) EndString() string { return w.end.Format(time.RFC3339) }

// Contains reports whether the timestamp falls within [start, end).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.start) && ts.Before(w.end)
}
