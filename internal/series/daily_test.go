package series

import (
	"errors"
	"testing"
	"time"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
)

func mustDate(t *testing.T, raw string) timeutil.Date {
	t.Helper()
	d, err := timeutil.ParseDate(raw)
	if err != nil {
		t.Fatalf("parse date %q: %v", raw, err)
	}
	return d
}

func TestBuild_FillsMissingDaysAndSumsDuplicates(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2025, Month: time.January}
	entries := []Entry{
		{Date: mustDate(t, "2025-01-01"), Credits: 10},
		{Date: mustDate(t, "2025-01-03"), Credits: 5},
		{Date: mustDate(t, "2025-01-03T18:00:00Z"), Credits: 7},
	}

	slots, err := Build(entries, 3, anchor)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}

	tests := []struct {
		index       int
		wantDay     int
		wantDate    string
		wantCredits int64
	}{
		{0, 1, "2025-01-01", 10},
		{1, 2, "2025-01-02", 0},
		{2, 3, "2025-01-03", 12},
	}
	for _, tt := range tests {
		slot := slots[tt.index]
		if slot.DayIndex != tt.wantDay {
			t.Errorf("index %d: want day %d, got %d", tt.index, tt.wantDay, slot.DayIndex)
		}
		if slot.Date != tt.wantDate {
			t.Errorf("index %d: want date %s, got %s", tt.index, tt.wantDate, slot.Date)
		}
		if slot.Credits != tt.wantCredits {
			t.Errorf("index %d: want credits %d, got %d", tt.index, tt.wantCredits, slot.Credits)
		}
	}
}

func TestBuild_LengthIndependentOfSourceSize(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2024, Month: time.February}
	full := make([]Entry, 0, 29)
	for day := 1; day <= 29; day++ {
		full = append(full, Entry{Date: timeutil.Date{Time: anchor.Day(day)}, Credits: int64(day)})
	}
	sources := map[string][]Entry{
		"empty":   nil,
		"partial": full[:4],
		"full":    full,
	}
	for name, entries := range sources {
		slots, err := Build(entries, 29, anchor)
		if err != nil {
			t.Fatalf("%s: build: %v", name, err)
		}
		if len(slots) != 29 {
			t.Fatalf("%s: expected 29 slots, got %d", name, len(slots))
		}
		for _, slot := range slots {
			if name == "empty" && slot.Credits != 0 {
				t.Fatalf("%s: expected zero credits on %s", name, slot.Date)
			}
			if name == "partial" && slot.DayIndex > 4 && slot.Credits != 0 {
				t.Fatalf("%s: expected gap-filled zero on %s", name, slot.Date)
			}
		}
	}
}

func TestBuild_KeysByUTCDay(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2025, Month: time.March}
	// 23:30 New York on the 9th is the 10th in UTC.
	entries := []Entry{{Date: mustDate(t, "2025-03-09T23:30:00-04:00"), Credits: 3}}
	slots, err := Build(entries, 31, anchor)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if slots[8].Credits != 0 || slots[9].Credits != 3 {
		t.Fatalf("expected credits on 2025-03-10, got day9=%d day10=%d", slots[8].Credits, slots[9].Credits)
	}
}

func TestBuild_IgnoresEntriesOutsideWindow(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2025, Month: time.April}
	entries := []Entry{
		{Date: mustDate(t, "2025-03-31"), Credits: 100},
		{Date: mustDate(t, "2025-04-02"), Credits: 1},
		{Date: mustDate(t, "2025-05-01"), Credits: 50},
	}
	slots, err := Build(entries, 30, anchor)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := Total(slots); got != 1 {
		t.Fatalf("expected total 1, got %d", got)
	}
}

func TestBuild_WindowRunsPastMonthEnd(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2025, Month: time.February}
	entries := []Entry{
		{Date: mustDate(t, "2025-03-01"), Credits: 7},
		{Date: mustDate(t, "2025-03-02"), Credits: 9},
	}
	slots, err := Build(entries, 29, anchor)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if last := slots[28]; last.Date != "2025-03-01" || last.Credits != 7 {
		t.Fatalf("unexpected last slot %+v", last)
	}
	if got := Total(slots); got != 7 {
		t.Fatalf("expected total 7, got %d", got)
	}
}

func TestWindow(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2024, Month: time.February}
	win, err := Window(29, anchor)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if win.Period() != "2024-02" {
		t.Fatalf("unexpected period %q", win.Period())
	}
	start, end := win.Bounds()
	if !start.Equal(anchor.Start()) || !end.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bounds %s..%s", start, end)
	}
	if _, err := Window(0, anchor); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestBuild_Errors(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2025, Month: time.May}
	if _, err := Build(nil, 0, anchor); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	bad := []Entry{{Date: mustDate(t, "2025-05-01"), Credits: -1}}
	if _, err := Build(bad, 31, anchor); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	if _, err := Build([]Entry{{Credits: 1}}, 31, anchor); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord for missing date, got %v", err)
	}
	if _, err := Build(nil, 31, timeutil.MonthAnchor{}); !errors.Is(err, timeutil.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestZero(t *testing.T) {
	anchor := timeutil.MonthAnchor{Year: 2025, Month: time.June}
	slots := Zero(30, anchor)
	if len(slots) != 30 {
		t.Fatalf("expected 30 slots, got %d", len(slots))
	}
	if slots[29].Date != "2025-06-30" || Total(slots) != 0 {
		t.Fatalf("unexpected zero series tail %+v", slots[29])
	}
	if got := Zero(-1, anchor); len(got) != 0 {
		t.Fatalf("expected empty series for invalid window")
	}
}

func TestActiveRangeAndPeak(t *testing.T) {
	slots := []DailySlot{
		{DayIndex: 1, Date: "2025-01-01"},
		{DayIndex: 2, Date: "2025-01-02", Credits: 4},
		{DayIndex: 3, Date: "2025-01-03", Credits: 9},
		{DayIndex: 4, Date: "2025-01-04", Credits: 9},
		{DayIndex: 5, Date: "2025-01-05"},
	}
	start, end := ActiveRange(slots)
	if start == nil || end == nil || *start != "2025-01-02" || *end != "2025-01-04" {
		t.Fatalf("unexpected active range %v %v", start, end)
	}
	peak, ok := Peak(slots)
	if !ok || peak.DayIndex != 3 {
		t.Fatalf("expected earliest peak on day 3, got %+v", peak)
	}
	if s, e := ActiveRange(Zero(3, timeutil.MonthAnchor{Year: 2025, Month: time.January})); s != nil || e != nil {
		t.Fatalf("expected no active range for zero series")
	}
}
