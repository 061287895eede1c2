// Package series builds calendar-anchored daily usage series.
package series

import (
	"errors"
	"fmt"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
)

var (
	ErrInvalidWindow   = errors.New("window days must be > 0")
	ErrMalformedRecord = errors.New("malformed usage record")
)

// Entry is a dated credit amount. Several entries may share a date; they are summed.
type Entry struct {
	Date    timeutil.Date
	Credits int64
}

// DailySlot is one day of a series.
type DailySlot struct {
	DayIndex int    `json:"day_index"`
	Date     string `json:"date"`
	Credits  int64  `json:"credits"`
}

// Build returns exactly windowDays slots for the anchor month, day 1 first.
// Days without entries carry zero credits. Dates are keyed in UTC.
func Build(entries []Entry, windowDays int, anchor timeutil.MonthAnchor) ([]DailySlot, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, windowDays)
	}
	if !anchor.Valid() {
		return nil, timeutil.ErrInvalidMonth
	}
	window, err := Window(windowDays, anchor)
	if err != nil {
		return nil, err
	}
	daily := make(map[string]int64, len(entries))
	for i, entry := range entries {
		if entry.Credits < 0 {
			return nil, fmt.Errorf("%w: entry %d has negative credits", ErrMalformedRecord, i)
		}
		if entry.Date.IsZero() {
			return nil, fmt.Errorf("%w: entry %d has no date", ErrMalformedRecord, i)
		}
		if !window.Contains(entry.Date.Time) {
			continue
		}
		daily[entry.Date.Key()] += entry.Credits
	}
	return fill(windowDays, window, daily), nil
}

// Window covers windowDays calendar days starting on day 1 of the anchor
// month. Windows longer than the month run into the following one.
func Window(windowDays int, anchor timeutil.MonthAnchor) (timeutil.Window, error) {
	if windowDays <= 0 {
		return timeutil.Window{}, fmt.Errorf("%w: got %d", ErrInvalidWindow, windowDays)
	}
	return timeutil.NewWindowFromRange(anchor.Start(), anchor.Day(windowDays+1), anchor.String())
}

// Zero returns a windowDays series with every slot at zero credits.
func Zero(windowDays int, anchor timeutil.MonthAnchor) []DailySlot {
	window, err := Window(windowDays, anchor)
	if err != nil {
		return []DailySlot{}
	}
	return fill(windowDays, window, nil)
}

func fill(windowDays int, window timeutil.Window, daily map[string]int64) []DailySlot {
	start, _ := window.Bounds()
	slots := make([]DailySlot, 0, windowDays)
	for day := 1; day <= windowDays; day++ {
		key := timeutil.DateKey(start.AddDate(0, 0, day-1))
		slots = append(slots, DailySlot{
			DayIndex: day,
			Date:     key,
			Credits:  daily[key],
		})
	}
	return slots
}

// Total sums the credits of all slots.
func Total(slots []DailySlot) int64 {
	var total int64
	for _, slot := range slots {
		total += slot.Credits
	}
	return total
}

// ActiveRange returns the first and last dates with non-zero credits, or nil
// pointers when the series is empty.
func ActiveRange(slots []DailySlot) (*string, *string) {
	var start, end *string
	for _, slot := range slots {
		if slot.Credits <= 0 {
			continue
		}
		date := slot.Date
		if start == nil {
			start = &date
		}
		last := slot.Date
		end = &last
	}
	return start, end
}

// Peak returns the slot with the most credits; ties keep the earliest day.
func Peak(slots []DailySlot) (DailySlot, bool) {
	var best DailySlot
	found := false
	for _, slot := range slots {
		if !found || slot.Credits > best.Credits {
			best = slot
			found = true
		}
	}
	return best, found
}
