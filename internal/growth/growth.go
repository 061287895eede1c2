// Package growth derives period-over-period change rates.
package growth

import (
	"errors"
	"fmt"
	"math"

	decimal "github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid growth input")

// NewActivityPercent is reported when the previous period is zero and the
// current one is not. The plain ratio is undefined there.
const NewActivityPercent = 100.0

// Rate is a computed change between two periods.
type Rate struct {
	Percent     float64 `json:"percent"`
	Display     string  `json:"display"`
	NewActivity bool    `json:"new_activity,omitempty"`
}

// Percent returns (current-previous)/previous*100 rounded to one decimal.
// A zero previous value yields 0 when current is also zero and ±100 otherwise.
func Percent(current, previous float64) (float64, error) {
	if !finite(current) || !finite(previous) {
		return 0, fmt.Errorf("%w: current=%v previous=%v", ErrInvalidInput, current, previous)
	}
	if previous == 0 {
		switch {
		case current > 0:
			return NewActivityPercent, nil
		case current < 0:
			return -NewActivityPercent, nil
		default:
			return 0, nil
		}
	}
	change := decimal.NewFromFloat(current).
		Sub(decimal.NewFromFloat(previous)).
		Div(decimal.NewFromFloat(previous)).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	return change.InexactFloat64(), nil
}

// Compute wraps Percent with its display form and the new-activity flag.
func Compute(current, previous float64) (Rate, error) {
	pct, err := Percent(current, previous)
	if err != nil {
		return Rate{}, err
	}
	return Rate{
		Percent:     pct,
		Display:     Format(pct),
		NewActivity: previous == 0 && current != 0,
	}, nil
}

// ComputeInt is Compute for integer counters. Converted int64 values are
// always finite, so the non-finite error path cannot trigger.
func ComputeInt(current, previous int64) Rate {
	rate, err := Compute(float64(current), float64(previous))
	if err != nil {
		panic(err)
	}
	return rate
}

// Format renders p with an explicit sign and one decimal: "+50.0%", "-12.5%".
func Format(p float64) string {
	d := decimal.NewFromFloat(p).Round(1)
	if d.IsNegative() {
		return "-" + d.Abs().StringFixed(1) + "%"
	}
	return "+" + d.StringFixed(1) + "%"
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
