// Package format renders counts and money for display. Aggregate totals and
// unit prices have separate entry points so call sites pick the precision.
package format

import (
	"errors"
	"fmt"
	"math"
	"strings"

	decimal "github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrInvalidInput = errors.New("invalid format input")

const currencySymbol = "$"

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	one      = decimal.NewFromInt(1)

	printer = message.NewPrinter(language.English)
)

// Magnitude abbreviates n: ≥1e6 as "X.YM", ≥1e3 as "X.YK", one decimal rounded
// half away from zero. Smaller values are printed plainly with at most two decimals.
func Magnitude(n float64) (string, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, n)
	}
	return magnitude(decimal.NewFromFloat(n)), nil
}

// MagnitudeInt is Magnitude for integer counts.
func MagnitudeInt(n int64) string {
	return magnitude(decimal.NewFromInt(n))
}

// magnitude buckets on the rounded value, so 999_950 reads "1.0M" rather
// than "1000.0K".
func magnitude(d decimal.Decimal) string {
	plain := d.Round(2)
	if plain.Abs().LessThan(thousand) {
		return plain.String()
	}
	if d.Abs().LessThan(million) {
		if k := d.Div(thousand).Round(1); k.Abs().LessThan(thousand) {
			return k.StringFixed(1) + "K"
		}
	}
	return d.Div(million).Round(1).StringFixed(1) + "M"
}

// Currency renders an aggregate amount given in cents: "$1,234.56".
func Currency(cents int64) string {
	return money(decimal.New(cents, -2))
}

// UnitCost renders a per-unit dollar price. Amounts under one dollar keep four
// decimals so sub-cent rates stay visible.
func UnitCost(dollars decimal.Decimal) string {
	if dollars.Abs().LessThan(one) {
		sign := ""
		if dollars.IsNegative() {
			sign = "-"
		}
		return sign + currencySymbol + dollars.Abs().Round(4).StringFixed(4)
	}
	return money(dollars)
}

// money prints dollars with two decimals and grouped thousands. The digits
// come straight from the decimal so large amounts keep every cent.
func money(dollars decimal.Decimal) string {
	sign := ""
	if dollars.IsNegative() {
		sign = "-"
	}
	whole, frac, _ := strings.Cut(dollars.Abs().StringFixed(2), ".")
	return sign + currencySymbol + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseCurrency reads a Currency or UnitCost string back into cents, rounding
// half away from zero.
func ParseCurrency(raw string) (int64, error) {
	clean := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(clean, "-") {
		negative = true
		clean = strings.TrimPrefix(clean, "-")
	}
	clean = strings.TrimPrefix(clean, currencySymbol)
	if strings.HasPrefix(clean, "-") {
		negative = !negative
		clean = strings.TrimPrefix(clean, "-")
	}
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, raw)
	}
	cents := amount.Shift(2).Round(0).IntPart()
	if negative {
		cents = -cents
	}
	return cents, nil
}

// Percent renders a share with one decimal: "45.0%".
func Percent(p float64) string {
	return decimal.NewFromFloat(p).Round(1).StringFixed(1) + "%"
}

// Credits renders a credit count with thousands separators: "1,250,000".
func Credits(n int64) string {
	return printer.Sprintf("%d", n)
}
