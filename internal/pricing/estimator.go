// Package pricing converts credit usage into money using tiered unit pricing.
package pricing

import (
	"errors"
	"fmt"

	decimal "github.com/shopspring/decimal"
)

var (
	ErrInvalidInput = errors.New("invalid pricing input")
	ErrInvalidTiers = errors.New("invalid pricing tiers")
)

// Unbounded marks the tier that matches every quantity above the last finite bound.
const Unbounded int64 = 0

var hundred = decimal.NewFromInt(100)

// Tier prices a usage bracket. PriceCents is the flat price of ReferenceCredits
// credits; the per-credit rate is PriceCents / ReferenceCredits. UpperBoundCredits
// is inclusive.
type Tier struct {
	UpperBoundCredits int64 `json:"upper_bound_credits" mapstructure:"upper_bound_credits"`
	PriceCents        int64 `json:"price_cents" mapstructure:"price_cents"`
	ReferenceCredits  int64 `json:"reference_credits" mapstructure:"reference_credits"`
}

// IsUnbounded reports whether the tier has no upper bound.
func (t Tier) IsUnbounded() bool { return t.UpperBoundCredits == Unbounded }

func (t Tier) rateCents() decimal.Decimal {
	return decimal.NewFromInt(t.PriceCents).Div(decimal.NewFromInt(t.ReferenceCredits))
}

// DefaultTiers returns the platform price list.
func DefaultTiers() []Tier {
	return []Tier{
		{UpperBoundCredits: 6_000, PriceCents: 424, ReferenceCredits: 6_000},
		{UpperBoundCredits: 10_000, PriceCents: 1_417, ReferenceCredits: 10_000},
		{UpperBoundCredits: Unbounded, PriceCents: 7_082, ReferenceCredits: 20_000},
	}
}

// Estimator maps credit quantities to cent amounts. It is immutable once built.
type Estimator struct {
	tiers []Tier
}

// NewEstimator validates the tier table. Finite bounds must ascend, the single
// unbounded tier must come last, and per-credit rates may not decrease so that
// estimates stay monotonic across tier boundaries.
func NewEstimator(tiers []Tier) (*Estimator, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: at least one tier required", ErrInvalidTiers)
	}
	copied := make([]Tier, len(tiers))
	copy(copied, tiers)

	var prevBound int64
	var prevRate decimal.Decimal
	for i, tier := range copied {
		if tier.ReferenceCredits <= 0 {
			return nil, fmt.Errorf("%w: tier %d reference_credits must be > 0", ErrInvalidTiers, i)
		}
		if tier.PriceCents < 0 {
			return nil, fmt.Errorf("%w: tier %d price_cents must be >= 0", ErrInvalidTiers, i)
		}
		last := i == len(copied)-1
		if tier.IsUnbounded() != last {
			return nil, fmt.Errorf("%w: exactly the last tier must be unbounded", ErrInvalidTiers)
		}
		if !tier.IsUnbounded() {
			if tier.UpperBoundCredits < 0 || tier.UpperBoundCredits <= prevBound {
				return nil, fmt.Errorf("%w: tier %d bound must ascend", ErrInvalidTiers, i)
			}
			prevBound = tier.UpperBoundCredits
		}
		rate := tier.rateCents()
		if i > 0 && rate.LessThan(prevRate) {
			return nil, fmt.Errorf("%w: tier %d rate below previous tier", ErrInvalidTiers, i)
		}
		prevRate = rate
	}
	return &Estimator{tiers: copied}, nil
}

// MustDefault returns an estimator over DefaultTiers.
func MustDefault() *Estimator {
	est, err := NewEstimator(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return est
}

// Tiers returns a copy of the configured tiers.
func (e *Estimator) Tiers() []Tier {
	out := make([]Tier, len(e.tiers))
	copy(out, e.tiers)
	return out
}

// TierFor returns the first tier whose inclusive bound covers credits.
func (e *Estimator) TierFor(credits int64) (Tier, error) {
	if credits < 0 {
		return Tier{}, fmt.Errorf("%w: credits must be >= 0, got %d", ErrInvalidInput, credits)
	}
	for _, tier := range e.tiers {
		if tier.IsUnbounded() || credits <= tier.UpperBoundCredits {
			return tier, nil
		}
	}
	// unreachable with a validated table
	return e.tiers[len(e.tiers)-1], nil
}

// Estimate returns the cost of credits in cents, rounded half-up to the nearest cent.
func (e *Estimator) Estimate(credits int64) (int64, error) {
	tier, err := e.TierFor(credits)
	if err != nil {
		return 0, err
	}
	if credits == 0 {
		return 0, nil
	}
	cost := decimal.NewFromInt(credits).
		Mul(decimal.NewFromInt(tier.PriceCents)).
		Div(decimal.NewFromInt(tier.ReferenceCredits)).
		Round(0)
	return cost.IntPart(), nil
}

// UnitRate returns the tier's per-credit price in dollars.
func UnitRate(tier Tier) decimal.Decimal {
	return tier.rateCents().Div(hundred)
}
