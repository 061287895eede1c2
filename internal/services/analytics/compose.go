package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	decimal "github.com/shopspring/decimal"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/format"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/growth"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/models"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
)

var (
	ErrUnsupportedSortKey = errors.New("unsupported sort key")
	ErrMalformedData      = errors.New("malformed analytics data")
)

// SortKey selects the column users are ranked by.
type SortKey string

const SortCreditsToday SortKey = "credits_today"

// ParseSortKey maps a query value to a SortKey. Empty input selects credits_today.
func ParseSortKey(raw string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortCreditsToday:
		return SortCreditsToday, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSortKey, raw)
	}
}

// UserCostEntry is a ranked user with the estimated cost of today's credits.
type UserCostEntry struct {
	Rank               int    `json:"rank"`
	UserID             string `json:"user_id"`
	Email              string `json:"email,omitempty"`
	Name               string `json:"name,omitempty"`
	CreditsToday       int64  `json:"credits_today"`
	CreditsTotal       int64  `json:"credits_total"`
	CreditsDisplay     string `json:"credits_display"`
	EstimatedCostCents int64  `json:"estimated_cost_cents"`
	EstimatedCost      string `json:"estimated_cost"`
}

// RankUsers orders users by key, highest first, keeping input order on ties,
// and returns the first limit entries (all when limit <= 0).
func RankUsers(users []models.UserUsage, key SortKey, limit int, estimator *pricing.Estimator) ([]UserCostEntry, error) {
	if key != SortCreditsToday {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSortKey, key)
	}
	ranked := make([]models.UserUsage, len(users))
	copy(ranked, users)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CreditsToday > ranked[j].CreditsToday
	})
	ranked = truncate(ranked, limit)

	entries := make([]UserCostEntry, 0, len(ranked))
	for i, user := range ranked {
		cost, err := estimator.Estimate(user.CreditsToday)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", user.UserID, err)
		}
		entries = append(entries, UserCostEntry{
			Rank:               i + 1,
			UserID:             user.UserID,
			Email:              user.Email,
			Name:               user.Name,
			CreditsToday:       user.CreditsToday,
			CreditsTotal:       user.CreditsTotal,
			CreditsDisplay:     format.MagnitudeInt(user.CreditsToday),
			EstimatedCostCents: cost,
			EstimatedCost:      format.Currency(cost),
		})
	}
	return entries, nil
}

// FeatureShareEntry is a feature's share of all credits spent.
type FeatureShareEntry struct {
	Rank           int     `json:"rank"`
	FeatureName    string  `json:"feature_name"`
	Credits        int64   `json:"credits"`
	CreditsDisplay string  `json:"credits_display"`
	Percent        float64 `json:"percent"`
	PercentDisplay string  `json:"percent_display"`
}

// FeatureShares computes each feature's percentage of the total over all
// features, ranks them by credits and then applies limit. Rows naming the same
// feature are merged.
func FeatureShares(features []models.FeatureUsage, limit int) ([]FeatureShareEntry, error) {
	merged, err := mergeFeatures(features)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, f := range merged {
		total += f.CreditsSpent
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreditsSpent > merged[j].CreditsSpent
	})
	merged = truncate(merged, limit)

	hundred := decimal.NewFromInt(100)
	entries := make([]FeatureShareEntry, 0, len(merged))
	for i, f := range merged {
		pct := 0.0
		if total > 0 {
			pct = decimal.NewFromInt(f.CreditsSpent).
				Mul(hundred).
				Div(decimal.NewFromInt(total)).
				Round(1).
				InexactFloat64()
		}
		entries = append(entries, FeatureShareEntry{
			Rank:           i + 1,
			FeatureName:    f.FeatureName,
			Credits:        f.CreditsSpent,
			CreditsDisplay: format.MagnitudeInt(f.CreditsSpent),
			Percent:        pct,
			PercentDisplay: format.Percent(pct),
		})
	}
	return entries, nil
}

// FeatureCostEntry is the estimated cost of one feature's credits.
type FeatureCostEntry struct {
	Rank           int    `json:"rank"`
	FeatureName    string `json:"feature_name"`
	Credits        int64  `json:"credits"`
	CreditsDisplay string `json:"credits_display"`
	CostCents      int64  `json:"cost_cents"`
	Cost           string `json:"cost"`
	UnitCost       string `json:"unit_cost"`
}

// FeatureCosts estimates every feature on its own credits. Costs are never
// pooled, so a feature's tier depends only on its own usage.
func FeatureCosts(features []models.FeatureUsage, estimator *pricing.Estimator) ([]FeatureCostEntry, error) {
	merged, err := mergeFeatures(features)
	if err != nil {
		return nil, err
	}
	entries := make([]FeatureCostEntry, 0, len(merged))
	for _, f := range merged {
		tier, err := estimator.TierFor(f.CreditsSpent)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.FeatureName, err)
		}
		cost, err := estimator.Estimate(f.CreditsSpent)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.FeatureName, err)
		}
		entries = append(entries, FeatureCostEntry{
			FeatureName:    f.FeatureName,
			Credits:        f.CreditsSpent,
			CreditsDisplay: format.MagnitudeInt(f.CreditsSpent),
			CostCents:      cost,
			Cost:           format.Currency(cost),
			UnitCost:       format.UnitCost(pricing.UnitRate(tier)),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CostCents > entries[j].CostCents
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// MetricSummary is one metric of the period comparison. Error is set when the
// metric could not be compared; sibling metrics are unaffected.
type MetricSummary struct {
	Current         int64        `json:"current"`
	Previous        int64        `json:"previous"`
	CurrentDisplay  string       `json:"current_display"`
	PreviousDisplay string       `json:"previous_display"`
	Growth          *growth.Rate `json:"growth,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// PeriodSummary compares the current month against the previous one.
type PeriodSummary struct {
	Revenue            MetricSummary `json:"revenue"`
	Users              MetricSummary `json:"users"`
	Credits            MetricSummary `json:"credits"`
	EstimatedCostCents int64         `json:"estimated_cost_cents"`
	EstimatedCost      string        `json:"estimated_cost"`
	CostError          string        `json:"cost_error,omitempty"`
}

// SummarizePeriods runs the growth calculation for revenue, users and credits
// independently and estimates the cost of the current month's credits.
func SummarizePeriods(current, previous models.PeriodAggregate, estimator *pricing.Estimator) PeriodSummary {
	summary := PeriodSummary{
		Revenue: summarizeMetric(current.RevenueCents, previous.RevenueCents, true, format.Currency),
		Users:   summarizeMetric(current.UserCount, previous.UserCount, false, format.MagnitudeInt),
		Credits: summarizeMetric(current.CreditsUsed, previous.CreditsUsed, false, format.MagnitudeInt),
	}
	cost, err := estimator.Estimate(current.CreditsUsed)
	if err != nil {
		summary.CostError = err.Error()
		summary.EstimatedCost = format.Currency(0)
		return summary
	}
	summary.EstimatedCostCents = cost
	summary.EstimatedCost = format.Currency(cost)
	return summary
}

func summarizeMetric(current, previous int64, allowNegative bool, display func(int64) string) MetricSummary {
	m := MetricSummary{
		Current:         current,
		Previous:        previous,
		CurrentDisplay:  display(current),
		PreviousDisplay: display(previous),
	}
	if !allowNegative && (current < 0 || previous < 0) {
		m.Error = fmt.Sprintf("%s: negative count", ErrMalformedData)
		return m
	}
	rate, err := growth.Compute(float64(current), float64(previous))
	if err != nil {
		m.Error = err.Error()
		return m
	}
	m.Growth = &rate
	return m
}

// MonthlyTrendEntry is one month of the trend with month-over-month growth.
// The earliest month carries no growth.
type MonthlyTrendEntry struct {
	Month          string       `json:"month"`
	RevenueCents   int64        `json:"revenue_cents"`
	Revenue        string       `json:"revenue"`
	UserCount      int64        `json:"user_count"`
	CreditsUsed    int64        `json:"credits_used"`
	CreditsDisplay string       `json:"credits_display"`
	RevenueGrowth  *growth.Rate `json:"revenue_growth,omitempty"`
	UserGrowth     *growth.Rate `json:"user_growth,omitempty"`
	CreditsGrowth  *growth.Rate `json:"credits_growth,omitempty"`
}

// MonthlyTrend sorts points chronologically and attaches growth against the
// preceding point.
func MonthlyTrend(points []models.MonthlyPoint) ([]MonthlyTrendEntry, error) {
	type keyed struct {
		anchor timeutil.MonthAnchor
		point  models.MonthlyPoint
	}
	rows := make([]keyed, 0, len(points))
	seen := make(map[timeutil.MonthAnchor]struct{}, len(points))
	for _, p := range points {
		anchor, err := timeutil.ParseMonth(p.Month)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		if _, dup := seen[anchor]; dup {
			return nil, fmt.Errorf("%w: duplicate month %s", ErrMalformedData, anchor)
		}
		if p.UserCount < 0 || p.CreditsUsed < 0 {
			return nil, fmt.Errorf("%w: negative count in %s", ErrMalformedData, anchor)
		}
		seen[anchor] = struct{}{}
		rows = append(rows, keyed{anchor: anchor, point: p})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].anchor.Start().Before(rows[j].anchor.Start())
	})

	entries := make([]MonthlyTrendEntry, 0, len(rows))
	for i, row := range rows {
		p := row.point
		entry := MonthlyTrendEntry{
			Month:          row.anchor.String(),
			RevenueCents:   p.RevenueCents,
			Revenue:        format.Currency(p.RevenueCents),
			UserCount:      p.UserCount,
			CreditsUsed:    p.CreditsUsed,
			CreditsDisplay: format.MagnitudeInt(p.CreditsUsed),
		}
		if i > 0 {
			prev := rows[i-1].point
			revenue := growth.ComputeInt(p.RevenueCents, prev.RevenueCents)
			users := growth.ComputeInt(p.UserCount, prev.UserCount)
			credits := growth.ComputeInt(p.CreditsUsed, prev.CreditsUsed)
			entry.RevenueGrowth = &revenue
			entry.UserGrowth = &users
			entry.CreditsGrowth = &credits
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// mergeFeatures sums rows sharing a feature name, keeping first-seen order.
func mergeFeatures(features []models.FeatureUsage) ([]models.FeatureUsage, error) {
	index := make(map[string]int, len(features))
	merged := make([]models.FeatureUsage, 0, len(features))
	for _, f := range features {
		name := strings.TrimSpace(f.FeatureName)
		if name == "" {
			return nil, fmt.Errorf("%w: feature without name", ErrMalformedData)
		}
		if f.CreditsSpent < 0 {
			return nil, fmt.Errorf("%w: feature %s has negative credits", ErrMalformedData, name)
		}
		if i, ok := index[name]; ok {
			merged[i].CreditsSpent += f.CreditsSpent
			continue
		}
		index[name] = len(merged)
		merged = append(merged, models.FeatureUsage{FeatureName: name, CreditsSpent: f.CreditsSpent})
	}
	return merged, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
