package models

import (
	"encoding/json"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
)

// PeriodAggregate holds the month totals used for growth comparisons.
type PeriodAggregate struct {
	RevenueCents int64 `json:"revenue_cents"`
	UserCount    int64 `json:"user_count"`
	CreditsUsed  int64 `json:"credits_used"`
}

// DashboardSummary is the payload of the dashboard summary endpoint.
type DashboardSummary struct {
	Current  PeriodAggregate `json:"current"`
	Previous PeriodAggregate `json:"previous"`
}

// FeatureUsage is a feature's credit total. Served by the feature usage and
// cost-per-feature endpoints.
type FeatureUsage struct {
	FeatureName  string `json:"feature_name"`
	CreditsSpent int64  `json:"credits_spent"`
}

// UserUsage is a row of the top users endpoint.
type UserUsage struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	CreditsToday int64  `json:"credits_today"`
	CreditsTotal int64  `json:"credits_total"`
}

// MonthlyPoint is a row of the monthly trends endpoint.
type MonthlyPoint struct {
	Month        string `json:"month"`
	RevenueCents int64  `json:"revenue_cents"`
	UserCount    int64  `json:"user_count"`
	CreditsUsed  int64  `json:"credits_used"`
}

// UsageRecord is a dated credit spend. The daily trends endpoint serves either
// raw records or rows already summed per day; pre-aggregated rows carry only
// "date" and "credits_spent".
type UsageRecord struct {
	UserID       string        `json:"user_id,omitempty"`
	FeatureName  string        `json:"feature_name,omitempty"`
	CreditsSpent int64         `json:"credits_spent"`
	OccurredOn   timeutil.Date `json:"occurred_on"`
}

func (r *UsageRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		UserID       string          `json:"user_id"`
		FeatureName  string          `json:"feature_name"`
		CreditsSpent int64           `json:"credits_spent"`
		OccurredOn   json.RawMessage `json:"occurred_on"`
		Date         json.RawMessage `json:"date"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw := aux.OccurredOn
	if len(raw) == 0 {
		raw = aux.Date
	}
	var on timeutil.Date
	if err := on.UnmarshalJSON(raw); err != nil {
		return err
	}
	*r = UsageRecord{
		UserID:       aux.UserID,
		FeatureName:  aux.FeatureName,
		CreditsSpent: aux.CreditsSpent,
		OccurredOn:   on,
	}
	return nil
}
