package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/models"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
)

func TestFeatureSharesSumToHundred(t *testing.T) {
	features := []models.FeatureUsage{
		{FeatureName: "C", CreditsSpent: 180_000},
		{FeatureName: "A", CreditsSpent: 450_000},
		{FeatureName: "D", CreditsSpent: 90_000},
		{FeatureName: "B", CreditsSpent: 280_000},
	}

	shares, err := FeatureShares(features, 0)
	require.NoError(t, err)
	require.Len(t, shares, 4)

	wantNames := []string{"A", "B", "C", "D"}
	wantPct := []float64{45.0, 28.0, 18.0, 9.0}
	var sum float64
	for i, entry := range shares {
		require.Equal(t, i+1, entry.Rank)
		require.Equal(t, wantNames[i], entry.FeatureName)
		require.Equal(t, wantPct[i], entry.Percent)
		sum += entry.Percent
	}
	require.InDelta(t, 100.0, sum, 0.001)
	require.Equal(t, "45.0%", shares[0].PercentDisplay)
	require.Equal(t, "450.0K", shares[0].CreditsDisplay)
}

func TestFeatureSharesLimitKeepsPercentOfAllFeatures(t *testing.T) {
	features := []models.FeatureUsage{
		{FeatureName: "A", CreditsSpent: 450_000},
		{FeatureName: "B", CreditsSpent: 280_000},
		{FeatureName: "C", CreditsSpent: 180_000},
		{FeatureName: "D", CreditsSpent: 90_000},
	}
	shares, err := FeatureShares(features, 2)
	require.NoError(t, err)
	require.Len(t, shares, 2)
	require.Equal(t, 45.0, shares[0].Percent)
	require.Equal(t, 28.0, shares[1].Percent)
}

func TestFeatureSharesMergesDuplicatesAndHandlesZeroTotal(t *testing.T) {
	shares, err := FeatureShares([]models.FeatureUsage{
		{FeatureName: "chat", CreditsSpent: 0},
		{FeatureName: "image", CreditsSpent: 0},
		{FeatureName: "chat", CreditsSpent: 0},
	}, 0)
	require.NoError(t, err)
	require.Len(t, shares, 2)
	for _, entry := range shares {
		require.Zero(t, entry.Percent)
	}
	require.Equal(t, "chat", shares[0].FeatureName)

	shares, err = FeatureShares([]models.FeatureUsage{
		{FeatureName: "chat", CreditsSpent: 10},
		{FeatureName: " chat ", CreditsSpent: 30},
	}, 0)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.Equal(t, int64(40), shares[0].Credits)
	require.Equal(t, 100.0, shares[0].Percent)
}

func TestFeatureSharesRejectsMalformedRows(t *testing.T) {
	_, err := FeatureShares([]models.FeatureUsage{{FeatureName: "x", CreditsSpent: -1}}, 0)
	require.ErrorIs(t, err, ErrMalformedData)
	_, err = FeatureShares([]models.FeatureUsage{{CreditsSpent: 1}}, 0)
	require.ErrorIs(t, err, ErrMalformedData)
}

func TestFeatureCostsAreNotPooled(t *testing.T) {
	est := pricing.MustDefault()
	costs, err := FeatureCosts([]models.FeatureUsage{
		{FeatureName: "small", CreditsSpent: 5_000},
		{FeatureName: "large", CreditsSpent: 450_000},
		{FeatureName: "mid", CreditsSpent: 8_000},
	}, est)
	require.NoError(t, err)
	require.Len(t, costs, 3)

	require.Equal(t, "large", costs[0].FeatureName)
	require.Equal(t, int64(159_345), costs[0].CostCents)
	require.Equal(t, "$1,593.45", costs[0].Cost)

	require.Equal(t, "mid", costs[1].FeatureName)
	require.Equal(t, int64(1_134), costs[1].CostCents)

	// Pooled, 5,000 credits would be billed at the top tier rate.
	require.Equal(t, "small", costs[2].FeatureName)
	require.Equal(t, int64(353), costs[2].CostCents)
	require.Equal(t, "$0.0007", costs[2].UnitCost)
	require.Equal(t, 3, costs[2].Rank)
}

func TestRankUsersStableTopN(t *testing.T) {
	est := pricing.MustDefault()
	users := []models.UserUsage{
		{UserID: "u1", CreditsToday: 10, CreditsTotal: 100},
		{UserID: "u2", CreditsToday: 50},
		{UserID: "u3", CreditsToday: 50},
		{UserID: "u4", CreditsToday: 0},
	}
	ranked, err := RankUsers(users, SortCreditsToday, 3, est)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	require.Equal(t, []string{"u2", "u3", "u1"}, []string{ranked[0].UserID, ranked[1].UserID, ranked[2].UserID})
	require.Equal(t, int64(4), ranked[0].EstimatedCostCents)
	require.Equal(t, "$0.04", ranked[0].EstimatedCost)
	require.Equal(t, int64(1), ranked[2].EstimatedCostCents)
	require.Equal(t, int64(100), ranked[2].CreditsTotal)

	// input is left untouched
	require.Equal(t, "u1", users[0].UserID)
}

func TestRankUsersRejectsUnknownKey(t *testing.T) {
	_, err := RankUsers(nil, SortKey("credits_total"), 5, pricing.MustDefault())
	require.ErrorIs(t, err, ErrUnsupportedSortKey)

	_, err = ParseSortKey("revenue")
	require.ErrorIs(t, err, ErrUnsupportedSortKey)

	key, err := ParseSortKey("")
	require.NoError(t, err)
	require.Equal(t, SortCreditsToday, key)
}

func TestRankUsersPropagatesInvalidCredits(t *testing.T) {
	_, err := RankUsers([]models.UserUsage{{UserID: "u1", CreditsToday: -5}}, SortCreditsToday, 0, pricing.MustDefault())
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestSummarizePeriods(t *testing.T) {
	summary := SummarizePeriods(
		models.PeriodAggregate{RevenueCents: 150, UserCount: 50, CreditsUsed: 0},
		models.PeriodAggregate{RevenueCents: 100, UserCount: 100, CreditsUsed: 0},
		pricing.MustDefault(),
	)
	require.NotNil(t, summary.Revenue.Growth)
	require.Equal(t, 50.0, summary.Revenue.Growth.Percent)
	require.Equal(t, "+50.0%", summary.Revenue.Growth.Display)
	require.Equal(t, -50.0, summary.Users.Growth.Percent)
	require.Equal(t, 0.0, summary.Credits.Growth.Percent)
	require.Equal(t, "$1.50", summary.Revenue.CurrentDisplay)
	require.Equal(t, "$0.00", summary.EstimatedCost)
}

func TestSummarizePeriodsIsolatesMetricFailures(t *testing.T) {
	summary := SummarizePeriods(
		models.PeriodAggregate{RevenueCents: 200, UserCount: -1, CreditsUsed: 12_000},
		models.PeriodAggregate{RevenueCents: 0, UserCount: 10, CreditsUsed: 6_000},
		pricing.MustDefault(),
	)
	require.NotEmpty(t, summary.Users.Error)
	require.Nil(t, summary.Users.Growth)

	require.Empty(t, summary.Revenue.Error)
	require.True(t, summary.Revenue.Growth.NewActivity)
	require.Equal(t, 100.0, summary.Revenue.Growth.Percent)

	require.Equal(t, 100.0, summary.Credits.Growth.Percent)
	require.Equal(t, int64(4_249), summary.EstimatedCostCents)
}

func TestMonthlyTrend(t *testing.T) {
	entries, err := MonthlyTrend([]models.MonthlyPoint{
		{Month: "2025-02", RevenueCents: 200, UserCount: 10, CreditsUsed: 2_000},
		{Month: "2025-01", RevenueCents: 100, UserCount: 0, CreditsUsed: 1_000},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "2025-01", entries[0].Month)
	require.Nil(t, entries[0].RevenueGrowth)

	feb := entries[1]
	require.Equal(t, "2025-02", feb.Month)
	require.Equal(t, 100.0, feb.RevenueGrowth.Percent)
	require.False(t, feb.RevenueGrowth.NewActivity)
	require.True(t, feb.UserGrowth.NewActivity)
	require.Equal(t, "+100.0%", feb.CreditsGrowth.Display)
	require.Equal(t, "2.0K", feb.CreditsDisplay)
}

func TestMonthlyTrendRejectsBadMonths(t *testing.T) {
	_, err := MonthlyTrend([]models.MonthlyPoint{{Month: "2025-13"}})
	require.ErrorIs(t, err, ErrMalformedData)

	_, err = MonthlyTrend([]models.MonthlyPoint{{Month: "2025-01"}, {Month: "2025-01"}})
	require.ErrorIs(t, err, ErrMalformedData)
}
