package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/models"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/upstream"
)

type stubSource struct {
	summary    models.DashboardSummary
	features   []models.FeatureUsage
	users      []models.UserUsage
	costs      []models.FeatureUsage
	monthly    []models.MonthlyPoint
	daily      []models.UsageRecord
	failing    map[string]bool
	lastAnchor timeutil.MonthAnchor
}

func (s *stubSource) fail(name string) error {
	if s.failing[name] {
		return fmt.Errorf("%w: %s: status 503", upstream.ErrUnavailable, name)
	}
	return nil
}

func (s *stubSource) DashboardSummary(context.Context) (models.DashboardSummary, error) {
	return s.summary, s.fail("summary")
}

func (s *stubSource) FeatureUsage(context.Context) ([]models.FeatureUsage, error) {
	return s.features, s.fail("features")
}

func (s *stubSource) TopUsers(context.Context) ([]models.UserUsage, error) {
	return s.users, s.fail("users")
}

func (s *stubSource) FeatureCosts(context.Context) ([]models.FeatureUsage, error) {
	return s.costs, s.fail("costs")
}

func (s *stubSource) MonthlyTrends(context.Context) ([]models.MonthlyPoint, error) {
	return s.monthly, s.fail("monthly")
}

func (s *stubSource) DailyUsage(_ context.Context, anchor timeutil.MonthAnchor) ([]models.UsageRecord, error) {
	s.lastAnchor = anchor
	return s.daily, s.fail("daily")
}

func mustDate(t *testing.T, raw string) timeutil.Date {
	t.Helper()
	d, err := timeutil.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func fixedNow() time.Time {
	return time.Date(2025, time.February, 14, 22, 30, 0, 0, time.UTC)
}

func newStubSource(t *testing.T) *stubSource {
	return &stubSource{
		summary: models.DashboardSummary{
			Current:  models.PeriodAggregate{RevenueCents: 150_00, UserCount: 120, CreditsUsed: 12_000},
			Previous: models.PeriodAggregate{RevenueCents: 100_00, UserCount: 100, CreditsUsed: 6_000},
		},
		features: []models.FeatureUsage{
			{FeatureName: "A", CreditsSpent: 450_000},
			{FeatureName: "B", CreditsSpent: 280_000},
			{FeatureName: "C", CreditsSpent: 180_000},
			{FeatureName: "D", CreditsSpent: 90_000},
		},
		users: []models.UserUsage{
			{UserID: "u1", CreditsToday: 100},
			{UserID: "u2", CreditsToday: 300},
		},
		costs: []models.FeatureUsage{{FeatureName: "chat", CreditsSpent: 6_000}},
		monthly: []models.MonthlyPoint{
			{Month: "2025-01", RevenueCents: 100, UserCount: 10, CreditsUsed: 1_000},
			{Month: "2025-02", RevenueCents: 150, UserCount: 5, CreditsUsed: 1_000},
		},
		daily: []models.UsageRecord{
			{OccurredOn: mustDate(t, "2025-02-02"), CreditsSpent: 10},
			{OccurredOn: mustDate(t, "2025-02-02T23:00:00Z"), CreditsSpent: 5},
			{OccurredOn: mustDate(t, "2025-02-10"), CreditsSpent: 40},
		},
		failing: map[string]bool{},
	}
}

func newTestService(src Source) *Service {
	return NewService(src, pricing.MustDefault(), Options{
		FeatureLimit: 3,
		UserLimit:    10,
		Now:          fixedNow,
	})
}

func TestDashboardAllViewsHealthy(t *testing.T) {
	svc := newTestService(newStubSource(t))
	dash := svc.Dashboard(context.Background())

	require.Equal(t, fixedNow(), dash.GeneratedAt)

	require.Empty(t, dash.Summary.Error)
	require.Equal(t, 50.0, dash.Summary.Summary.Revenue.Growth.Percent)
	require.Equal(t, 20.0, dash.Summary.Summary.Users.Growth.Percent)
	require.Equal(t, 100.0, dash.Summary.Summary.Credits.Growth.Percent)

	require.Len(t, dash.FeatureUsage.Features, 3)
	require.Equal(t, int64(1_000_000), dash.FeatureUsage.TotalCredits)
	require.Equal(t, "1.0M", dash.FeatureUsage.TotalDisplay)

	require.Equal(t, SortCreditsToday, dash.TopUsers.SortKey)
	require.Equal(t, "u2", dash.TopUsers.Users[0].UserID)

	require.Equal(t, int64(424), dash.FeatureCosts.TotalCostCents)
	require.Equal(t, "$4.24", dash.FeatureCosts.TotalCost)

	require.Len(t, dash.Monthly.Months, 2)
	require.Equal(t, -50.0, dash.Monthly.Months[1].UserGrowth.Percent)

	require.Equal(t, "2025-02", dash.Daily.Month)
	require.Len(t, dash.Daily.Days, 28)
	require.Equal(t, int64(55), dash.Daily.TotalCredits)
}

func TestDashboardDegradesOnlyFailingViews(t *testing.T) {
	src := newStubSource(t)
	src.failing["users"] = true
	src.failing["daily"] = true
	svc := newTestService(src)

	dash := svc.Dashboard(context.Background())

	require.Contains(t, dash.TopUsers.Error, "upstream unavailable")
	require.NotNil(t, dash.TopUsers.Users)
	require.Empty(t, dash.TopUsers.Users)

	require.NotEmpty(t, dash.Daily.Error)
	require.Len(t, dash.Daily.Days, 28)
	require.Zero(t, dash.Daily.TotalCredits)
	require.Nil(t, dash.Daily.Peak)

	require.Empty(t, dash.Summary.Error)
	require.Empty(t, dash.FeatureUsage.Error)
	require.Empty(t, dash.FeatureCosts.Error)
	require.Empty(t, dash.Monthly.Error)
	require.Len(t, dash.FeatureUsage.Features, 3)
}

func TestSummaryDegradesToZeroAggregates(t *testing.T) {
	src := newStubSource(t)
	src.failing["summary"] = true
	view := newTestService(src).Summary(context.Background())

	require.NotEmpty(t, view.Error)
	require.Equal(t, 0.0, view.Summary.Revenue.Growth.Percent)
	require.Equal(t, "$0.00", view.Summary.EstimatedCost)
	require.Equal(t, "2025-02", view.CurrentPeriod)
}

func TestSummaryLabelsPeriods(t *testing.T) {
	svc := NewService(newStubSource(t), pricing.MustDefault(), Options{
		Now: func() time.Time { return time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC) },
	})
	view := svc.Summary(context.Background())

	require.Equal(t, "2025-01", view.CurrentPeriod)
	require.Equal(t, "2024-12", view.PreviousPeriod)
}

func TestMalformedPayloadDegradesView(t *testing.T) {
	src := newStubSource(t)
	src.features = []models.FeatureUsage{{FeatureName: "x", CreditsSpent: -3}}
	src.monthly = []models.MonthlyPoint{{Month: "not-a-month"}}
	src.daily = []models.UsageRecord{{OccurredOn: mustDate(t, "2025-02-01"), CreditsSpent: -1}}
	svc := newTestService(src)
	ctx := context.Background()

	features, err := svc.FeatureUsage(ctx, 0)
	require.NoError(t, err)
	require.Contains(t, features.Error, "malformed")
	require.Empty(t, features.Features)

	monthly := svc.MonthlyTrends(ctx)
	require.NotEmpty(t, monthly.Error)

	daily, err := svc.DailyTrend(ctx, DailyParams{Month: "2025-02", Days: 7})
	require.NoError(t, err)
	require.Contains(t, daily.Error, "malformed")
	require.Len(t, daily.Days, 7)
}

func TestDailyTrendParams(t *testing.T) {
	src := newStubSource(t)
	svc := newTestService(src)
	ctx := context.Background()

	view, err := svc.DailyTrend(ctx, DailyParams{})
	require.NoError(t, err)
	require.Equal(t, timeutil.MonthAnchor{Year: 2025, Month: time.February}, src.lastAnchor)
	require.Equal(t, 28, view.WindowDays)
	require.Equal(t, int64(15), view.Days[1].Credits)
	require.Equal(t, "2025-02-02", *view.ActiveStart)
	require.Equal(t, "2025-02-10", *view.ActiveEnd)
	require.Equal(t, 10, view.Peak.DayIndex)

	view, err = svc.DailyTrend(ctx, DailyParams{Month: "2024-02"})
	require.NoError(t, err)
	require.Len(t, view.Days, 29)
	require.Equal(t, "2024-02", view.Month)

	_, err = svc.DailyTrend(ctx, DailyParams{Month: "2024-2x"})
	require.ErrorIs(t, err, ErrInvalidMonth)

	_, err = svc.DailyTrend(ctx, DailyParams{Days: -1})
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = svc.DailyTrend(ctx, DailyParams{Days: 400})
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestTopUsersParams(t *testing.T) {
	svc := newTestService(newStubSource(t))
	ctx := context.Background()

	_, err := svc.TopUsers(ctx, "credits_total", 5)
	require.ErrorIs(t, err, ErrUnsupportedSortKey)

	_, err = svc.TopUsers(ctx, "", -1)
	require.ErrorIs(t, err, ErrInvalidLimit)

	view, err := svc.TopUsers(ctx, "CREDITS_TODAY", 1)
	require.NoError(t, err)
	require.Len(t, view.Users, 1)
	require.Equal(t, "u2", view.Users[0].UserID)
}

func TestEstimate(t *testing.T) {
	svc := newTestService(newStubSource(t))

	view, err := svc.Estimate(10_001)
	require.NoError(t, err)
	require.Equal(t, int64(3_541), view.CostCents)
	require.Equal(t, "$35.41", view.Cost)
	require.True(t, view.Tier.IsUnbounded())

	_, err = svc.Estimate(-1)
	require.True(t, errors.Is(err, pricing.ErrInvalidInput))
}
