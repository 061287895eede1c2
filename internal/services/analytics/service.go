package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/format"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/models"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/observability"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/series"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
)

var (
	ErrInvalidLimit  = errors.New("limit must be >= 0")
	ErrInvalidWindow = series.ErrInvalidWindow
	ErrInvalidMonth  = timeutil.ErrInvalidMonth
)

const defaultMaxWindowDays = 366

// Source supplies the raw aggregates behind each view. upstream.Client is the
// production implementation.
type Source interface {
	DashboardSummary(ctx context.Context) (models.DashboardSummary, error)
	FeatureUsage(ctx context.Context) ([]models.FeatureUsage, error)
	TopUsers(ctx context.Context) ([]models.UserUsage, error)
	FeatureCosts(ctx context.Context) ([]models.FeatureUsage, error)
	MonthlyTrends(ctx context.Context) ([]models.MonthlyPoint, error)
	DailyUsage(ctx context.Context, anchor timeutil.MonthAnchor) ([]models.UsageRecord, error)
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	FeatureLimit  int
	UserLimit     int
	DefaultSort   SortKey
	MaxWindowDays int
	Now           func() time.Time
	Logger        *slog.Logger
	Metrics       *observability.Provider
}

// Service loads each dashboard view from the source, runs it through the
// composer and degrades it to safe defaults when the data cannot be used.
type Service struct {
	source        Source
	estimator     *pricing.Estimator
	featureLimit  int
	userLimit     int
	defaultSort   SortKey
	maxWindowDays int
	now           func() time.Time
	logger        *slog.Logger
	metrics       *observability.Provider
}

func NewService(source Source, estimator *pricing.Estimator, opts Options) *Service {
	if estimator == nil {
		estimator = pricing.MustDefault()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultSort == "" {
		opts.DefaultSort = SortCreditsToday
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = defaultMaxWindowDays
	}
	return &Service{
		source:        source,
		estimator:     estimator,
		featureLimit:  opts.FeatureLimit,
		userLimit:     opts.UserLimit,
		defaultSort:   opts.DefaultSort,
		maxWindowDays: opts.MaxWindowDays,
		now:           opts.Now,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// Estimator exposes the tier table used for every cost in the views.
func (s *Service) Estimator() *pricing.Estimator { return s.estimator }

// SummaryView compares the current month with the previous one.
type SummaryView struct {
	CurrentPeriod  string        `json:"current_period"`
	PreviousPeriod string        `json:"previous_period"`
	Summary        PeriodSummary `json:"summary"`
	Error          string        `json:"error,omitempty"`
}

func (s *Service) Summary(ctx context.Context) SummaryView {
	anchor := timeutil.AnchorOf(s.now())
	view := SummaryView{
		CurrentPeriod:  anchor.String(),
		PreviousPeriod: anchor.Previous().String(),
	}
	raw, err := s.source.DashboardSummary(ctx)
	if err != nil {
		view.Summary = SummarizePeriods(models.PeriodAggregate{}, models.PeriodAggregate{}, s.estimator)
		view.Error = s.degrade(ctx, "summary", err)
		return view
	}
	view.Summary = SummarizePeriods(raw.Current, raw.Previous, s.estimator)
	return view
}

// FeatureUsageView ranks features by their share of all credits.
type FeatureUsageView struct {
	Features     []FeatureShareEntry `json:"features"`
	TotalCredits int64               `json:"total_credits"`
	TotalDisplay string              `json:"total_display"`
	Error        string              `json:"error,omitempty"`
}

// FeatureUsage returns the top features. limit 0 selects the configured default.
func (s *Service) FeatureUsage(ctx context.Context, limit int) (FeatureUsageView, error) {
	if limit < 0 {
		return FeatureUsageView{}, ErrInvalidLimit
	}
	if limit == 0 {
		limit = s.featureLimit
	}
	view := FeatureUsageView{Features: []FeatureShareEntry{}, TotalDisplay: format.MagnitudeInt(0)}

	raw, err := s.source.FeatureUsage(ctx)
	if err != nil {
		view.Error = s.degrade(ctx, "feature_usage", err)
		return view, nil
	}
	shares, err := FeatureShares(raw, limit)
	if err != nil {
		view.Error = s.degrade(ctx, "feature_usage", err)
		return view, nil
	}
	var total int64
	for _, f := range raw {
		total += f.CreditsSpent
	}
	view.Features = shares
	view.TotalCredits = total
	view.TotalDisplay = format.MagnitudeInt(total)
	return view, nil
}

// TopUsersView lists the heaviest users with estimated costs.
type TopUsersView struct {
	SortKey SortKey         `json:"sort_key"`
	Users   []UserCostEntry `json:"users"`
	Error   string          `json:"error,omitempty"`
}

// TopUsers ranks users by sortKey ("" selects the configured default).
func (s *Service) TopUsers(ctx context.Context, sortKey string, limit int) (TopUsersView, error) {
	key := s.defaultSort
	if strings.TrimSpace(sortKey) != "" {
		parsed, err := ParseSortKey(sortKey)
		if err != nil {
			return TopUsersView{}, err
		}
		key = parsed
	}
	if limit < 0 {
		return TopUsersView{}, ErrInvalidLimit
	}
	if limit == 0 {
		limit = s.userLimit
	}
	view := TopUsersView{SortKey: key, Users: []UserCostEntry{}}

	raw, err := s.source.TopUsers(ctx)
	if err != nil {
		view.Error = s.degrade(ctx, "top_users", err)
		return view, nil
	}
	ranked, err := RankUsers(raw, key, limit, s.estimator)
	if err != nil {
		if errors.Is(err, ErrUnsupportedSortKey) {
			return TopUsersView{}, err
		}
		view.Error = s.degrade(ctx, "top_users", err)
		return view, nil
	}
	view.Users = ranked
	return view, nil
}

// FeatureCostsView prices every feature on its own usage.
type FeatureCostsView struct {
	Features       []FeatureCostEntry `json:"features"`
	TotalCostCents int64              `json:"total_cost_cents"`
	TotalCost      string             `json:"total_cost"`
	Error          string             `json:"error,omitempty"`
}

func (s *Service) FeatureCosts(ctx context.Context) FeatureCostsView {
	view := FeatureCostsView{Features: []FeatureCostEntry{}, TotalCost: format.Currency(0)}

	raw, err := s.source.FeatureCosts(ctx)
	if err != nil {
		view.Error = s.degrade(ctx, "feature_costs", err)
		return view
	}
	costs, err := FeatureCosts(raw, s.estimator)
	if err != nil {
		view.Error = s.degrade(ctx, "feature_costs", err)
		return view
	}
	var total int64
	for _, entry := range costs {
		total += entry.CostCents
	}
	view.Features = costs
	view.TotalCostCents = total
	view.TotalCost = format.Currency(total)
	return view
}

// MonthlyTrendView is the month-by-month history with growth.
type MonthlyTrendView struct {
	Months []MonthlyTrendEntry `json:"months"`
	Error  string              `json:"error,omitempty"`
}

func (s *Service) MonthlyTrends(ctx context.Context) MonthlyTrendView {
	view := MonthlyTrendView{Months: []MonthlyTrendEntry{}}

	raw, err := s.source.MonthlyTrends(ctx)
	if err != nil {
		view.Error = s.degrade(ctx, "monthly_trends", err)
		return view
	}
	entries, err := MonthlyTrend(raw)
	if err != nil {
		view.Error = s.degrade(ctx, "monthly_trends", err)
		return view
	}
	view.Months = entries
	return view
}

// DailyParams selects the daily series. Empty Month means the current UTC
// month; zero Days means every day of that month.
type DailyParams struct {
	Month string
	Days  int
}

// DailyTrendView is a gap-filled per-day series for one month.
type DailyTrendView struct {
	Month        string             `json:"month"`
	WindowDays   int                `json:"window_days"`
	Days         []series.DailySlot `json:"days"`
	TotalCredits int64              `json:"total_credits"`
	TotalDisplay string             `json:"total_display"`
	ActiveStart  *string            `json:"active_start,omitempty"`
	ActiveEnd    *string            `json:"active_end,omitempty"`
	Peak         *series.DailySlot  `json:"peak,omitempty"`
	Error        string             `json:"error,omitempty"`
}

func (s *Service) DailyTrend(ctx context.Context, params DailyParams) (DailyTrendView, error) {
	anchor := timeutil.AnchorOf(s.now())
	if strings.TrimSpace(params.Month) != "" {
		parsed, err := timeutil.ParseMonth(params.Month)
		if err != nil {
			return DailyTrendView{}, err
		}
		anchor = parsed
	}
	days := params.Days
	if days == 0 {
		days = anchor.Days()
	}
	if days < 0 || days > s.maxWindowDays {
		return DailyTrendView{}, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidWindow, s.maxWindowDays)
	}

	view := DailyTrendView{Month: anchor.String(), WindowDays: days}
	slots, err := s.dailySlots(ctx, anchor, days)
	if err != nil {
		view.Error = s.degrade(ctx, "daily_trend", err)
		slots = series.Zero(days, anchor)
	}
	view.Days = slots
	view.TotalCredits = series.Total(slots)
	view.TotalDisplay = format.MagnitudeInt(view.TotalCredits)
	view.ActiveStart, view.ActiveEnd = series.ActiveRange(slots)
	if peak, ok := series.Peak(slots); ok && peak.Credits > 0 {
		view.Peak = &peak
	}
	return view, nil
}

func (s *Service) dailySlots(ctx context.Context, anchor timeutil.MonthAnchor, days int) ([]series.DailySlot, error) {
	records, err := s.source.DailyUsage(ctx, anchor)
	if err != nil {
		return nil, err
	}
	entries := make([]series.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, series.Entry{Date: rec.OccurredOn, Credits: rec.CreditsSpent})
	}
	return series.Build(entries, days, anchor)
}

// EstimateView prices a single credit quantity.
type EstimateView struct {
	Credits   int64        `json:"credits"`
	CostCents int64        `json:"cost_cents"`
	Cost      string       `json:"cost"`
	UnitCost  string       `json:"unit_cost"`
	Tier      pricing.Tier `json:"tier"`
}

func (s *Service) Estimate(credits int64) (EstimateView, error) {
	tier, err := s.estimator.TierFor(credits)
	if err != nil {
		return EstimateView{}, err
	}
	cost, err := s.estimator.Estimate(credits)
	if err != nil {
		return EstimateView{}, err
	}
	return EstimateView{
		Credits:   credits,
		CostCents: cost,
		Cost:      format.Currency(cost),
		UnitCost:  format.UnitCost(pricing.UnitRate(tier)),
		Tier:      tier,
	}, nil
}

// Dashboard holds every view of one dashboard load.
type Dashboard struct {
	GeneratedAt  time.Time        `json:"generated_at"`
	Summary      SummaryView      `json:"summary"`
	FeatureUsage FeatureUsageView `json:"feature_usage"`
	TopUsers     TopUsersView     `json:"top_users"`
	FeatureCosts FeatureCostsView `json:"feature_costs"`
	Monthly      MonthlyTrendView `json:"monthly_trends"`
	Daily        DailyTrendView   `json:"daily_trend"`
}

// Dashboard loads all six views concurrently with default parameters. A
// failing view is degraded on its own; the others are unaffected.
func (s *Service) Dashboard(ctx context.Context) Dashboard {
	out := Dashboard{GeneratedAt: s.now().UTC()}

	var g errgroup.Group
	g.Go(func() error {
		out.Summary = s.Summary(ctx)
		return nil
	})
	g.Go(func() error {
		view, err := s.FeatureUsage(ctx, 0)
		if err != nil {
			view.Error = err.Error()
		}
		out.FeatureUsage = view
		return nil
	})
	g.Go(func() error {
		view, err := s.TopUsers(ctx, "", 0)
		if err != nil {
			view.Error = err.Error()
		}
		out.TopUsers = view
		return nil
	})
	g.Go(func() error {
		out.FeatureCosts = s.FeatureCosts(ctx)
		return nil
	})
	g.Go(func() error {
		out.Monthly = s.MonthlyTrends(ctx)
		return nil
	})
	g.Go(func() error {
		view, err := s.DailyTrend(ctx, DailyParams{})
		if err != nil {
			view.Error = err.Error()
		}
		out.Daily = view
		return nil
	})
	_ = g.Wait()
	return out
}

// degrade records a failed view and returns its one-line message.
func (s *Service) degrade(ctx context.Context, view string, err error) string {
	s.metrics.RecordDegradedView(view)
	s.logger.WarnContext(ctx, "analytics view degraded",
		slog.String("view", view),
		slog.String("error", err.Error()),
	)
	return firstLine(err.Error())
}

func firstLine(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
