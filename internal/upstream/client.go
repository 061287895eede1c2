// Package upstream fetches raw analytics aggregates from the platform backend.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/cache"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/models"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/observability"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/requestctx"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/timeutil"
)

// ErrUnavailable wraps every transport, status and decoding failure.
var ErrUnavailable = errors.New("upstream unavailable")

const (
	EndpointDashboardSummary = "dashboard_summary"
	EndpointFeatureUsage     = "feature_usage"
	EndpointTopUsers         = "top_users"
	EndpointFeatureCosts     = "feature_costs"
	EndpointMonthlyTrends    = "monthly_trends"
	EndpointDailyUsage       = "daily_usage"
)

const maxBodyBytes = 8 << 20

// Client issues one GET per call against the backend. Failed calls are not retried.
type Client struct {
	baseURL string
	token   string
	paths   config.UpstreamPaths
	client  *http.Client
	cache   cache.Cache
	ttl     time.Duration
	metrics *observability.Provider
	logger  *slog.Logger
}

// Options carries the optional collaborators of a Client.
type Options struct {
	Cache      cache.Cache
	CacheTTL   time.Duration
	Metrics    *observability.Provider
	Logger     *slog.Logger
	HTTPClient *http.Client
}

func New(cfg config.UpstreamConfig, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   strings.TrimSpace(cfg.Token),
		paths:   cfg.Paths,
		client:  httpClient,
		cache:   opts.Cache,
		ttl:     opts.CacheTTL,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func (c *Client) DashboardSummary(ctx context.Context) (models.DashboardSummary, error) {
	var out models.DashboardSummary
	err := c.fetch(ctx, EndpointDashboardSummary, c.paths.DashboardSummary, nil, &out)
	return out, err
}

func (c *Client) FeatureUsage(ctx context.Context) ([]models.FeatureUsage, error) {
	var out []models.FeatureUsage
	err := c.fetch(ctx, EndpointFeatureUsage, c.paths.FeatureUsage, nil, &out)
	return out, err
}

func (c *Client) TopUsers(ctx context.Context) ([]models.UserUsage, error) {
	var out []models.UserUsage
	err := c.fetch(ctx, EndpointTopUsers, c.paths.TopUsers, nil, &out)
	return out, err
}

func (c *Client) FeatureCosts(ctx context.Context) ([]models.FeatureUsage, error) {
	var out []models.FeatureUsage
	err := c.fetch(ctx, EndpointFeatureCosts, c.paths.FeatureCosts, nil, &out)
	return out, err
}

func (c *Client) MonthlyTrends(ctx context.Context) ([]models.MonthlyPoint, error) {
	var out []models.MonthlyPoint
	err := c.fetch(ctx, EndpointMonthlyTrends, c.paths.MonthlyTrends, nil, &out)
	return out, err
}

// DailyUsage fetches the dated spend of the anchor month. The backend gets the
// month label and its [from, to) bounds in RFC3339.
func (c *Client) DailyUsage(ctx context.Context, anchor timeutil.MonthAnchor) ([]models.UsageRecord, error) {
	window := timeutil.MonthWindow(anchor)
	query := url.Values{}
	query.Set("month", window.Period())
	query.Set("from", window.StartString())
	query.Set("to", window.EndString())
	var out []models.UsageRecord
	err := c.fetch(ctx, EndpointDailyUsage, c.paths.DailyUsage, query, &out)
	return out, err
}

// Ping checks that the backend answers the summary endpoint. The cache is bypassed.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, EndpointDashboardSummary, c.paths.DashboardSummary, nil)
	return err
}

func (c *Client) fetch(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	key := cacheKey(endpoint, query)
	if body, ok := c.cached(ctx, endpoint, key); ok {
		if err := decodePayload(body, out); err == nil {
			c.metrics.RecordUpstream(endpoint, "cached", 0)
			return nil
		}
		// stale entry from an older payload shape
		_ = c.cache.Delete(ctx, key)
	}

	body, err := c.get(ctx, endpoint, path, query)
	if err != nil {
		return err
	}
	if err := decodePayload(body, out); err != nil {
		c.logger.Warn("upstream payload undecodable",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, endpoint, err)
	}
	c.store(ctx, endpoint, key, body)
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	ctx, span := otel.Tracer("upstream").Start(ctx, "upstream."+endpoint)
	defer span.End()

	start := time.Now()
	body, err := c.do(ctx, path, query)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordUpstream(endpoint, "error", elapsed)
		c.logger.Warn("upstream fetch failed",
			slog.String("endpoint", endpoint),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	span.SetAttributes(attribute.Int("upstream.body_bytes", len(body)))
	c.metrics.RecordUpstream(endpoint, "ok", elapsed)
	return body, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	requestID := requestctx.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) cached(ctx context.Context, endpoint, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	c.metrics.RecordCacheLookup(endpoint, ok)
	return body, ok
}

func (c *Client) store(ctx context.Context, endpoint, key string, body []byte) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}
	if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
		c.logger.Warn("cache store failed", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
	}
}

func cacheKey(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}
	return endpoint + "?" + query.Encode()
}

// decodePayload accepts either the bare payload or one wrapped as {"data": ...}.
func decodePayload(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty body")
	}
	if trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 {
			trimmed = envelope.Data
		}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return errors.New("null payload")
	}
	return json.Unmarshal(trimmed, out)
}
