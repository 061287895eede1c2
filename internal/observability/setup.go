// Package observability wires OpenTelemetry tracing and Prometheus metrics for
// the analytics service.
package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
)

const (
	namespace           = "credits_analytics"
	defaultServiceName  = "credits-analytics"
	defaultOTLPEndpoint = "localhost:4317"
)

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}

// Provider owns the tracer provider and the Prometheus collectors. A nil
// *Provider is valid and records nothing.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error
	metrics        *collectors
}

type collectors struct {
	requests *promreg.CounterVec
	latency  *promreg.HistogramVec
	upstream *promreg.HistogramVec
	cache    *promreg.CounterVec
	degraded *promreg.CounterVec
}

// Setup builds the tracer and metrics providers enabled in cfg. It returns a nil
// Provider when both are disabled.
func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName(cfg))))
	if err != nil {
		return nil, err
	}

	p := &Provider{}
	if cfg.EnableOTLP {
		if err := p.setupTracing(ctx, res, cfg.OTLPEndpoint); err != nil {
			return nil, err
		}
	}
	if cfg.EnableMetrics {
		if err := p.setupMetrics(res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}
	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, res *resource.Resource, rawEndpoint string) error {
	endpoint, insecure := otlpEndpoint(rawEndpoint)
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	p.tracerProvider = tp
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	return nil
}

// otlpEndpoint strips the scheme; only https:// keeps TLS on.
func otlpEndpoint(raw string) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return defaultOTLPEndpoint, true
	}
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return rest, false
	}
	return strings.TrimPrefix(endpoint, "http://"), true
}

func (p *Provider) setupMetrics(res *resource.Resource) error {
	registry := promreg.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return err
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)

	m := newCollectors()
	for _, c := range []promreg.Collector{m.requests, m.latency, m.upstream, m.cache, m.degraded} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	p.metrics = m
	p.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return nil
}

func newCollectors() *collectors {
	httpLabels := []string{"method", "route", "status"}
	return &collectors{
		requests: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin API requests by route and status.",
		}, httpLabels),
		latency: promreg.NewHistogramVec(promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   latencyBuckets,
		}, httpLabels),
		upstream: promreg.NewHistogramVec(promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of backend aggregate fetches.",
			Buckets:   latencyBuckets,
		}, []string{"endpoint", "outcome"}),
		cache: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"endpoint", "result"}),
		degraded: promreg.NewCounterVec(promreg.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_views_total",
			Help:      "Views rendered from safe defaults after a failure.",
		}, []string{"view"}),
	}
}

// PrometheusHandler serves the registry, or returns nil when metrics are off.
func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil {
		return nil
	}
	return p.promHandler
}

// Shutdown flushes every enabled provider and reports all failures.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, fn := range p.shutdownFuncs {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil || p.metrics == nil {
		return
	}
	code := strconv.Itoa(status)
	p.metrics.requests.WithLabelValues(method, route, code).Inc()
	p.metrics.latency.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

// RecordUpstream observes one backend fetch. outcome is "ok", "cached" or "error".
func (p *Provider) RecordUpstream(endpoint, outcome string, duration time.Duration) {
	if p == nil || p.metrics == nil {
		return
	}
	p.metrics.upstream.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

func (p *Provider) RecordCacheLookup(endpoint string, hit bool) {
	if p == nil || p.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.metrics.cache.WithLabelValues(endpoint, result).Inc()
}

func (p *Provider) RecordDegradedView(view string) {
	if p == nil || p.metrics == nil {
		return
	}
	p.metrics.degraded.WithLabelValues(view).Inc()
}

func serviceName(cfg config.ObservabilityConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return defaultServiceName
}
