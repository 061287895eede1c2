package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
)

func TestSetupDisabledReturnsNilProvider(t *testing.T) {
	provider, err := Setup(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)
	require.Nil(t, provider)

	// nil providers swallow every record call
	provider.RecordUpstream("summary", "ok", time.Second)
	provider.RecordCacheLookup("summary", true)
	provider.RecordDegradedView("summary")
	require.Nil(t, provider.PrometheusHandler())
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestSetupMetricsExposesCollectors(t *testing.T) {
	provider, err := Setup(context.Background(), config.ObservabilityConfig{EnableMetrics: true, ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	provider.RecordHTTPRequest(context.Background(), "GET", "/admin/analytics/summary", 200, 20*time.Millisecond)
	provider.RecordUpstream("top_users", "error", 150*time.Millisecond)
	provider.RecordCacheLookup("top_users", false)
	provider.RecordDegradedView("top_users")

	rec := httptest.NewRecorder()
	provider.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, `credits_analytics_http_requests_total{method="GET",route="/admin/analytics/summary",status="200"} 1`)
	require.Contains(t, text, `credits_analytics_upstream_request_duration_seconds_count{endpoint="top_users",outcome="error"} 1`)
	require.Contains(t, text, `credits_analytics_cache_lookups_total{endpoint="top_users",result="miss"} 1`)
	require.Contains(t, text, `credits_analytics_degraded_views_total{view="top_users"} 1`)
}

func TestOTLPEndpointScheme(t *testing.T) {
	cases := []struct {
		raw      string
		endpoint string
		insecure bool
	}{
		{"", "localhost:4317", true},
		{"collector:4317", "collector:4317", true},
		{"http://collector:4317", "collector:4317", true},
		{"https://otel.example.com", "otel.example.com", false},
	}
	for _, tc := range cases {
		endpoint, insecure := otlpEndpoint(tc.raw)
		require.Equal(t, tc.endpoint, endpoint, tc.raw)
		require.Equal(t, tc.insecure, insecure, tc.raw)
	}
}
