package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/health"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/observability"
)

func TestHealthzReportsChecks(t *testing.T) {
	monitor := health.NewMonitor(config.HealthConfig{CheckInterval: time.Minute, Timeout: time.Second}, nil)
	monitor.Register("upstream", func(context.Context) error { return nil })
	monitor.Register("redis", func(context.Context) error { return errors.New("connection refused") })

	srv, err := New(&app.Container{Config: &config.Config{}, HealthMon: monitor})
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report health.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.Equal(t, "degraded", report.Status)
	require.Equal(t, "ok", report.Checks["upstream"].Status)
	require.Equal(t, "connection refused", report.Checks["redis"].Error)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv, err := New(&app.Container{Config: &config.Config{}})
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["error"])
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	_, err = New(&app.Container{})
	require.Error(t, err)
}

func TestMetricsRecordRoutePattern(t *testing.T) {
	obs, err := observability.Setup(context.Background(), config.ObservabilityConfig{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	srv, err := New(&app.Container{Config: &config.Config{}, Observability: obs})
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `credits_analytics_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
