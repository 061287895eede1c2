package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/config"
)

// CheckFunc probes one dependency and returns nil when it is reachable.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of the latest probe of a dependency.
type Result struct {
	Status    string    `json:"status"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report aggregates the results of every registered check.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Monitor periodically probes the service dependencies and keeps the latest results.
type Monitor struct {
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	checks    map[string]CheckFunc
	mu        sync.RWMutex
	results   map[string]Result
	startOnce sync.Once
}

// NewMonitor constructs a monitor using the health configuration.
func NewMonitor(cfg config.HealthConfig, logger *slog.Logger) *Monitor {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		checks:   make(map[string]CheckFunc),
		results:  make(map[string]Result),
	}
}

// Register adds a named check. It must be called before Start.
func (m *Monitor) Register(name string, check CheckFunc) {
	if m == nil || check == nil {
		return
	}
	m.checks[name] = check
}

// Names lists the registered checks in sorted order.
func (m *Monitor) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins the monitoring loop until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || len(m.checks) == 0 {
		return
	}
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes every dependency concurrently and returns the fresh report.
func (m *Monitor) Check(ctx context.Context) Report {
	if m == nil {
		return Report{Status: "ok", Checks: map[string]Result{}}
	}
	var wg sync.WaitGroup
	for name, check := range m.checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			timeoutCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			start := time.Now()
			err := check(timeoutCtx)
			res := Result{
				Status:    "ok",
				LatencyMS: time.Since(start).Milliseconds(),
				CheckedAt: start.UTC(),
			}
			if err != nil {
				res.Status = "error"
				res.Error = err.Error()
			}
			m.record(name, res)
		}(name, check)
	}
	wg.Wait()
	return m.Snapshot()
}

// Snapshot returns the latest results without probing.
func (m *Monitor) Snapshot() Report {
	report := Report{Status: "ok", Checks: map[string]Result{}}
	if m == nil {
		return report
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, res := range m.results {
		report.Checks[name] = res
		if res.Status != "ok" {
			report.Status = "degraded"
		}
	}
	return report
}

func (m *Monitor) record(name string, res Result) {
	m.mu.Lock()
	prev, seen := m.results[name]
	m.results[name] = res
	m.mu.Unlock()

	if seen && prev.Status == res.Status {
		return
	}
	if res.Status == "ok" {
		m.logger.Info("dependency healthy", slog.String("check", name))
		return
	}
	m.logger.Warn("dependency unhealthy", slog.String("check", name), slog.String("error", res.Error))
}
