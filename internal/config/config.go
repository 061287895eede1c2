package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
)

// Config captures the runtime configuration for the analytics service and CLI.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
	Reporting     ReportingConfig     `mapstructure:"reporting"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Health        HealthConfig        `mapstructure:"health"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

// UpstreamConfig points at the backend serving the raw aggregates.
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	Paths   UpstreamPaths `mapstructure:"paths"`
}

type UpstreamPaths struct {
	DashboardSummary string `mapstructure:"dashboard_summary"`
	FeatureUsage     string `mapstructure:"feature_usage"`
	TopUsers         string `mapstructure:"top_users"`
	FeatureCosts     string `mapstructure:"feature_costs"`
	MonthlyTrends    string `mapstructure:"monthly_trends"`
	DailyUsage       string `mapstructure:"daily_usage"`
}

type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	L1MaxBytes int64         `mapstructure:"l1_max_bytes"`
	L1TTL      time.Duration `mapstructure:"l1_ttl"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type PricingConfig struct {
	Tiers []pricing.Tier `mapstructure:"tiers"`
}

type ReportingConfig struct {
	FeatureLimit  int    `mapstructure:"feature_limit"`
	UserLimit     int    `mapstructure:"user_limit"`
	DefaultSort   string `mapstructure:"default_sort"`
	MaxWindowDays int    `mapstructure:"max_window_days"`
}

// AdminConfig guards the admin routes. An empty JWTSecret leaves them open.
type AdminConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Limits apply per admin subject (or client IP when auth is off) and need Redis.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	ParallelRequests  int `mapstructure:"parallel_requests"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	ServiceName   string `mapstructure:"service_name"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("ANALYTICS_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("analytics")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("ANALYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and fills derived defaults.
func (c *Config) Validate() error {
	var missing []string

	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		missing = append(missing, "ANALYTICS_UPSTREAM_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	parsed, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL")
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 10 * time.Second
	}
	if err := c.Upstream.Paths.validate(); err != nil {
		return err
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}

	if len(c.Pricing.Tiers) == 0 {
		c.Pricing.Tiers = pricing.DefaultTiers()
	}
	if _, err := pricing.NewEstimator(c.Pricing.Tiers); err != nil {
		return fmt.Errorf("pricing.tiers: %w", err)
	}

	if err := c.Reporting.validate(); err != nil {
		return err
	}

	c.Admin.JWTSecret = strings.TrimSpace(c.Admin.JWTSecret)
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	if c.Admin.RequestsPerMinute < 0 || c.Admin.ParallelRequests < 0 {
		return fmt.Errorf("admin request limits must be >= 0")
	}

	if c.Health.CheckInterval <= 0 {
		c.Health.CheckInterval = time.Minute
	}
	if c.Health.Timeout <= 0 || c.Health.Timeout > c.Health.CheckInterval {
		c.Health.Timeout = 2 * time.Second
	}

	if strings.TrimSpace(c.Observability.ServiceName) == "" {
		c.Observability.ServiceName = "credits-analytics"
	}
	return nil
}

func (p *UpstreamPaths) validate() error {
	fields := map[string]*string{
		"dashboard_summary": &p.DashboardSummary,
		"feature_usage":     &p.FeatureUsage,
		"top_users":         &p.TopUsers,
		"feature_costs":     &p.FeatureCosts,
		"monthly_trends":    &p.MonthlyTrends,
		"daily_usage":       &p.DailyUsage,
	}
	for name, value := range fields {
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			return fmt.Errorf("upstream.paths.%s must be provided", name)
		}
		if !strings.HasPrefix(trimmed, "/") {
			trimmed = "/" + trimmed
		}
		*value = trimmed
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if !c.Enabled {
		return nil
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0 when caching is enabled")
	}
	if c.L1MaxBytes < 0 {
		return fmt.Errorf("cache.l1_max_bytes must be >= 0")
	}
	if c.L1TTL <= 0 || c.L1TTL > c.TTL {
		c.L1TTL = c.TTL
	}
	return nil
}

func (r *ReportingConfig) validate() error {
	if r.FeatureLimit < 0 {
		return fmt.Errorf("reporting.feature_limit must be >= 0")
	}
	if r.UserLimit < 0 {
		return fmt.Errorf("reporting.user_limit must be >= 0")
	}
	if r.MaxWindowDays <= 0 {
		r.MaxWindowDays = 366
	}
	r.DefaultSort = strings.ToLower(strings.TrimSpace(r.DefaultSort))
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 1)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.token", "")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.paths.dashboard_summary", "/admin/analytics/dashboard-summary")
	v.SetDefault("upstream.paths.feature_usage", "/admin/analytics/feature-usage")
	v.SetDefault("upstream.paths.top_users", "/admin/analytics/top-users")
	v.SetDefault("upstream.paths.feature_costs", "/admin/analytics/cost-per-feature")
	v.SetDefault("upstream.paths.monthly_trends", "/admin/analytics/monthly-trends")
	v.SetDefault("upstream.paths.daily_usage", "/admin/analytics/daily-trends")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "60s")
	v.SetDefault("cache.key_prefix", "analytics:")
	v.SetDefault("cache.l1_max_bytes", 32<<20)
	v.SetDefault("cache.l1_ttl", "15s")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("reporting.feature_limit", 10)
	v.SetDefault("reporting.user_limit", 10)
	v.SetDefault("reporting.default_sort", "credits_today")
	v.SetDefault("reporting.max_window_days", 366)

	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.issuer", "credits-analytics")
	v.SetDefault("admin.token_ttl", "12h")
	v.SetDefault("admin.requests_per_minute", 120)
	v.SetDefault("admin.parallel_requests", 8)

	v.SetDefault("health.check_interval", "60s")
	v.SetDefault("health.timeout", "2s")

	v.SetDefault("observability.service_name", "credits-analytics")
	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return time.Duration(v) * time.Second, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
