package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	// EnsureSchema creates the plan tables on startup when missing.
	EnsureSchema bool `toml:"ensure_schema"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// prometheus
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// http
	AllowedOrigins          []string `toml:"allowed_origins"`
	RateLimitAllowedPerMin  int      `toml:"rate_limit_allowed_per_min"`
	ClientCacheSizeMB       int      `toml:"client_cache_size_mb"`
	ClientCacheTTL          Duration `toml:"client_cache_ttl"`
	BreakerFlagTTL          Duration `toml:"breaker_flag_ttl"`
	BreakerCooldown         Duration `toml:"breaker_cooldown"`
	BreakerDelay            Duration `toml:"breaker_delay"`
	FetchTimeout            Duration `toml:"fetch_timeout"`
	SaveTimeout             Duration `toml:"save_timeout"`
	ApproveTimeout          Duration `toml:"approve_timeout"`
	ResolveTimeout          Duration `toml:"resolve_timeout"`
	WeeklyRefreshCooldown   Duration `toml:"weekly_refresh_cooldown"`
	MonthlyRefreshCooldown  Duration `toml:"monthly_refresh_cooldown"`
	SessionIdleTTL          Duration `toml:"session_idle_ttl"`
	ClientLoadRetryAttempts int      `toml:"client_load_retry_attempts"`
}

// Duration reads a TOML string like "12s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration [%s]: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Or returns fallback when d is not set.
func (d Duration) Or(fallback time.Duration) time.Duration {
	if d.Duration <= 0 {
		return fallback
	}
	return d.Duration
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse decodes config from TOML text, used where no config file exists.
func Parse(env, data string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(data, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env [%s] missing", env)
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}
	return cfg, nil
}
