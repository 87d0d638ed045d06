// Package config loads the tool's settings from the environment.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// DefaultScope is the OAuth scope requested when STRAVA_SCOPE is unset.
const DefaultScope = "read,activity:read_all"

type Config struct {
	ClientID     string `env:"STRAVA_CLIENT_ID"`
	ClientSecret string `env:"STRAVA_CLIENT_SECRET"`
	RedirectURI  string `env:"STRAVA_REDIRECT_URI, default=http://localhost:8501"`
	Scope        string `env:"STRAVA_SCOPE"`
	AuthURL      string `env:"STRAVA_AUTH_URL, default=https://www.strava.com/oauth/authorize"`
	TokenURL     string `env:"STRAVA_TOKEN_URL, default=https://www.strava.com/oauth/token"`
	APIURL       string `env:"STRAVA_API_URL, default=https://www.strava.com"`

	DataDir  string `env:"DATA_DIR, default=data"`
	CacheDir string `env:"CACHE_DIR, default=cache"`
	// RedisURL, when set, moves the JSON caches and the token record to Redis.
	RedisURL string `env:"REDIS_URL"`
	// TableDSN selects a SQL database for the tabular cache instead of a CSV file.
	TableDSN string `env:"TABLE_DSN"`

	// AthleteWeightKg is used for calorie estimates when the athlete profile has no weight.
	AthleteWeightKg float64 `env:"ATHLETE_WEIGHT_KG"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT, default=30s"`
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT, default=2m"`

	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogFile   string `env:"LOG_FILE"`
	LogFormat string `env:"LOG_FORMAT, default=text"`
	Env       string `env:"ENV"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

// LoadFrom reads the configuration from the given values instead of the environment.
func LoadFrom(ctx context.Context, env map[string]string) (*Config, error) {
	return load(ctx, envconfig.MapLookuper(env))
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.AthleteWeightKg < 0 {
		return fmt.Errorf("ATHLETE_WEIGHT_KG cannot be negative, got %v", c.AthleteWeightKg)
	}
	if c.HTTPTimeout <= 0 || c.AuthTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT and AUTH_TIMEOUT must be positive")
	}
	return nil
}

// TokenPath is where the token record is kept when Redis is not used.
func (c *Config) TokenPath(file string) string {
	return filepath.Join(c.CacheDir, file)
}

// TablePath is the CSV file holding the tabular cache when no TABLE_DSN is set.
func (c *Config) TablePath() string {
	return filepath.Join(c.DataDir, "activities.csv")
}
