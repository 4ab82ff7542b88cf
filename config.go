package bdsmlr

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the environment-driven client configuration. Every field has a
// sensible default; only credentials are expected from the environment in
// practice.
type Config struct {
	BaseURL  string `env:"BDSMLR_BASE_URL, default=https://api.bdsmlr.com"`
	Email    string `env:"BDSMLR_EMAIL"`
	Password string `env:"BDSMLR_PASSWORD"`

	MaxRetries     int           `env:"BDSMLR_MAX_RETRIES, default=3"`
	InitialBackoff time.Duration `env:"BDSMLR_INITIAL_BACKOFF, default=300ms"`
	MaxBackoff     time.Duration `env:"BDSMLR_MAX_BACKOFF, default=10s"`

	CacheMaxEntries int           `env:"BDSMLR_CACHE_MAX_ENTRIES, default=200"`
	CacheTTL        time.Duration `env:"BDSMLR_CACHE_TTL, default=5m"`
	NotFoundTTL     time.Duration `env:"BDSMLR_NOT_FOUND_TTL, default=1m"`
	SWRFreshTTL     time.Duration `env:"BDSMLR_SWR_FRESH_TTL, default=1m"`
	SWRStaleTTL     time.Duration `env:"BDSMLR_SWR_STALE_TTL, default=10m"`
	SWRMaxAge       time.Duration `env:"BDSMLR_SWR_MAX_AGE, default=1h"`
	StaleWindow     time.Duration `env:"BDSMLR_STALE_WINDOW, default=1h"`

	QueueCapacity int `env:"BDSMLR_QUEUE_CAPACITY, default=50"`

	Debug bool `env:"BDSMLR_DEBUG, default=false"`
}

// ConfigFromEnv loads configuration from process environment variables.
func ConfigFromEnv(ctx context.Context) (*Config, error) {
	return configFrom(ctx, envconfig.OsLookuper())
}

func configFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return &cfg, nil
}

// Options translates the configuration into client options.
func (cfg *Config) Options() []Option {
	opts := []Option{
		WithBaseURL(cfg.BaseURL),
		WithCredentials(cfg.Email, cfg.Password),
		WithMaxRetries(cfg.MaxRetries),
		WithBackoff(cfg.InitialBackoff, cfg.MaxBackoff, 2.0, 0.25),
		WithCacheMaxEntries(cfg.CacheMaxEntries),
		WithCacheTTL(cfg.CacheTTL),
		WithNotFoundTTL(cfg.NotFoundTTL),
		WithSWRWindows(cfg.SWRFreshTTL, cfg.SWRStaleTTL, cfg.SWRMaxAge),
		WithStaleWindow(cfg.StaleWindow),
		WithRetryQueueCapacity(cfg.QueueCapacity),
	}
	if cfg.Debug {
		dc := DefaultDebugConfig()
		dc.Enabled = true
		opts = append(opts, WithDebug(dc))
	}
	return opts
}
