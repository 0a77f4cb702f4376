package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/handlers"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger            *slog.Logger
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo

	// Password guards every endpoint except /healthz, /version and /metrics.
	Password           string
	RateLimitPerMinute int
	RateLimitBurst     int

	HandlersConfig handlers.Config
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.RateLimitPerMinute < 0 || cfg.RateLimitBurst < 0 {
		return errors.New("rate limit must not be negative")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HandlersConfig.Logger == nil {
		cfg.HandlersConfig.Logger = cfg.Logger
	}
	return cfg.HandlersConfig.Validate()
}
