// Package config loads the distributor configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/stellar"
)

const DefaultPath = "configuration.json"

const (
	NetworkModeHorizon = "horizon"
	NetworkModeCore    = "core"

	DefaultHorizonURL = "https://horizon.stellar.org"
)

type Config struct {
	Core             CoreConfig             `json:"core"`
	Pool             string                 `json:"pool"`
	Bank             string                 `json:"bank"`
	Messages         MessagesConfig         `json:"messages"`
	FeeSchedule      []FeeDescriptor        `json:"feeSchedule"`
	FeeCollector     string                 `json:"feeCollector"`
	SafetyThresholds SafetyThresholdsConfig `json:"safetyThresholds"`
	Network          NetworkConfig          `json:"network"`
	Stats            StatsConfig            `json:"stats"`
	History          HistoryConfig          `json:"history"`
	Notifications    NotificationsConfig    `json:"notifications"`
}

// CoreConfig locates the stellar-core PostgreSQL database.
type CoreConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

func (c CoreConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type MessagesConfig struct {
	// Distribution is the memo attached to every payment transaction.
	Distribution string `json:"distribution"`
}

// FeeDescriptor is one fee tier. Threshold is in lumens, Fee in percent.
type FeeDescriptor struct {
	Threshold decimal.Decimal `json:"threshold"`
	Fee       decimal.Decimal `json:"fee"`
}

// SafetyThresholdsConfig amounts are in lumens.
type SafetyThresholdsConfig struct {
	RewardsExceedPrize          decimal.Decimal `json:"rewardsExceedPrize"`
	RewardExceedsAmount         decimal.Decimal `json:"rewardExceedsAmount"`
	RewardExceedsPercentOfPrize decimal.Decimal `json:"rewardExceedsPercentOfPrize"`
}

type NetworkConfig struct {
	Mode       string `json:"mode"`
	HorizonURL string `json:"horizonURL"`
	CoreURL    string `json:"coreURL"`
	Passphrase string `json:"passphrase"`
	BaseFee    int64  `json:"baseFee"`
}

type StatsConfig struct {
	ListenAddr         string   `json:"listenAddr"`
	Password           string   `json:"password"`
	CacheTTL           Duration `json:"cacheTTL"`
	RateLimitPerMinute int      `json:"rateLimitPerMinute"`
	RateLimitBurst     int      `json:"rateLimitBurst"`
}

type HistoryConfig struct {
	DatabaseURL string `json:"databaseURL"`
}

type NotificationsConfig struct {
	SlackWebhookURL string `json:"slackWebhookURL"`
	SentryDSN       string `json:"sentryDSN"`
	Environment     string `json:"environment"`
}

// Duration decodes "30s"-style strings or a number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads .env when present, then the configuration file at path, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes a configuration document. lookupEnv supplies overrides; pass
// nil to ignore the environment.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if lookupEnv != nil {
		cfg.applyEnv(lookupEnv)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("POOL_BANK_SECRET", &c.Bank)
	str("POSTGRES_HOST", &c.Core.Host)
	str("POSTGRES_DB", &c.Core.Database)
	str("POSTGRES_USER", &c.Core.User)
	str("POSTGRES_PASSWORD", &c.Core.Password)
	str("POSTGRES_SSLMODE", &c.Core.SSLMode)
	str("HISTORY_DATABASE_URL", &c.History.DatabaseURL)
	str("SLACK_WEBHOOK_URL", &c.Notifications.SlackWebhookURL)
	str("SENTRY_DSN", &c.Notifications.SentryDSN)
	str("STATS_PASSWORD", &c.Stats.Password)
	if v, ok := lookup("POSTGRES_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Core.Port = port
		}
	}
}

func (c *Config) setDefaults() {
	if c.Core.Port == 0 {
		c.Core.Port = 5432
	}
	if c.Core.SSLMode == "" {
		c.Core.SSLMode = "disable"
	}
	if c.Network.Mode == "" {
		c.Network.Mode = NetworkModeHorizon
	}
	if c.Network.HorizonURL == "" {
		c.Network.HorizonURL = DefaultHorizonURL
	}
	if c.Network.CoreURL == "" {
		c.Network.CoreURL = stellar.DefaultCoreURL
	}
	if c.Stats.ListenAddr == "" {
		c.Stats.ListenAddr = ":8080"
	}
	if c.Stats.CacheTTL.Duration == 0 {
		c.Stats.CacheTTL.Duration = 30 * time.Second
	}
	if c.Stats.RateLimitPerMinute == 0 {
		c.Stats.RateLimitPerMinute = 120
	}
	if c.Stats.RateLimitBurst == 0 {
		c.Stats.RateLimitBurst = 20
	}
}

func malformed(field, reason string) error {
	return &distribution.ConfigurationError{Field: field, Reason: reason}
}

// Validate checks every field the distributor and the stats server need. The
// bank seed is checked only when present; see BankSeed.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"core.host", c.Core.Host},
		{"core.database", c.Core.Database},
		{"core.user", c.Core.User},
		{"pool", c.Pool},
		{"feeCollector", c.FeeCollector},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return malformed(r.field, "must not be null nor empty")
		}
	}
	if c.Core.Port <= 0 || c.Core.Port > 65535 {
		return malformed("core.port", "must be a valid port")
	}
	if _, err := c.PoolAccount(); err != nil {
		return err
	}
	if _, err := c.FeeCollectorAccount(); err != nil {
		return err
	}
	if c.Bank != "" {
		if _, err := keypair.ParseFull(c.Bank); err != nil {
			return malformed("bank", "must be a secret seed")
		}
	}
	m := c.Messages.Distribution
	if m == "" || len(m) > payment.MaxMemoBytes {
		return malformed("messages.distribution", fmt.Sprintf("must not be null, nor empty, nor greater than %d bytes in size", payment.MaxMemoBytes))
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	if _, err := c.Thresholds(); err != nil {
		return err
	}
	switch c.Network.Mode {
	case NetworkModeHorizon, NetworkModeCore:
	default:
		return malformed("network.mode", fmt.Sprintf("must be %q or %q", NetworkModeHorizon, NetworkModeCore))
	}
	urls := []struct {
		field string
		value string
	}{
		{"network.horizonURL", c.Network.HorizonURL},
		{"network.coreURL", c.Network.CoreURL},
	}
	for _, f := range urls {
		if u, err := url.Parse(f.value); err != nil || u.Scheme == "" || u.Host == "" {
			return malformed(f.field, "must be an absolute URL")
		}
	}
	if c.Network.BaseFee < 0 {
		return malformed("network.baseFee", "must not be negative")
	}
	if c.Stats.CacheTTL.Duration < 0 {
		return malformed("stats.cacheTTL", "must not be negative")
	}
	if c.Stats.RateLimitPerMinute < 0 || c.Stats.RateLimitBurst < 0 {
		return malformed("stats.rateLimitPerMinute", "must not be negative")
	}
	return nil
}

func (c *Config) PoolAccount() (account.Account, error) {
	a, err := account.New(c.Pool)
	if err != nil {
		return account.Account{}, malformed("pool", err.Error())
	}
	return a, nil
}

func (c *Config) FeeCollectorAccount() (account.Account, error) {
	a, err := account.New(c.FeeCollector)
	if err != nil {
		return account.Account{}, malformed("feeCollector", err.Error())
	}
	return a, nil
}

// BankSeed returns the secret seed payments are signed with.
func (c *Config) BankSeed() (string, error) {
	if c.Bank == "" {
		return "", malformed("bank", "must not be null nor empty")
	}
	if _, err := keypair.ParseFull(c.Bank); err != nil {
		return "", malformed("bank", "must be a secret seed")
	}
	return c.Bank, nil
}

func (c *Config) Schedule() (*distribution.FeeSchedule, error) {
	if len(c.FeeSchedule) == 0 {
		return nil, malformed("feeSchedule", "must not be null and it must contain at least one element")
	}
	entries := make([]distribution.FeeScheduleEntry, 0, len(c.FeeSchedule))
	for i, d := range c.FeeSchedule {
		threshold, err := currency.FromLumens(d.Threshold)
		if err != nil {
			return nil, malformed(fmt.Sprintf("feeSchedule[%d].threshold", i), err.Error())
		}
		fee, err := currency.NewPercent(d.Fee)
		if err != nil {
			return nil, malformed(fmt.Sprintf("feeSchedule[%d].fee", i), err.Error())
		}
		entries = append(entries, distribution.FeeScheduleEntry{Threshold: threshold, Fee: fee})
	}
	return distribution.NewFeeSchedule(entries...)
}

func (c *Config) Thresholds() (distribution.SafetyThresholds, error) {
	t := c.SafetyThresholds
	exceedPrize, err := currency.FromLumens(t.RewardsExceedPrize)
	if err != nil {
		return distribution.SafetyThresholds{}, malformed("safetyThresholds.rewardsExceedPrize", err.Error())
	}
	exceedAmount, err := currency.FromLumens(t.RewardExceedsAmount)
	if err != nil {
		return distribution.SafetyThresholds{}, malformed("safetyThresholds.rewardExceedsAmount", err.Error())
	}
	if exceedAmount.IsZero() {
		return distribution.SafetyThresholds{}, malformed("safetyThresholds.rewardExceedsAmount", "must be positive")
	}
	exceedPercent, err := currency.NewPercent(t.RewardExceedsPercentOfPrize)
	if err != nil {
		return distribution.SafetyThresholds{}, malformed("safetyThresholds.rewardExceedsPercentOfPrize", err.Error())
	}
	if exceedPercent.Decimal().IsZero() {
		return distribution.SafetyThresholds{}, malformed("safetyThresholds.rewardExceedsPercentOfPrize", "must be positive")
	}
	return distribution.SafetyThresholds{
		RewardsExceedPrize:          exceedPrize,
		RewardExceedsAmount:         exceedAmount,
		RewardExceedsPercentOfPrize: exceedPercent,
	}, nil
}

// Passphrase is the network passphrase transactions are signed for.
func (c *Config) Passphrase() string {
	return stellar.ResolvePassphrase(c.Network.Passphrase)
}
