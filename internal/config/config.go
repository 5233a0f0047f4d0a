// Package config defines the top-level configuration for the predictd daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PREDICTD_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Auth     AuthConfig     `toml:"auth"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the market engine's economic and operational parameters.
type EngineConfig struct {
	// FeeBps is the platform fee on buys and sells, in basis points.
	FeeBps int `toml:"fee_bps"`

	// SwapFeeBps is the AMM fee on option-to-option swaps, accrued to
	// liquidity providers.
	SwapFeeBps int `toml:"swap_fee_bps"`

	MinDuration          duration `toml:"min_duration"`
	MaxDuration          duration `toml:"max_duration"`
	MinEarlyResolveDelay duration `toml:"min_early_resolve_delay"`

	MaxOptions        int `toml:"max_options"`
	PriceHistoryLimit int `toml:"price_history_limit"`
	TradeTailLimit    int `toml:"trade_tail_limit"`

	// Treasury is the hex address of the engine's token account.
	Treasury string `toml:"treasury"`
}

// AuthConfig holds the static capability grants. Addresses are hex strings.
type AuthConfig struct {
	Owner      string   `toml:"owner"`
	Creators   []string `toml:"creators"`
	Validators []string `toml:"validators"`
	Resolvers  []string `toml:"resolvers"`
}

// LedgerConfig configures the built-in token ledger used when no external
// token system is wired in. Bootstrap maps hex addresses to whole-token
// amounts minted at startup.
type LedgerConfig struct {
	Bootstrap map[string]int64 `toml:"bootstrap"`
}

// PostgresConfig holds PostgreSQL connection parameters for the trade and
// market recorder.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the price cache and the
// market event bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the resolved
// market archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters. APIKey enables bearer-token
// authentication when non-empty. RateLimit applies per-client limiting over
// RateWindow when Redis is enabled; zero disables it.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds operator alert channels. A channel is enabled by
// setting its credentials; Events optionally restricts which lifecycle
// events are forwarded.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "48h", "30m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "48h" or "30m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			FeeBps:               200,
			SwapFeeBps:           100,
			MinDuration:          duration{time.Hour},
			MaxDuration:          duration{90 * 24 * time.Hour},
			MinEarlyResolveDelay: duration{6 * time.Hour},
			MaxOptions:           10,
			PriceHistoryLimit:    256,
			TradeTailLimit:       512,
		},
		Ledger: LedgerConfig{
			Bootstrap: map[string]int64{},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "predictd",
			User:          "predictd",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "predictd-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.FeeBps < 0 || c.Engine.FeeBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("engine: fee_bps must be in [0, 10000), got %d", c.Engine.FeeBps))
	}
	if c.Engine.SwapFeeBps < 0 || c.Engine.SwapFeeBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("engine: swap_fee_bps must be in [0, 10000), got %d", c.Engine.SwapFeeBps))
	}
	if c.Engine.MinDuration.Duration <= 0 {
		errs = append(errs, "engine: min_duration must be positive")
	}
	if c.Engine.MaxDuration.Duration < c.Engine.MinDuration.Duration {
		errs = append(errs, "engine: max_duration must not be below min_duration")
	}
	if c.Engine.MinEarlyResolveDelay.Duration < 0 {
		errs = append(errs, "engine: min_early_resolve_delay must not be negative")
	}
	if c.Engine.MaxOptions < 2 {
		errs = append(errs, fmt.Sprintf("engine: max_options must be >= 2, got %d", c.Engine.MaxOptions))
	}
	if c.Engine.Treasury == "" {
		errs = append(errs, "engine: treasury address must be set")
	} else if !common.IsHexAddress(c.Engine.Treasury) {
		errs = append(errs, fmt.Sprintf("engine: treasury %q is not a hex address", c.Engine.Treasury))
	}

	// Auth
	if c.Auth.Owner == "" {
		errs = append(errs, "auth: owner address must be set")
	} else if !common.IsHexAddress(c.Auth.Owner) {
		errs = append(errs, fmt.Sprintf("auth: owner %q is not a hex address", c.Auth.Owner))
	}
	for _, group := range []struct {
		name  string
		addrs []string
	}{
		{"creators", c.Auth.Creators},
		{"validators", c.Auth.Validators},
		{"resolvers", c.Auth.Resolvers},
	} {
		for _, a := range group.addrs {
			if !common.IsHexAddress(a) {
				errs = append(errs, fmt.Sprintf("auth: %s entry %q is not a hex address", group.name, a))
			}
		}
	}

	// Ledger
	for addr, amount := range c.Ledger.Bootstrap {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("ledger: bootstrap key %q is not a hex address", addr))
		}
		if amount < 0 {
			errs = append(errs, fmt.Sprintf("ledger: bootstrap amount for %s must not be negative", addr))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
