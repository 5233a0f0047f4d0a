package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDICTD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDICTD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt(&cfg.Engine.FeeBps, "PREDICTD_ENGINE_FEE_BPS")
	setInt(&cfg.Engine.SwapFeeBps, "PREDICTD_ENGINE_SWAP_FEE_BPS")
	setDuration(&cfg.Engine.MinDuration, "PREDICTD_ENGINE_MIN_DURATION")
	setDuration(&cfg.Engine.MaxDuration, "PREDICTD_ENGINE_MAX_DURATION")
	setDuration(&cfg.Engine.MinEarlyResolveDelay, "PREDICTD_ENGINE_MIN_EARLY_RESOLVE_DELAY")
	setInt(&cfg.Engine.MaxOptions, "PREDICTD_ENGINE_MAX_OPTIONS")
	setInt(&cfg.Engine.PriceHistoryLimit, "PREDICTD_ENGINE_PRICE_HISTORY_LIMIT")
	setInt(&cfg.Engine.TradeTailLimit, "PREDICTD_ENGINE_TRADE_TAIL_LIMIT")
	setStr(&cfg.Engine.Treasury, "PREDICTD_ENGINE_TREASURY")

	// ── Auth ──
	setStr(&cfg.Auth.Owner, "PREDICTD_AUTH_OWNER")
	setStringSlice(&cfg.Auth.Creators, "PREDICTD_AUTH_CREATORS")
	setStringSlice(&cfg.Auth.Validators, "PREDICTD_AUTH_VALIDATORS")
	setStringSlice(&cfg.Auth.Resolvers, "PREDICTD_AUTH_RESOLVERS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PREDICTD_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PREDICTD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDICTD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDICTD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDICTD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDICTD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDICTD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDICTD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDICTD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDICTD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDICTD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PREDICTD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PREDICTD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDICTD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDICTD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDICTD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDICTD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDICTD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PREDICTD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PREDICTD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDICTD_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDICTD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDICTD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDICTD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDICTD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDICTD_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PREDICTD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PREDICTD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PREDICTD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PREDICTD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PREDICTD_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PREDICTD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDICTD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDICTD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDICTD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "PREDICTD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
