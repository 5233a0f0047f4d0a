package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTreasury = "0x00000000000000000000000000000000000000f0"
	testOwner    = "0x00000000000000000000000000000000000000f1"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Engine.Treasury = testTreasury
	cfg.Auth.Owner = testOwner
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("defaults plus addresses pass", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing treasury",
			mutate:  func(c *Config) { c.Engine.Treasury = "" },
			wantSub: "treasury address must be set",
		},
		{
			name:    "malformed treasury",
			mutate:  func(c *Config) { c.Engine.Treasury = "not-an-address" },
			wantSub: "not a hex address",
		},
		{
			name:    "missing owner",
			mutate:  func(c *Config) { c.Auth.Owner = "" },
			wantSub: "owner address must be set",
		},
		{
			name:    "malformed creator",
			mutate:  func(c *Config) { c.Auth.Creators = []string{"0xzz"} },
			wantSub: "creators entry",
		},
		{
			name:    "fee out of range",
			mutate:  func(c *Config) { c.Engine.FeeBps = 10_000 },
			wantSub: "fee_bps",
		},
		{
			name:    "inverted durations",
			mutate:  func(c *Config) { c.Engine.MaxDuration = duration{time.Minute} },
			wantSub: "max_duration",
		},
		{
			name:    "option cap too small",
			mutate:  func(c *Config) { c.Engine.MaxOptions = 1 },
			wantSub: "max_options",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantSub: "log_level",
		},
		{
			name: "postgres pool bounds",
			mutate: func(c *Config) {
				c.Postgres.Enabled = true
				c.Postgres.PoolMinConns = 20
			},
			wantSub: "pool_min_conns",
		},
		{
			name: "server port",
			mutate: func(c *Config) {
				c.Server.Port = 0
			},
			wantSub: "server: port",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
log_level = "debug"

[engine]
fee_bps = 150
min_duration = "2h"
treasury = "` + testTreasury + `"

[auth]
owner = "` + testOwner + `"
creators = ["0x00000000000000000000000000000000000000a1"]

[ledger.bootstrap]
"0x00000000000000000000000000000000000000a1" = 5000

[server]
port = 9100
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 150, cfg.Engine.FeeBps)
	require.Equal(t, 2*time.Hour, cfg.Engine.MinDuration.Duration)
	// Unset fields keep their defaults.
	require.Equal(t, 100, cfg.Engine.SwapFeeBps)
	require.Equal(t, 90*24*time.Hour, cfg.Engine.MaxDuration.Duration)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, int64(5000), cfg.Ledger.Bootstrap["0x00000000000000000000000000000000000000a1"])
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[engine]
fee_bps = 150
treasury = "` + testTreasury + `"

[auth]
owner = "` + testOwner + `"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("PREDICTD_ENGINE_FEE_BPS", "300")
	t.Setenv("PREDICTD_ENGINE_MIN_DURATION", "30m")
	t.Setenv("PREDICTD_REDIS_ENABLED", "true")
	t.Setenv("PREDICTD_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("PREDICTD_AUTH_RESOLVERS", "0x00000000000000000000000000000000000000b1, 0x00000000000000000000000000000000000000b2")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 300, cfg.Engine.FeeBps)
	require.Equal(t, 30*time.Minute, cfg.Engine.MinDuration.Duration)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, []string{
		"0x00000000000000000000000000000000000000b1",
		"0x00000000000000000000000000000000000000b2",
	}, cfg.Auth.Resolvers)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Redis.Password = "secret"
	cfg.S3.AccessKey = "AKIA..."
	cfg.S3.SecretKey = "shh"

	red := RedactedConfig(&cfg)
	require.Equal(t, "***", red.Postgres.Password)
	require.Equal(t, "***", red.Postgres.DSN)
	require.Equal(t, "***", red.Redis.Password)
	require.Equal(t, "***", red.S3.AccessKey)
	require.Equal(t, "***", red.S3.SecretKey)

	// The original is untouched.
	require.Equal(t, "hunter2", cfg.Postgres.Password)
}
