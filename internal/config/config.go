// Package config defines the top-level configuration for the bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MISTER_* environment
// variables.
type Config struct {
	Strike     StrikeConfig     `toml:"strike"`
	Blockfrost BlockfrostConfig `toml:"blockfrost"`
	Signing    SigningConfig    `toml:"signing"`
	Strategy   StrategyConfig   `toml:"strategy"`
	Feed       FeedConfig       `toml:"feed"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// StrikeConfig holds the Strike Finance API parameters.
type StrikeConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// BlockfrostConfig holds the Cardano node API parameters used for the
// submission fallback.
type BlockfrostConfig struct {
	BaseURL   string `toml:"base_url"`
	ProjectID string `toml:"project_id"`
}

// SigningConfig holds the per-step timeouts of the co-signing flow.
type SigningConfig struct {
	WalletTimeout  duration `toml:"wallet_timeout"`
	CombineTimeout duration `toml:"combine_timeout"`
	SubmitTimeout  duration `toml:"submit_timeout"`
}

// StrategyConfig holds trading strategy parameters.
type StrategyConfig struct {
	// Active is the list of strategy names to run. Empty disables
	// automated trading; the API can still submit manual intents.
	Active []string `toml:"active"`

	Pair          string  `toml:"pair"`
	EquityADA     float64 `toml:"equity_ada"`
	RiskPerTrade  float64 `toml:"risk_per_trade"`
	MaxLeverage   float64 `toml:"max_leverage"`
	MinConfidence float64 `toml:"min_confidence"`
}

// FeedConfig holds market data source parameters.
type FeedConfig struct {
	BaseURL    string   `toml:"base_url"`
	KrakenPair string   `toml:"kraken_pair"`
	PollEvery  duration `toml:"poll_every"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
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

// ArchiveConfig controls periodic archiving of aged records to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds the HTTP API server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
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
func Defaults() Config {
	return Config{
		Strike: StrikeConfig{
			BaseURL: "https://app.strikefinance.org",
		},
		Blockfrost: BlockfrostConfig{
			BaseURL: "https://cardano-mainnet.blockfrost.io/api/v0",
		},
		Signing: SigningConfig{
			WalletTimeout:  duration{60 * time.Second},
			CombineTimeout: duration{30 * time.Second},
			SubmitTimeout:  duration{30 * time.Second},
		},
		Strategy: StrategyConfig{
			Active:        []string{},
			Pair:          "ADA/USD",
			EquityADA:     1000,
			RiskPerTrade:  0.02,
			MaxLeverage:   10,
			MinConfidence: 0.6,
		},
		Feed: FeedConfig{
			BaseURL:    "https://api.kraken.com",
			KrakenPair: "ADAUSD",
			PollEvery:  duration{time.Minute},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "misterbot-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8080,
			RateLimit:  30,
			RateWindow: duration{time.Second},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Strike.BaseURL == "" {
		errs = append(errs, "strike: base_url must not be empty")
	}

	// Blockfrost is the submission fallback; trading without it means a
	// wallet submission failure has nowhere to go.
	needsTrading := c.Mode == "trade" || c.Mode == "full" || c.Mode == "server"
	if needsTrading {
		if c.Blockfrost.BaseURL == "" {
			errs = append(errs, "blockfrost: base_url must not be empty")
		}
		if c.Blockfrost.ProjectID == "" {
			errs = append(errs, "blockfrost: project_id is required for mode "+c.Mode)
		}
	}

	if len(c.Strategy.Active) > 0 {
		if c.Strategy.Pair == "" {
			errs = append(errs, "strategy: pair must not be empty when strategies are active")
		}
		if c.Strategy.EquityADA <= 0 {
			errs = append(errs, "strategy: equity_ada must be > 0 when strategies are active")
		}
		if c.Strategy.RiskPerTrade <= 0 || c.Strategy.RiskPerTrade > 0.5 {
			errs = append(errs, "strategy: risk_per_trade must be in (0, 0.5]")
		}
		if c.Strategy.MaxLeverage < 1 {
			errs = append(errs, "strategy: max_leverage must be >= 1")
		}
	}

	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if c.Archive.Enabled {
		if !c.S3.Enabled {
			errs = append(errs, "archive: requires s3.enabled")
		}
		if !c.Supabase.Enabled {
			errs = append(errs, "archive: requires supabase.enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
