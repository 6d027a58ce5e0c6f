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
// built-in defaults, applies MISTER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known MISTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Strike ──
	setStr(&cfg.Strike.BaseURL, "MISTER_STRIKE_BASE_URL")
	setStr(&cfg.Strike.APIKey, "MISTER_STRIKE_API_KEY")

	// ── Blockfrost ──
	setStr(&cfg.Blockfrost.BaseURL, "MISTER_BLOCKFROST_BASE_URL")
	setStr(&cfg.Blockfrost.ProjectID, "MISTER_BLOCKFROST_PROJECT_ID")

	// ── Signing ──
	setDuration(&cfg.Signing.WalletTimeout, "MISTER_SIGNING_WALLET_TIMEOUT")
	setDuration(&cfg.Signing.CombineTimeout, "MISTER_SIGNING_COMBINE_TIMEOUT")
	setDuration(&cfg.Signing.SubmitTimeout, "MISTER_SIGNING_SUBMIT_TIMEOUT")

	// ── Strategy ──
	setStringSlice(&cfg.Strategy.Active, "MISTER_STRATEGY_ACTIVE")
	setStr(&cfg.Strategy.Pair, "MISTER_STRATEGY_PAIR")
	setFloat64(&cfg.Strategy.EquityADA, "MISTER_STRATEGY_EQUITY_ADA")
	setFloat64(&cfg.Strategy.RiskPerTrade, "MISTER_STRATEGY_RISK_PER_TRADE")
	setFloat64(&cfg.Strategy.MaxLeverage, "MISTER_STRATEGY_MAX_LEVERAGE")
	setFloat64(&cfg.Strategy.MinConfidence, "MISTER_STRATEGY_MIN_CONFIDENCE")

	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "MISTER_FEED_BASE_URL")
	setStr(&cfg.Feed.KrakenPair, "MISTER_FEED_KRAKEN_PAIR")
	setDuration(&cfg.Feed.PollEvery, "MISTER_FEED_POLL_EVERY")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "MISTER_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "MISTER_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "MISTER_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "MISTER_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "MISTER_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "MISTER_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "MISTER_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "MISTER_SUPABASE_SSLMODE")
	setInt(&cfg.Supabase.PoolMaxConns, "MISTER_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "MISTER_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "MISTER_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MISTER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MISTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MISTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MISTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MISTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MISTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MISTER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MISTER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MISTER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MISTER_S3_REGION")
	setStr(&cfg.S3.Bucket, "MISTER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MISTER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MISTER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MISTER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MISTER_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "MISTER_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "MISTER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "MISTER_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MISTER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MISTER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MISTER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MISTER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MISTER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "MISTER_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MISTER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MISTER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MISTER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MISTER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MISTER_MODE")
	setStr(&cfg.LogLevel, "MISTER_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
