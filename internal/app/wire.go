package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/LavonTMCQ/misterbot/internal/blob/s3"
	"github.com/LavonTMCQ/misterbot/internal/cache/redis"
	"github.com/LavonTMCQ/misterbot/internal/config"
	"github.com/LavonTMCQ/misterbot/internal/domain"
	"github.com/LavonTMCQ/misterbot/internal/notify"
	"github.com/LavonTMCQ/misterbot/internal/platform/blockfrost"
	"github.com/LavonTMCQ/misterbot/internal/platform/strike"
	"github.com/LavonTMCQ/misterbot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Platform clients
	Strike     *strike.Client
	Blockfrost *blockfrost.Client

	// Stores
	IntentStore     domain.IntentStore
	SubmissionStore domain.SubmissionStore

	// Caches
	PriceCache      domain.PriceCache
	SubmissionCache domain.SubmissionCache
	LockManager     domain.LockManager
	RateLimiter     domain.RateLimiter

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources. Backends are gated on
// their Enabled flags rather than on mode: every mode degrades gracefully
// when persistence or caching is absent.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Strike:     strike.NewClient(cfg.Strike.BaseURL, cfg.Strike.APIKey),
		Blockfrost: blockfrost.NewClient(cfg.Blockfrost.BaseURL, cfg.Blockfrost.ProjectID),
	}

	// --- PostgreSQL ---
	var pgClient *postgres.Client
	if cfg.Supabase.Enabled {
		var err error
		pgClient, err = postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.IntentStore = postgres.NewIntentStore(pool)
		deps.SubmissionStore = postgres.NewSubmissionStore(pool)
		logger.InfoContext(ctx, "postgres wired")
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SubmissionCache = redis.NewSubmissionCache(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		logger.InfoContext(ctx, "redis wired")
	}

	// --- S3-compatible blob storage ---
	if cfg.S3.Enabled {
		blobClient, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = blobClient.Close() })

		deps.BlobWriter = s3blob.NewWriter(blobClient)

		// The archiver drains aged Postgres rows into object storage, so
		// it needs both backends.
		if pgClient != nil {
			pool := pgClient.Pool()
			deps.Archiver = s3blob.NewArchiver(
				deps.BlobWriter,
				postgres.NewSubmissionStore(pool),
				postgres.NewIntentStore(pool),
			)
		}
		logger.InfoContext(ctx, "s3 blob storage wired")
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		logger.InfoContext(ctx, "notifications wired", slog.Int("senders", len(senders)))
	}

	return deps, cleanup, nil
}
