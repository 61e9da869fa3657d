package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/marginview/marginview/internal/blob/s3"
	"github.com/marginview/marginview/internal/cache/redis"
	"github.com/marginview/marginview/internal/config"
	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/notify"
	"github.com/marginview/marginview/internal/store/postgres"
	"github.com/marginview/marginview/internal/timecache"
)

// Dependencies bundles every domain-level dependency that the application
// modes need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	PositionStore domain.PositionStore
	TransferStore domain.TransferStore
	QuoteStore    domain.QuoteStore

	// Archive-only store views
	QuoteArchive    s3blob.QuoteArchiveStore
	TransferArchive s3blob.TransferArchiveStore

	// Caches
	QuoteCache   domain.QuoteCache
	BalanceCache domain.BalanceCache
	RiskCache    domain.RiskCache
	RateLimiter  domain.RateLimiter

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Shared time parse/format memoization
	Times *timecache.Cache

	// Raw clients kept for health checks
	PGClient    *postgres.Client
	RedisClient *redis.Client
}

// needsS3 reports whether the mode requires object storage.
func needsS3(cfg *config.Config) bool {
	if !cfg.Archive.Enabled {
		return cfg.Mode == "archive"
	}
	switch cfg.Mode {
	case "archive", "serve", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	times, err := timecache.New(timecache.DefaultCapacity)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: timecache: %w", err)
	}
	deps.Times = times

	// PostgreSQL
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.PGClient = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	transferStore := postgres.NewTransferStore(pool)
	deps.TransferStore = transferStore
	deps.TransferArchive = transferStore
	quoteStore := postgres.NewQuoteStore(pool)
	deps.QuoteStore = quoteStore
	deps.QuoteArchive = quoteStore

	// Redis
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
	deps.RedisClient = redisClient

	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.BalanceCache = redis.NewBalanceCache(redisClient)
	deps.RiskCache = redis.NewRiskCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// S3 blob storage for history archives
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.BlobReader,
			deps.QuoteArchive,
			deps.TransferArchive,
			logger,
		)
	}

	// Notifications
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
