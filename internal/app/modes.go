package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/marginview/marginview/internal/exchange"
	"github.com/marginview/marginview/internal/feed"
	"github.com/marginview/marginview/internal/portfolio"
	"github.com/marginview/marginview/internal/server"
	"github.com/marginview/marginview/internal/server/handler"
)

// ServeMode starts the HTTP API and the margin-call monitor.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := a.buildPortfolioService(deps)
	a.startMonitor(ctx, g, deps, svc)
	a.startHTTPServer(ctx, g, deps, svc)

	return g.Wait()
}

// IngestMode runs only the quote feed ingestor.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIngestor(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs the history archiver on its configured interval.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return g.Wait()
}

// FullMode starts every subsystem: feed ingestion, the margin-call monitor,
// the archiver when enabled, and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startIngestor(ctx, g, deps)

	svc := a.buildPortfolioService(deps)
	a.startMonitor(ctx, g, deps, svc)

	if a.cfg.Archive.Enabled {
		if err := a.startArchiver(ctx, g, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}

	return g.Wait()
}

func (a *App) buildPortfolioService(deps *Dependencies) *portfolio.Service {
	return portfolio.NewService(
		deps.PositionStore,
		deps.TransferStore,
		deps.QuoteStore,
		deps.QuoteCache,
		deps.BalanceCache,
		deps.RiskCache,
		deps.Times,
		a.logger,
	)
}

func (a *App) startIngestor(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	client := feed.NewWSClient(a.cfg.Feed.WsURL, deps.Times)
	ingestor := feed.NewIngestor(client, deps.QuoteStore, deps.QuoteCache, deps.PositionStore, a.logger)
	g.Go(func() error {
		return ingestor.Run(ctx)
	})
}

func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *portfolio.Service) {
	if !a.cfg.Monitor.Enabled {
		return
	}
	monitor := portfolio.NewMonitor(
		deps.PositionStore,
		svc,
		deps.RiskCache,
		deps.Notifier,
		a.cfg.Monitor.Interval.Duration,
		decimal.NewFromFloat(a.cfg.Monitor.Proximity),
		a.logger,
	)
	g.Go(func() error {
		return monitor.Run(ctx)
	})
}

// startArchiver runs one archive pass immediately and then on each interval
// tick. The cutoff trails now by the configured retention.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archiver requires s3 blob storage")
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	runOnce := func() {
		before := time.Now().UTC().Add(-retention)
		if n, err := deps.Archiver.ArchiveQuotes(ctx, before); err != nil {
			a.logger.ErrorContext(ctx, "archive quotes failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived quotes", slog.Int64("count", n))
		}
		if n, err := deps.Archiver.ArchiveTransfers(ctx, before); err != nil {
			a.logger.ErrorContext(ctx, "archive transfers failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived transfers", slog.Int64("count", n))
		}
	}

	g.Go(func() error {
		runOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runOnce()
			}
		}
	})
	return nil
}

// startHTTPServer adds the API server goroutines to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *portfolio.Service) {
	registry := exchange.NewRegistry(exchange.Addresses{
		ZeroExV1: common.HexToAddress(a.cfg.Exchange.ZeroExV1),
		ZeroExV2: common.HexToAddress(a.cfg.Exchange.ZeroExV2),
		OasisV1:  common.HexToAddress(a.cfg.Exchange.OasisV1),
		OasisV2:  common.HexToAddress(a.cfg.Exchange.OasisV2),
	})

	pingers := map[string]handler.Pinger{
		"postgres": deps.PGClient,
		"redis":    deps.RedisClient,
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(pingers, a.logger),
		Portfolio: handler.NewPortfolioHandler(svc, a.logger),
		Positions: handler.NewPositionHandler(deps.PositionStore, deps.TransferStore, a.logger),
		Orders:    handler.NewOrderHandler(registry, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
