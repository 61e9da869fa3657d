package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/marginview/marginview/internal/domain"
)

// Ingestor connects the quote feed to storage. Every quote event is appended
// to the quote history and mirrored into the cache so row rendering never
// waits on Postgres.
type Ingestor struct {
	client *WSClient
	store  domain.QuoteStore
	cache  domain.QuoteCache
	pos    domain.PositionStore
	logger *slog.Logger
}

// NewIngestor creates an Ingestor on top of an unconnected client.
func NewIngestor(client *WSClient, store domain.QuoteStore, cache domain.QuoteCache, pos domain.PositionStore, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		client: client,
		store:  store,
		cache:  cache,
		pos:    pos,
		logger: logger.With(slog.String("component", "quote_ingestor")),
	}
}

// Run connects, subscribes to quotes for every position that is not settled,
// and blocks until ctx is cancelled. The client reconnects on its own; Run
// only returns on shutdown or when the initial subscription fails.
func (i *Ingestor) Run(ctx context.Context) error {
	ids, err := i.subscribableIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		i.logger.Info("no open positions to subscribe, exiting")
		return nil
	}

	i.client.OnQuote(func(pq domain.PositionQuote) {
		i.handleQuote(ctx, pq)
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = i.client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}
	defer i.client.Close()

	if err := i.client.Subscribe(ctx, ids); err != nil {
		return err
	}
	i.logger.Info("quote feed subscribed", slog.Int("positions", len(ids)))

	<-ctx.Done()
	return ctx.Err()
}

func (i *Ingestor) subscribableIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, state := range []domain.PositionState{
		domain.PositionStateActive,
		domain.PositionStateClosing,
	} {
		positions, err := i.pos.ListByState(ctx, state, domain.ListOpts{})
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (i *Ingestor) handleQuote(ctx context.Context, pq domain.PositionQuote) {
	if err := i.store.Insert(ctx, pq.PositionID, pq.Quote); err != nil {
		i.logger.Warn("quote insert failed",
			slog.String("position_id", pq.PositionID),
			slog.String("error", err.Error()))
	}
	if err := i.cache.SetLatest(ctx, pq.PositionID, pq.Quote); err != nil {
		i.logger.Warn("quote cache update failed",
			slog.String("position_id", pq.PositionID),
			slog.String("error", err.Error()))
	}
}
