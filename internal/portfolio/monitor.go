package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/num"
	"github.com/marginview/marginview/internal/notify"
)

// Monitor watches active positions and alerts when a token price approaches
// its margin-call threshold. It never computes the threshold itself; it only
// compares against the risk engine's published value.
type Monitor struct {
	positions domain.PositionStore
	service   *Service
	risk      domain.RiskCache
	notifier  *notify.Notifier
	interval  time.Duration
	// proximity is the fraction above the margin-call price at which the
	// alert fires (0.1 = alert within 10% of the threshold).
	proximity decimal.Decimal
	alerted   map[string]bool
	logger    *slog.Logger
}

// NewMonitor creates a Monitor that checks every interval and alerts when a
// price is within proximity of its margin-call threshold.
func NewMonitor(
	positions domain.PositionStore,
	service *Service,
	risk domain.RiskCache,
	notifier *notify.Notifier,
	interval time.Duration,
	proximity decimal.Decimal,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		positions: positions,
		service:   service,
		risk:      risk,
		notifier:  notifier,
		interval:  interval,
		proximity: proximity,
		alerted:   make(map[string]bool),
		logger:    logger.With(slog.String("component", "margin_monitor")),
	}
}

// Run checks positions on each tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.checkOnce(ctx); err != nil {
				m.logger.WarnContext(ctx, "margin check failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (m *Monitor) checkOnce(ctx context.Context) error {
	active, err := m.positions.ListByState(ctx, domain.PositionStateActive, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("portfolio: list active positions: %w", err)
	}

	for _, pos := range active {
		price := m.service.price(ctx, pos)
		if price == nil {
			continue
		}

		snap, err := m.risk.GetRisk(ctx, pos.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				m.logger.WarnContext(ctx, "risk lookup failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if snap.MarginCallPrice == nil {
			continue
		}

		threshold := snap.MarginCallPrice.Mul(decimal.NewFromInt(1).Add(m.proximity))
		near := price.LessThanOrEqual(threshold)

		if near && !m.alerted[pos.ID] {
			m.alerted[pos.ID] = true
			title := fmt.Sprintf("Margin call warning: %s", pos.Name)
			msg := fmt.Sprintf("%s is at $%s, margin call at $%s",
				pos.Token.Symbol,
				num.USDString(*price),
				num.USDString(*snap.MarginCallPrice),
			)
			if nerr := m.notifier.Notify(ctx, "margin_warning", title, msg); nerr != nil {
				m.logger.WarnContext(ctx, "margin alert delivery failed",
					slog.String("position_id", pos.ID),
					slog.String("error", nerr.Error()),
				)
			}
		} else if !near {
			delete(m.alerted, pos.ID)
		}
	}
	return nil
}
