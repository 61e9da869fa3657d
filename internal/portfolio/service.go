// Package portfolio assembles the dashboard's portfolio rows and chart views
// from position records, quotes, transfer history, and live balances. It is a
// read-only aggregation layer: every figure is recomputed from the current
// snapshots on each call, and any missing input degrades to a placeholder
// rather than an error.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marginview/marginview/internal/chart"
	"github.com/marginview/marginview/internal/costbasis"
	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/expiry"
	"github.com/marginview/marginview/internal/num"
	"github.com/marginview/marginview/internal/timecache"
	"github.com/marginview/marginview/internal/valuation"
)

// chartDateLayout renders the chart's start and end date labels.
const chartDateLayout = "Jan 2, 2006"

// defaultChartWindow bounds the historical quote window behind the chart.
const defaultChartWindow = 7 * 24 * time.Hour

// maxChartPoints bounds the number of samples returned per chart request.
const maxChartPoints = 500

// Service aggregates the stores and caches behind the dashboard views.
type Service struct {
	positions  domain.PositionStore
	transfers  domain.TransferStore
	quotes     domain.QuoteStore
	quoteCache domain.QuoteCache
	balances   domain.BalanceCache
	risk       domain.RiskCache
	times      *timecache.Cache
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a portfolio Service with all required dependencies.
func NewService(
	positions domain.PositionStore,
	transfers domain.TransferStore,
	quotes domain.QuoteStore,
	quoteCache domain.QuoteCache,
	balances domain.BalanceCache,
	risk domain.RiskCache,
	times *timecache.Cache,
	logger *slog.Logger,
) *Service {
	return &Service{
		positions:  positions,
		transfers:  transfers,
		quotes:     quotes,
		quoteCache: quoteCache,
		balances:   balances,
		risk:       risk,
		times:      times,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "portfolio")),
	}
}

// Rows builds the portfolio table. ACTIVE (and closing) positions always get
// a row; CLOSED positions appear only while a non-dust balance remains to
// withdraw; INACTIVE positions are hidden.
func (s *Service) Rows(ctx context.Context) ([]Row, error) {
	positions, err := s.positions.List(ctx, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("portfolio: list positions: %w", err)
	}

	rows := make([]Row, 0, len(positions))
	for _, pos := range positions {
		row, show := s.buildRow(ctx, pos)
		if show {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Service) buildRow(ctx context.Context, pos domain.Position) (Row, bool) {
	switch pos.State {
	case domain.PositionStateActive, domain.PositionStateClosing, domain.PositionStateClosed:
	default:
		return Row{}, false
	}

	balance := s.balance(ctx, pos)
	if pos.Closed() && (balance.IsZero() || costbasis.IsDust(balance)) {
		// Nothing left to withdraw; hide instead of showing a near-zero row.
		return Row{}, false
	}

	naturalBalance := num.FromBase(balance, pos.Token.Decimals)

	price := s.price(ctx, pos)
	change := s.priceChange(ctx, pos, price)

	row := Row{
		ID:              pos.ID,
		Name:            pos.Name,
		Type:            pos.Type,
		Color:           pos.AccentColor(),
		Leverage:        s.leverage(ctx, pos),
		PriceUSD:        Placeholder,
		Change:          Placeholder,
		ChangeDirection: valuation.DirectionNone,
		Owned:           Placeholder,
		ValueUSD:        Placeholder,
		UnrealizedGains: Placeholder,
		IsClosing:       pos.IsClosing || pos.State == domain.PositionStateClosing,
		IsClosed:        pos.Closed(),
	}

	if price != nil {
		row.PriceUSD = num.USDString(*price)
	}
	if !naturalBalance.IsZero() {
		row.Owned = num.TokenString(naturalBalance)
	}
	if price != nil && !naturalBalance.IsZero() {
		value := naturalBalance.Mul(*price)
		if !value.IsZero() {
			row.ValueUSD = num.USDString(value)
		}
	}

	// The 24h change column is suppressed for closed rows and replaced by a
	// "Closing" marker while a close is in flight; the IsClosing flag carries
	// that to the frontend.
	if change != nil && !row.IsClosed && !row.IsClosing {
		row.Change = change.StringFixed(2)
		row.ChangeDirection = valuation.ChangeDirection(change)
	}

	if price != nil && !row.IsClosed {
		if gains, ok := s.unrealizedGains(ctx, pos, *price, naturalBalance, balance); ok && !gains.IsZero() {
			prefix := ""
			if gains.IsPositive() {
				prefix = "+"
			}
			row.UnrealizedGains = prefix + gains.StringFixed(2) + "%"
		}
	}

	return row, true
}

// Chart builds the chart view for one position.
func (s *Service) Chart(ctx context.Context, positionID string) (ChartView, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return ChartView{}, fmt.Errorf("portfolio: get position %q: %w", positionID, err)
	}

	now := s.now()
	from := now.Add(-defaultChartWindow)

	history, err := s.quotes.History(ctx, pos.ID, from, now, maxChartPoints)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ChartView{}, fmt.Errorf("portfolio: quote history for %q: %w", positionID, err)
	}

	points := make([]domain.ChartPoint, 0, len(history))
	for _, q := range history {
		price, perr := valuation.TokenPrice(pos, q)
		if perr != nil {
			continue // incomplete quote rows contribute no point
		}
		points = append(points, domain.ChartPoint{
			Time:             q.Timestamp,
			MarginTokenPrice: price,
			BasePrice:        *q.BaseUSD,
		})
	}
	series := chart.Build(points)

	view := ChartView{
		PositionID:         pos.ID,
		Color:              pos.AccentColor(),
		Points:             series.Points,
		HideMarginCallLine: pos.Closed(),
		PriceUSD:           Placeholder,
		BasePriceUSD:       Placeholder,
		MarginCallPriceUSD: "",
		Leverage:           s.leverage(ctx, pos),
	}

	quote := s.latestQuote(ctx, pos)
	price := s.price(ctx, pos)
	if price != nil {
		view.PriceUSD = num.USDString(*price)
	}
	if quote != nil && quote.BaseUSD != nil {
		view.BasePriceUSD = num.USDString(*quote.BaseUSD)
	}

	view.ChangeDirection = valuation.ChangeDirection(s.priceChange(ctx, pos, price))
	view.BaseDirection = valuation.ChangeDirection(s.basePriceChange(ctx, pos, quote))

	var marginCall *decimal.Decimal
	if snap, rerr := s.risk.GetRisk(ctx, pos.ID); rerr == nil {
		marginCall = snap.MarginCallPrice
	}
	if marginCall != nil {
		// Never guessed: displayed only when the risk engine has produced it.
		view.MarginCallPriceUSD = num.USDString(*marginCall)
		if axis, ok := series.Domain(*marginCall, false); ok {
			view.Axis = &axis
		}
	}

	if label, ok := expiry.Label(now, pos); ok {
		view.ExpiryLabel = label
	}

	if len(series.Points) > 0 {
		view.StartDate = s.dateString(series.Points[0].Time)
		view.EndDate = s.dateString(series.Points[len(series.Points)-1].Time)
	}

	if quote != nil {
		if exp, ok := valuation.Explain(pos, *quote); ok {
			view.Explanation = &exp
		}
	}

	return view, nil
}

// balance returns the live base-unit balance, or zero while it is missing.
// A missing balance is a MissingData condition recovered locally.
func (s *Service) balance(ctx context.Context, pos domain.Position) decimal.Decimal {
	balance, err := s.balances.GetBalance(ctx, pos.Token.ContractAddress)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "balance lookup failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
		return decimal.Zero
	}
	return balance
}

// latestQuote prefers the cache and falls back to the store.
func (s *Service) latestQuote(ctx context.Context, pos domain.Position) *domain.Quote {
	if q, err := s.quoteCache.GetLatest(ctx, pos.ID); err == nil {
		return &q
	}
	q, err := s.quotes.Latest(ctx, pos.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "latest quote lookup failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return &q
}

// price computes the current token price, or nil while inputs are missing.
func (s *Service) price(ctx context.Context, pos domain.Position) *decimal.Decimal {
	quote := s.latestQuote(ctx, pos)
	if quote == nil {
		return nil
	}
	price, err := valuation.TokenPrice(pos, *quote)
	if err != nil {
		if !errors.Is(err, domain.ErrMissingData) {
			s.logger.WarnContext(ctx, "price computation failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return &price
}

// priceChange computes the 24-hour token price change, or nil when either
// endpoint is unavailable.
func (s *Service) priceChange(ctx context.Context, pos domain.Position, priceNow *decimal.Decimal) *decimal.Decimal {
	if priceNow == nil {
		return nil
	}
	dayAgo, err := s.quotes.At(ctx, pos.ID, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil
	}
	priceThen, err := valuation.TokenPrice(pos, dayAgo)
	if err != nil {
		return nil
	}
	return valuation.PriceChange24h(priceNow, &priceThen)
}

// basePriceChange computes the 24-hour ETH price change for the base line
// indicator.
func (s *Service) basePriceChange(ctx context.Context, pos domain.Position, quote *domain.Quote) *decimal.Decimal {
	if quote == nil || quote.BaseUSD == nil {
		return nil
	}
	dayAgo, err := s.quotes.At(ctx, pos.ID, s.now().Add(-24*time.Hour))
	if err != nil || dayAgo.BaseUSD == nil {
		return nil
	}
	return valuation.PriceChange24h(quote.BaseUSD, dayAgo.BaseUSD)
}

// unrealizedGains recomputes the cost basis from the transfer history and
// applies the balance guard before computing the gains percentage.
func (s *Service) unrealizedGains(ctx context.Context, pos domain.Position, price, naturalBalance, balance decimal.Decimal) (decimal.Decimal, bool) {
	transfers, err := s.transfers.ListByPosition(ctx, pos.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "transfer history lookup failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return decimal.Decimal{}, false
	}
	cb := costbasis.Compute(transfers)
	if err := cb.CheckBalance(balance); err != nil {
		s.logger.WarnContext(ctx, "unrealized gains suppressed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return decimal.Decimal{}, false
	}
	return cb.UnrealizedGainsPercent(price, naturalBalance, balance)
}

// leverage formats the externally computed leverage ratio, or "–" while the
// risk engine has not produced one.
func (s *Service) leverage(ctx context.Context, pos domain.Position) string {
	snap, err := s.risk.GetRisk(ctx, pos.ID)
	if err != nil || snap.LeverageRatio == nil {
		return Placeholder
	}
	return snap.LeverageRatio.StringFixed(2) + "x"
}

func (s *Service) dateString(t time.Time) string {
	formatted, err := s.times.Format(t.UTC().Format(time.RFC3339), chartDateLayout)
	if err != nil {
		return t.UTC().Format(chartDateLayout)
	}
	return formatted
}
