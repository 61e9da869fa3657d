package portfolio

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginview/marginview/internal/domain"
	"github.com/marginview/marginview/internal/timecache"
	"github.com/marginview/marginview/internal/valuation"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type fakePositions struct {
	byID map[string]domain.Position
}

func (f *fakePositions) Upsert(_ context.Context, pos domain.Position) error {
	f.byID[pos.ID] = pos
	return nil
}

func (f *fakePositions) GetByID(_ context.Context, id string) (domain.Position, error) {
	pos, ok := f.byID[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakePositions) List(_ context.Context, _ domain.ListOpts) ([]domain.Position, error) {
	out := make([]domain.Position, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePositions) ListByState(_ context.Context, state domain.PositionState, _ domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.byID {
		if p.State == state {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTransfers map[string][]domain.Transfer

func (f fakeTransfers) Append(_ context.Context, t domain.Transfer) error {
	f[t.PositionID] = append(f[t.PositionID], t)
	return nil
}

func (f fakeTransfers) ListByPosition(_ context.Context, positionID string) ([]domain.Transfer, error) {
	return f[positionID], nil
}

type fakeQuotes struct {
	latest  map[string]domain.Quote
	dayAgo  map[string]domain.Quote
	history map[string][]domain.Quote
}

func (f *fakeQuotes) Insert(_ context.Context, positionID string, q domain.Quote) error {
	f.latest[positionID] = q
	return nil
}

func (f *fakeQuotes) Latest(_ context.Context, positionID string) (domain.Quote, error) {
	q, ok := f.latest[positionID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (f *fakeQuotes) At(_ context.Context, positionID string, _ time.Time) (domain.Quote, error) {
	q, ok := f.dayAgo[positionID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (f *fakeQuotes) History(_ context.Context, positionID string, _, _ time.Time, _ int) ([]domain.Quote, error) {
	return f.history[positionID], nil
}

type emptyQuoteCache struct{}

func (emptyQuoteCache) SetLatest(context.Context, string, domain.Quote) error { return nil }
func (emptyQuoteCache) GetLatest(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNotFound
}

type fakeBalances map[common.Address]decimal.Decimal

func (f fakeBalances) SetBalance(_ context.Context, contract common.Address, balance decimal.Decimal, _ time.Time) error {
	f[contract] = balance
	return nil
}

func (f fakeBalances) GetBalance(_ context.Context, contract common.Address) (decimal.Decimal, error) {
	b, ok := f[contract]
	if !ok {
		return decimal.Decimal{}, domain.ErrNotFound
	}
	return b, nil
}

type fakeRisk map[string]domain.RiskSnapshot

func (f fakeRisk) SetRisk(_ context.Context, snap domain.RiskSnapshot) error {
	f[snap.PositionID] = snap
	return nil
}

func (f fakeRisk) GetRisk(_ context.Context, positionID string) (domain.RiskSnapshot, error) {
	snap, ok := f[positionID]
	if !ok {
		return domain.RiskSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

const shortContract = "0x00000000000000000000000000000000000000aa"

func shortPosition() domain.Position {
	return domain.Position{
		ID:   "short-1",
		Name: "Short Ethereum APR19",
		Type: domain.PositionTypeShort,
		Token: domain.Token{
			Symbol:          "sETH APR19",
			Decimals:        8,
			ContractAddress: common.HexToAddress(shortContract),
		},
		InitialCollateral: dec("150"),
		InitialPrincipal:  dec("100"),
		ExpiresAt:         time.Now().Add(48 * time.Hour),
		State:             domain.PositionStateActive,
	}
}

func quote(base, quoteUSD, interest string) domain.Quote {
	return domain.Quote{
		BaseUSD:         decp(base),
		QuoteUSD:        decp(quoteUSD),
		InterestPercent: decp(interest),
		Timestamp:       time.Now(),
	}
}

func newTestService(t *testing.T, pos domain.Position, quotes *fakeQuotes, transfers fakeTransfers, balances fakeBalances, risk fakeRisk) *Service {
	t.Helper()
	times, err := timecache.New(64)
	require.NoError(t, err)
	return NewService(
		&fakePositions{byID: map[string]domain.Position{pos.ID: pos}},
		transfers,
		quotes,
		emptyQuoteCache{},
		balances,
		risk,
		times,
		slog.New(slog.DiscardHandler),
	)
}

func TestRowsActiveShortPosition(t *testing.T) {
	pos := shortPosition()
	quotes := &fakeQuotes{
		// 1.5*1.00 - 0.01*100 = 0.5 now; 1.5*1.00 - 0.01*80 = 0.7 a day ago
		latest: map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo: map[string]domain.Quote{pos.ID: quote("80", "1.00", "0.01")},
	}
	balances := fakeBalances{pos.Token.ContractAddress: dec("20000000000")} // 200 natural at 8 decimals
	transfers := fakeTransfers{pos.ID: {
		{PositionID: pos.ID, Amount: dec("20000000000"), Price: dec("40")}, // 0.40 USD scaled by 100
	}}
	risk := fakeRisk{pos.ID: {PositionID: pos.ID, LeverageRatio: decp("3")}}

	svc := newTestService(t, pos, quotes, transfers, balances, risk)

	rows, err := svc.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "0.50", row.PriceUSD)
	assert.Equal(t, "-0.20", row.Change)
	assert.Equal(t, valuation.DirectionDown, row.ChangeDirection)
	assert.Equal(t, "200.0000", row.Owned)
	assert.Equal(t, "100.00", row.ValueUSD)
	// ((0.5 - 0.4) / 0.4) * 100 = +25%
	assert.Equal(t, "+25.00%", row.UnrealizedGains)
	assert.Equal(t, "3.00x", row.Leverage)
	assert.Equal(t, "#ff6a31", row.Color)
}

func TestRowsMissingQuoteDegradesToPlaceholders(t *testing.T) {
	pos := shortPosition()
	quotes := &fakeQuotes{latest: map[string]domain.Quote{}, dayAgo: map[string]domain.Quote{}}
	balances := fakeBalances{pos.Token.ContractAddress: dec("20000000000")}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, balances, fakeRisk{})

	rows, err := svc.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, Placeholder, row.PriceUSD)
	assert.Equal(t, Placeholder, row.Change)
	assert.Equal(t, Placeholder, row.ValueUSD)
	assert.Equal(t, Placeholder, row.UnrealizedGains)
	assert.Equal(t, Placeholder, row.Leverage)
}

func TestRowsClosedDustPositionHidden(t *testing.T) {
	pos := shortPosition()
	pos.State = domain.PositionStateClosed
	quotes := &fakeQuotes{
		latest: map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo: map[string]domain.Quote{},
	}
	balances := fakeBalances{pos.Token.ContractAddress: dec("9999999999")}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, balances, fakeRisk{})

	rows, err := svc.Rows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowsClosedWithBalanceShownWithoutChange(t *testing.T) {
	pos := shortPosition()
	pos.State = domain.PositionStateClosed
	quotes := &fakeQuotes{
		latest: map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo: map[string]domain.Quote{pos.ID: quote("80", "1.00", "0.01")},
	}
	balances := fakeBalances{pos.Token.ContractAddress: dec("20000000000")}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, balances, fakeRisk{})

	rows, err := svc.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.True(t, row.IsClosed)
	assert.Equal(t, "0.50", row.PriceUSD)
	assert.Equal(t, Placeholder, row.Change, "closed rows never show a 24h change")
	assert.Equal(t, Placeholder, row.UnrealizedGains)
}

func TestRowsInactiveHidden(t *testing.T) {
	pos := shortPosition()
	pos.State = domain.PositionStateInactive
	quotes := &fakeQuotes{latest: map[string]domain.Quote{}, dayAgo: map[string]domain.Quote{}}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, fakeBalances{}, fakeRisk{})

	rows, err := svc.Rows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestChartViewAxisAndLabels(t *testing.T) {
	pos := shortPosition()
	base := time.Now().Add(-3 * time.Hour)
	quotes := &fakeQuotes{
		latest: map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo: map[string]domain.Quote{},
		history: map[string][]domain.Quote{pos.ID: {
			// short price = 1.5*100 - i*100: 110, 100, 90 as interest accrues
			{BaseUSD: decp("100"), QuoteUSD: decp("100"), InterestPercent: decp("0.4"), Timestamp: base},
			{BaseUSD: decp("100"), QuoteUSD: decp("100"), InterestPercent: decp("0.5"), Timestamp: base.Add(time.Hour)},
			{BaseUSD: decp("100"), QuoteUSD: decp("100"), InterestPercent: decp("0.6"), Timestamp: base.Add(2 * time.Hour)},
		}},
	}
	balances := fakeBalances{pos.Token.ContractAddress: dec("20000000000")}
	risk := fakeRisk{pos.ID: {PositionID: pos.ID, MarginCallPrice: decp("50")}}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, balances, risk)

	view, err := svc.Chart(context.Background(), pos.ID)
	require.NoError(t, err)

	require.Len(t, view.Points, 3)
	require.NotNil(t, view.Axis)
	// delta = 20, clamp floor = 90 - 5 = 85; line = max(50, 85) = 85
	assert.True(t, view.Axis.MarginCallLine.Equal(dec("85")), "got %s", view.Axis.MarginCallLine)
	assert.Equal(t, "50.00", view.MarginCallPriceUSD, "true threshold still reported")
	assert.Contains(t, view.ExpiryLabel, "Expires in")
	assert.NotEmpty(t, view.StartDate)
	assert.NotEmpty(t, view.EndDate)
	require.NotNil(t, view.Explanation)
}

func TestChartViewMarginCallSuppressedWithoutRisk(t *testing.T) {
	pos := shortPosition()
	quotes := &fakeQuotes{
		latest:  map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo:  map[string]domain.Quote{},
		history: map[string][]domain.Quote{},
	}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, fakeBalances{}, fakeRisk{})

	view, err := svc.Chart(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.Empty(t, view.MarginCallPriceUSD)
	assert.Nil(t, view.Axis)
}

func TestChartViewClosedPositionSuppressesExplanation(t *testing.T) {
	pos := shortPosition()
	pos.State = domain.PositionStateClosed
	closedAt := time.Now().Add(-time.Hour)
	pos.ClosedAt = &closedAt

	quotes := &fakeQuotes{
		latest:  map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo:  map[string]domain.Quote{},
		history: map[string][]domain.Quote{},
	}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, fakeBalances{}, fakeRisk{})

	view, err := svc.Chart(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Explanation)
	assert.True(t, view.HideMarginCallLine)
	assert.Empty(t, view.ExpiryLabel)
	assert.Equal(t, "0.50", view.PriceUSD, "price math remains valid after close")
}

func TestChartViewClosedStateHidesMarginCallLine(t *testing.T) {
	// State alone marks the close; closed_at may lag behind.
	pos := shortPosition()
	pos.State = domain.PositionStateClosed
	pos.ClosedAt = nil

	quotes := &fakeQuotes{
		latest:  map[string]domain.Quote{pos.ID: quote("100", "1.00", "0.01")},
		dayAgo:  map[string]domain.Quote{},
		history: map[string][]domain.Quote{},
	}

	svc := newTestService(t, pos, quotes, fakeTransfers{}, fakeBalances{}, fakeRisk{})

	view, err := svc.Chart(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.True(t, view.HideMarginCallLine)
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "0x1234...cdef",
		TruncateAddress("0x123456789abcdef0123456789abcdef012345cdef"))
	assert.Equal(t, "0xabcd...9876",
		TruncateAddress("abcdef00000000009876"))
}
