package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{FeePercent: 1, Now: func() time.Time { return fixedNow }}
}

func testAccount(t *testing.T) *Account {
	t.Helper()
	return NewAccount(domain.AccountState{
		ID: domain.AnchorAccount,
		Positions: []domain.Position{
			{Symbol: "SUI", Units: 100, CurrentPrice: 1, TotalCost: 120},
			{Symbol: "X", Units: 10, CurrentPrice: 2, TotalCost: 15},
			{Symbol: domain.CashSymbol, Units: 1000},
		},
	}, testOptions())
}

func position(t *testing.T, a *Account, symbol string) domain.Position {
	t.Helper()
	p, ok := a.Snapshot().Position(symbol)
	require.True(t, ok, "position %s", symbol)
	return p
}

func allocationSum(s domain.AccountState) float64 {
	var sum float64
	for _, p := range s.Positions {
		sum += p.Allocation
	}
	return sum
}

func TestExecuteTradeSell(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	res, err := a.ExecuteTrade(domain.JournalEntry{
		ID: "s1", Type: domain.EntrySell, Symbol: "x",
		Units: domain.Float(4), Price: domain.Float(2.5),
	})
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.InDelta(t, 10.0, res.Gross, 1e-9)
	assert.InDelta(t, 0.10, res.Fee, 1e-9)
	assert.InDelta(t, 9.90, res.Net, 1e-9)

	x := position(t, a, "X")
	assert.InDelta(t, 6.0, x.Units, 1e-9)
	assert.InDelta(t, 9.0, x.TotalCost, 1e-9)
	assert.InDelta(t, 1009.90, position(t, a, domain.CashSymbol).Units, 1e-9)
}

func TestExecuteTradeBuy(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	_, err := a.ExecuteTrade(domain.JournalEntry{
		ID: "b1", Type: domain.EntryBuy, Symbol: "X",
		Units: domain.Float(5), Price: domain.Float(2),
	})
	require.NoError(t, err)

	x := position(t, a, "X")
	assert.InDelta(t, 15.0, x.Units, 1e-9)
	assert.InDelta(t, 25.10, x.TotalCost, 1e-9)
	assert.InDelta(t, 989.90, position(t, a, domain.CashSymbol).Units, 1e-9)
}

func TestExecuteTradeSellFloorsAtZero(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	_, err := a.ExecuteTrade(domain.JournalEntry{
		Type: domain.EntrySell, Symbol: "X", Units: domain.Float(50), Price: domain.Float(1),
	})
	require.NoError(t, err)

	x := position(t, a, "X")
	assert.Zero(t, x.Units)
	assert.Zero(t, x.TotalCost)
}

func TestExecuteTradeUnknownAsset(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	before := a.Snapshot()

	_, err := a.ExecuteTrade(domain.JournalEntry{
		ID: "u1", Type: domain.EntryBuy, Symbol: "DOGE",
		Units: domain.Float(1), Price: domain.Float(1),
	})
	require.ErrorIs(t, err, domain.ErrUnknownAsset)
	assert.Equal(t, before, a.Snapshot())
}

func TestExecuteTradeMissingCash(t *testing.T) {
	t.Parallel()
	a := NewAccount(domain.AccountState{
		ID:        domain.RotatorAccount,
		Positions: []domain.Position{{Symbol: "X", Units: 1, CurrentPrice: 1}},
	}, testOptions())

	_, err := a.ExecuteTrade(domain.JournalEntry{
		Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(1), Price: domain.Float(1),
	})
	require.ErrorIs(t, err, domain.ErrUnknownAsset)
	assert.Empty(t, a.Snapshot().Journal)
}

func TestExecuteTradeIdempotent(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	entry := domain.JournalEntry{
		ID: "dup", Type: domain.EntryBuy, Symbol: "X",
		Units: domain.Float(1), Price: domain.Float(2),
	}

	_, err := a.ExecuteTrade(entry)
	require.NoError(t, err)
	res, err := a.ExecuteTrade(entry)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Applied)

	s := a.Snapshot()
	var n int
	for _, e := range s.Journal {
		if e.ID == "dup" {
			n++
		}
	}
	assert.Equal(t, 1, n)
	x, _ := s.Position("X")
	assert.InDelta(t, 11.0, x.Units, 1e-9)
}

func TestExecuteTradeDuplicateRemovesOrder(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	_, err := a.ExecuteTrade(domain.JournalEntry{ID: "o1", Type: domain.EntryNote, Notes: "seen"})
	require.NoError(t, err)
	_, err = a.AddOrder(domain.PendingOrder{ID: "o1", Type: domain.OrderSideBuy, Symbol: "X", Units: 1, Price: 1})
	require.NoError(t, err)
	require.True(t, a.HasPendingOrder("o1"))

	res, err := a.ExecuteTrade(domain.JournalEntry{ID: "o1", Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(1), Price: domain.Float(1)})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, a.HasPendingOrder("o1"))
}

func TestExecuteTradeSilentAndAnnotation(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	before := position(t, a, "X")

	res, err := a.ExecuteTrade(domain.JournalEntry{
		ID: "s", Type: domain.EntryBuy, Symbol: "X",
		Units: domain.Float(3), Price: domain.Float(2), Silent: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	res, err = a.ExecuteTrade(domain.JournalEntry{ID: "n", Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(3)})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	assert.Equal(t, before.Units, position(t, a, "X").Units)
	assert.Len(t, a.Snapshot().Journal, 2)
}

func TestExecuteTradeDefaults(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	res, err := a.ExecuteTrade(domain.JournalEntry{Notes: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Entry.ID)
	assert.Equal(t, domain.EntryNote, res.Entry.Type)
	assert.Equal(t, fixedNow, res.Entry.Timestamp)
}

func TestValueConservation(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	// Trades at the prevailing price so only fees change total value.
	before := a.Snapshot().TotalValue()

	trades := []domain.JournalEntry{
		{Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(7), Price: domain.Float(2)},
		{Type: domain.EntrySell, Symbol: "SUI", Units: domain.Float(40), Price: domain.Float(1)},
		{Type: domain.EntrySell, Symbol: "X", Units: domain.Float(3.5), Price: domain.Float(2)},
		{Type: domain.EntryBuy, Symbol: "SUI", Units: domain.Float(12.25), Price: domain.Float(1)},
	}
	var fees float64
	for _, tr := range trades {
		res, err := a.ExecuteTrade(tr)
		require.NoError(t, err)
		fees += res.Fee
	}

	after := a.Snapshot().TotalValue()
	assert.InDelta(t, before-fees, after, 1e-9)
}

func TestAllocationsSumTo100(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	assert.InDelta(t, 100.0, allocationSum(a.Snapshot()), 1e-9)

	_, err := a.ExecuteTrade(domain.JournalEntry{Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(100), Price: domain.Float(3)})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, allocationSum(a.Snapshot()), 1e-9)

	a.ApplyPrices(domain.PriceMap{"X": 7.5, "SUI": 0.3})
	assert.InDelta(t, 100.0, allocationSum(a.Snapshot()), 1e-9)

	empty := NewAccount(domain.AccountState{ID: domain.RotatorAccount, Positions: []domain.Position{{Symbol: "USD"}}}, testOptions())
	assert.Zero(t, allocationSum(empty.Snapshot()))
}

func TestApplyPrices(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	n := a.ApplyPrices(domain.PriceMap{"X": 3, "USD": 5, "NOPE": 9, "SUI": -1})
	assert.Equal(t, 1, n)

	x := position(t, a, "X")
	assert.Equal(t, 3.0, x.CurrentPrice)
	assert.InDelta(t, 30.0, x.CurrentValue, 1e-9)
	assert.InDelta(t, 15.0, x.GainLoss, 1e-9)

	cash := position(t, a, domain.CashSymbol)
	assert.Equal(t, 1.0, cash.CurrentPrice)
	assert.Equal(t, cash.Units, cash.CurrentValue)
	assert.Equal(t, 1.0, position(t, a, "SUI").CurrentPrice)
}

func TestConcurrentTradesAndPrices(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := a.ExecuteTrade(domain.JournalEntry{Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(1), Price: domain.Float(1)})
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			a.ApplyPrices(domain.PriceMap{"X": 2 + float64(i%3)})
		}(i)
	}
	wg.Wait()

	x := position(t, a, "X")
	assert.InDelta(t, 60.0, x.Units, 1e-9)
	assert.InDelta(t, x.Units*x.CurrentPrice, x.CurrentValue, 1e-9)
	assert.Len(t, a.Snapshot().Journal, 50)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	for _, id := range domain.Accounts() {
		s := Defaults(id)
		require.NoError(t, s.Validate(), id)
		assert.InDelta(t, 100.0, allocationSum(s), 1e-6, id)
		assert.NotEmpty(t, s.PendingOrders, id)
		assert.NotEmpty(t, s.Journal, id)
	}

	anchor := Defaults(domain.AnchorAccount)
	assert.Equal(t, 450.0, anchor.RecycledValue)
	assert.Equal(t, 35000.0, anchor.TargetValue)
	assert.Len(t, anchor.PendingOrders, 7)
	assert.InDelta(t, 201.20, anchor.CashValue(), 1e-9)

	rotator := Defaults(domain.RotatorAccount)
	assert.Len(t, rotator.PendingOrders, 15)
	assert.Equal(t, 200000.0, rotator.TargetValue)
}
