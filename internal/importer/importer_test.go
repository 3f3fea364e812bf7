package importer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func account() domain.AccountState {
	return domain.AccountState{
		ID: domain.AnchorAccount,
		Positions: []domain.Position{
			{Symbol: "SUI", Units: 100, TotalCost: 150, CurrentPrice: 2},
			{Symbol: "ETH", Units: 1, TotalCost: 2000, CurrentPrice: 2500},
			{Symbol: "USD", Units: 500, TotalCost: 500, CurrentPrice: 1},
		},
		Journal: []domain.JournalEntry{
			{ID: "abc1234", Timestamp: fixedNow, Type: domain.EntryNote},
		},
		PendingOrders: []domain.PendingOrder{
			{ID: "def5678", Type: domain.OrderSideSell, Symbol: "SUI", Units: 10, Price: 3},
		},
		RecycledValue: 12.5,
	}
}

func TestBackupRoundTrip(t *testing.T) {
	t.Parallel()
	raw, err := ExportBackup(account())
	require.NoError(t, err)

	var shape map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &shape))
	for _, k := range []string{"activeAccount", "assets", "journal", "pendingOrders", "recycledToSui"} {
		assert.Contains(t, shape, k)
	}

	b, err := ParseBackup(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.AnchorAccount, b.ActiveAccount)

	restored := b.Apply(domain.AccountState{ID: domain.AnchorAccount})
	assert.Len(t, restored.Positions, 3)
	assert.Equal(t, 12.5, restored.RecycledValue)
	assert.Equal(t, "def5678", restored.PendingOrders[0].ID)
}

func TestParseBackupRejectsMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"assets": [`},
		{"unknown account", `{"activeAccount":"bonds"}`},
		{"duplicate asset", `{"assets":[{"symbol":"SUI","units":1},{"symbol":"sui","units":2}]}`},
		{"bad journal", `{"journal":[{"id":"","type":"buy"}]}`},
		{"bad order", `{"pendingOrders":[{"id":"x","type":"hold","symbol":"SUI","units":1,"price":1}]}`},
		{"duplicate journal id", `{"journal":[` +
			`{"id":"tx1","type":"buy","symbol":"SUI","units":1,"price":1},` +
			`{"id":"tx1","type":"sell","symbol":"SUI","units":1,"price":2}]}`},
		{"duplicate order id", `{"pendingOrders":[` +
			`{"id":"o1","type":"buy","symbol":"SUI","units":1,"price":1},` +
			`{"id":"o1","type":"sell","symbol":"SUI","units":2,"price":3}]}`},
		{"negative recycled", `{"recycledToSui":-1}`},
		{"wrong type", `{"assets":"SUI"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBackup([]byte(tc.raw))
			assert.ErrorIs(t, err, domain.ErrMalformedImport)
		})
	}
}

func TestApplyKeepsAbsentFields(t *testing.T) {
	t.Parallel()
	b, err := ParseBackup([]byte(`{"activeAccount":"sui","recycledToSui":3}`))
	require.NoError(t, err)

	before := account()
	after := b.Apply(before)
	assert.Equal(t, before.Positions, after.Positions)
	assert.Equal(t, before.Journal, after.Journal)
	assert.Equal(t, 3.0, after.RecycledValue)
}

const tradePaste = "Sell\tabc1234\t10\tSUI\t$3.10\tExecuted\t2026-02-14\n" +
	"Buy\t9f8e7d6\t0.5 ETH\t$2,400.00\tPlaced\t2026-02-20\n" +
	"Buy\tdef5678\t10\tSUI\t$3.00\tPlaced\n" +
	"Buy\tcafe12\t5\tSOL\tPending review\n"

func TestParsePasteTrades(t *testing.T) {
	t.Parallel()
	p := ParsePaste(tradePaste, account(), fixedNow)

	require.Len(t, p.Trades, 3)

	sell := p.Trades[0]
	assert.Equal(t, "abc1234", sell.ID)
	assert.Equal(t, domain.OrderSideSell, sell.Type)
	assert.Equal(t, "SUI", sell.Symbol)
	assert.Equal(t, 10.0, sell.Units)
	assert.Equal(t, 3.10, sell.Price)
	assert.Equal(t, PasteExecuted, sell.Status)
	assert.Equal(t, "2026-02-14", sell.Date)
	assert.True(t, sell.Duplicate, "id already in journal")

	buy := p.Trades[1]
	assert.Equal(t, "ETH", buy.Symbol)
	assert.Equal(t, 0.5, buy.Units)
	assert.Equal(t, 2400.0, buy.Price)
	assert.Equal(t, PastePlaced, buy.Status)
	assert.False(t, buy.Duplicate)

	pending := p.Trades[2]
	assert.True(t, pending.Duplicate, "id already pending")
	assert.Equal(t, "2026-03-01", pending.Date)

	assert.Len(t, p.NewTrades(), 1)
	assert.Empty(t, p.Balances)
	assert.Nil(t, p.MatchRate)
}

func TestParsePasteBalances(t *testing.T) {
	t.Parallel()
	text := "Portfolio\nUSDUSD\n35.30%\n$1,258.55\nSUISUI\n52.10%\n1,912.10\n~$1,856.00\n"
	p := ParsePaste(text, account(), fixedNow)

	assert.Equal(t, []BalanceItem{
		{Symbol: "USD", Units: 1258.55},
		{Symbol: "SUI", Units: 1912.10},
	}, p.Balances)
	require.NotNil(t, p.MatchRate)
	assert.InDelta(t, 0.5, *p.MatchRate, 1e-9)
	assert.Empty(t, p.Warnings)
}

func TestParsePasteMismatchWarning(t *testing.T) {
	t.Parallel()
	state := account()
	state.Positions = append(state.Positions,
		domain.Position{Symbol: "BTC"}, domain.Position{Symbol: "SOL"}, domain.Position{Symbol: "AVAX"})
	text := "Portfolio\nSUISUI\n10%\n5\nDOGEDOGE\n90%\n1000\n"

	p := ParsePaste(text, state, fixedNow)
	require.NotNil(t, p.MatchRate)
	assert.InDelta(t, 0.2, *p.MatchRate, 1e-9)
	require.Len(t, p.Warnings, 1)
	assert.Contains(t, p.Warnings[0], "20%")
}

func TestParsePasteEmpty(t *testing.T) {
	t.Parallel()
	p := ParsePaste("   ", account(), fixedNow)
	assert.Empty(t, p.Trades)
	assert.Empty(t, p.Balances)
}

func TestParseNumber(t *testing.T) {
	t.Parallel()
	v, ok := parseNumber("1,912.10")
	assert.True(t, ok)
	assert.Equal(t, 1912.10, v)

	v, ok = parseNumber("52.10%")
	assert.True(t, ok)
	assert.Equal(t, 52.10, v)

	_, ok = parseNumber("SUI")
	assert.False(t, ok)
}
