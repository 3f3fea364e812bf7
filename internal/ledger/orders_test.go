package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

func TestAddOrderDefaults(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	o, err := a.AddOrder(domain.PendingOrder{Type: "BUY", Symbol: "x", Units: 2, Price: 1.5})
	require.NoError(t, err)
	assert.Regexp(t, `^X-buy-[0-9a-z]{26}$`, o.ID)
	assert.Equal(t, domain.OrderStatusOpen, o.Status)
	assert.Equal(t, "2026-03-01", o.Date)
	assert.True(t, a.HasPendingOrder(o.ID))
}

func TestAddOrderDuplicateIgnored(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	first, err := a.AddOrder(domain.PendingOrder{ID: "o1", Type: domain.OrderSideBuy, Symbol: "X", Units: 1, Price: 1})
	require.NoError(t, err)
	again, err := a.AddOrder(domain.PendingOrder{ID: "o1", Type: domain.OrderSideSell, Symbol: "X", Units: 9, Price: 9})
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Len(t, a.PendingOrders(), 1)
}

func TestAddOrderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order domain.PendingOrder
	}{
		{"bad side", domain.PendingOrder{Type: "hold", Symbol: "X", Units: 1, Price: 1}},
		{"zero units", domain.PendingOrder{Type: domain.OrderSideBuy, Symbol: "X", Price: 1}},
		{"negative price", domain.PendingOrder{Type: domain.OrderSideBuy, Symbol: "X", Units: 1, Price: -1}},
		{"no symbol", domain.PendingOrder{Type: domain.OrderSideBuy, Units: 1, Price: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := testAccount(t)
			_, err := a.AddOrder(tt.order)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
			assert.Empty(t, a.PendingOrders())
		})
	}
}

func TestKillOrder(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	_, err := a.AddOrder(domain.PendingOrder{ID: "k", Type: domain.OrderSideSell, Symbol: "X", Units: 1, Price: 3})
	require.NoError(t, err)

	assert.True(t, a.KillOrder("k"))
	assert.False(t, a.KillOrder("k"))
	assert.False(t, a.HasPendingOrder("k"))
}

func TestFillOrder(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	_, err := a.AddOrder(domain.PendingOrder{ID: "f1", Type: domain.OrderSideSell, Symbol: "X", Units: 4, Price: 2.5})
	require.NoError(t, err)

	res, err := a.FillOrder("f1")
	require.NoError(t, err)
	assert.InDelta(t, 9.90, res.Net, 1e-9)
	assert.False(t, a.HasPendingOrder("f1"))

	var n int
	for _, e := range a.Snapshot().Journal {
		if e.ID == "f1" {
			n++
			assert.Equal(t, domain.EntrySell, e.Type)
		}
	}
	assert.Equal(t, 1, n)
	assert.InDelta(t, 6.0, position(t, a, "X").Units, 1e-9)
}

func TestFillOrderUnknown(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	_, err := a.FillOrder("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFillOrderUnheldSymbolKeepsOrder(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	_, err := a.AddOrder(domain.PendingOrder{ID: "btc", Type: domain.OrderSideBuy, Symbol: "BTC", Units: 1, Price: 10})
	require.NoError(t, err)

	_, err = a.FillOrder("btc")
	require.ErrorIs(t, err, domain.ErrUnknownAsset)
	assert.True(t, a.HasPendingOrder("btc"))
	assert.Empty(t, a.Snapshot().Journal)
}
