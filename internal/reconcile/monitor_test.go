package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

func buy(id, sym string, units float64) domain.PendingOrder {
	return domain.PendingOrder{ID: id, Type: domain.OrderSideBuy, Symbol: sym, Units: units, Price: 1, Status: domain.OrderStatusOpen}
}

func entry(id string, typ domain.EntryType, sym string, units, price float64) domain.JournalEntry {
	return domain.JournalEntry{ID: id, Type: typ, Symbol: sym, Units: domain.Float(units), Price: domain.Float(price)}
}

func TestReconcileMatch(t *testing.T) {
	t.Parallel()
	m := NewMonitor(0, -1, nil)

	local := []domain.PendingOrder{buy("o1", "X", 100), buy("keep", "Y", 5)}
	remote := []domain.PendingOrder{buy("keep", "Y", 5)}
	journal := []domain.JournalEntry{entry("j1", domain.EntryBuy, "x", 98, 1.05)}

	res := m.Reconcile(domain.AnchorAccount, local, remote, journal)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, domain.EventReconciliation, ev.Kind)
	assert.Equal(t, domain.AnchorAccount, ev.AccountID)
	require.NotNil(t, ev.Order)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, "o1", ev.Order.ID)
	assert.Equal(t, "j1", ev.Entry.ID)
	assert.NotEmpty(t, ev.Message)

	assert.Equal(t, remote, res.Kept)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "o1", res.Dropped[0].ID)
}

func TestReconcileNoMatch(t *testing.T) {
	t.Parallel()
	m := NewMonitor(DefaultWindow, DefaultTolerance, nil)

	tests := []struct {
		name    string
		journal []domain.JournalEntry
	}{
		{"wrong side", []domain.JournalEntry{entry("j", domain.EntrySell, "X", 100, 1)}},
		{"wrong symbol", []domain.JournalEntry{entry("j", domain.EntryBuy, "Z", 100, 1)}},
		{"outside tolerance", []domain.JournalEntry{entry("j", domain.EntryBuy, "X", 85, 1)}},
		{"note", []domain.JournalEntry{{ID: "j", Type: domain.EntryNote, Symbol: "X"}}},
		{"empty journal", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := m.Reconcile(domain.RotatorAccount, []domain.PendingOrder{buy("o1", "X", 100)}, nil, tt.journal)
			assert.Empty(t, res.Events)
			assert.Len(t, res.Dropped, 1)
			assert.Empty(t, res.Kept)
		})
	}
}

func TestReconcileWindow(t *testing.T) {
	t.Parallel()
	m := NewMonitor(5, 0.10, nil)

	journal := []domain.JournalEntry{entry("old", domain.EntryBuy, "X", 100, 1)}
	for i := 0; i < 5; i++ {
		journal = append(journal, entry("n"+string(rune('a'+i)), domain.EntryNote, "USD", 0, 0))
	}

	res := m.Reconcile(domain.AnchorAccount, []domain.PendingOrder{buy("o1", "X", 100)}, nil, journal)
	assert.Empty(t, res.Events)

	wide := NewMonitor(6, 0.10, nil)
	res = wide.Reconcile(domain.AnchorAccount, []domain.PendingOrder{buy("o1", "X", 100)}, nil, journal)
	assert.Len(t, res.Events, 1)
}

func TestReconcileNewestWins(t *testing.T) {
	t.Parallel()
	m := NewMonitor(5, 0.10, nil)

	journal := []domain.JournalEntry{
		entry("older", domain.EntryBuy, "X", 101, 1),
		entry("newer", domain.EntryBuy, "X", 95, 1),
	}
	res := m.Reconcile(domain.AnchorAccount, []domain.PendingOrder{buy("o1", "X", 100)}, nil, journal)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "newer", res.Events[0].Entry.ID)
}

func TestReconcileToleranceBoundary(t *testing.T) {
	t.Parallel()
	m := NewMonitor(5, 0.10, nil)

	res := m.Reconcile(domain.AnchorAccount, []domain.PendingOrder{buy("o1", "X", 100)}, nil,
		[]domain.JournalEntry{entry("j", domain.EntryBuy, "X", 110, 1)})
	assert.Len(t, res.Events, 1)
}
