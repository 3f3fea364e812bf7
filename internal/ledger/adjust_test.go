package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

func TestRecyclePnL(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	// X: 10 units @ 4 = 40 value against 15 cost, 25 profit.
	a.ApplyPrices(domain.PriceMap{"X": 4})

	moved, err := a.RecyclePnL("x")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, moved, 1e-9)

	s := a.Snapshot()
	x, _ := s.Position("X")
	sui, _ := s.Position("SUI")
	assert.InDelta(t, 3.75, x.Units, 1e-9)
	assert.InDelta(t, 0.0, x.GainLoss, 1e-9)
	assert.InDelta(t, 125.0, sui.Units, 1e-9)
	assert.InDelta(t, 145.0, sui.TotalCost, 1e-9)
	assert.InDelta(t, 25.0, s.RecycledValue, 1e-9)
}

func TestRecyclePnLRules(t *testing.T) {
	t.Parallel()

	a := testAccount(t)
	moved, err := a.RecyclePnL("X") // 20 value vs 15 cost at price 2
	require.NoError(t, err)
	assert.InDelta(t, 5.0, moved, 1e-9)

	moved, err = a.RecyclePnL("X")
	require.NoError(t, err)
	assert.Zero(t, moved)

	_, err = a.RecyclePnL("SUI")
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	_, err = a.RecyclePnL("NOPE")
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)

	rot := NewAccount(Defaults(domain.RotatorAccount), testOptions())
	_, err = rot.RecyclePnL("RENDER")
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestSyncAssetBalance(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	require.NoError(t, a.SyncAssetBalance("X", 5))
	x := position(t, a, "X")
	assert.InDelta(t, 5.0, x.Units, 1e-9)
	assert.InDelta(t, 7.5, x.TotalCost, 1e-9)

	require.NoError(t, a.SyncAssetBalance("X", math.NaN()))
	x = position(t, a, "X")
	assert.Zero(t, x.Units)
	assert.Zero(t, x.TotalCost)

	require.NoError(t, a.SyncAssetBalance("X", 4))
	x = position(t, a, "X")
	assert.InDelta(t, 8.0, x.TotalCost, 1e-9)
	assert.InDelta(t, 0.0, x.GainLoss, 1e-9)

	assert.ErrorIs(t, a.SyncAssetBalance("NOPE", 1), domain.ErrUnknownAsset)
}

func TestImportAsset(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	p, err := a.ImportAsset("btc", 65000)
	require.NoError(t, err)
	assert.Equal(t, "BTC", p.Symbol)
	assert.Zero(t, p.Units)
	assert.Zero(t, p.TargetAllocation)

	s := a.Snapshot()
	assert.Equal(t, domain.CashSymbol, s.Positions[len(s.Positions)-1].Symbol)

	again, err := a.ImportAsset("BTC", 1)
	require.NoError(t, err)
	assert.Equal(t, 65000.0, again.CurrentPrice)
	assert.Len(t, a.Snapshot().Positions, 4)
}

func TestRemoveJournalEntry(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	_, err := a.ExecuteTrade(domain.JournalEntry{ID: "j", Type: domain.EntryBuy, Symbol: "X", Units: domain.Float(1), Price: domain.Float(1)})
	require.NoError(t, err)
	units := position(t, a, "X").Units

	assert.True(t, a.RemoveJournalEntry("j"))
	assert.False(t, a.RemoveJournalEntry("j"))
	assert.Empty(t, a.Snapshot().Journal)
	assert.Equal(t, units, position(t, a, "X").Units)
	assert.Equal(t, []string{"j"}, a.Snapshot().Tombstones.Journal)
}

func TestTombstonesAcknowledged(t *testing.T) {
	t.Parallel()
	a := testAccount(t)
	for _, id := range []string{"j1", "j2"} {
		_, err := a.ExecuteTrade(domain.JournalEntry{ID: id, Type: domain.EntryNote, Symbol: domain.CashSymbol})
		require.NoError(t, err)
	}
	require.True(t, a.RemoveJournalEntry("j1"))
	synced := a.Snapshot().Tombstones

	require.True(t, a.RemoveJournalEntry("j2"))
	a.Acknowledge(synced)
	assert.Equal(t, []string{"j2"}, a.Snapshot().Tombstones.Journal)

	// journaling the id again cancels its pending deletion
	_, err := a.ExecuteTrade(domain.JournalEntry{ID: "j2", Type: domain.EntryNote, Symbol: domain.CashSymbol})
	require.NoError(t, err)
	assert.True(t, a.Snapshot().Tombstones.Empty())
}

func TestResetAcknowledgedOnlyForSameEpoch(t *testing.T) {
	t.Parallel()
	a := NewAccount(Defaults(domain.AnchorAccount), testOptions())
	require.True(t, a.RemoveJournalEntry("init-0"))

	a.Reset(Defaults(domain.AnchorAccount))
	first := a.Snapshot().Tombstones
	assert.True(t, first.Reset)
	assert.Empty(t, first.Journal, "a reset supersedes single deletions")

	a.Reset(Defaults(domain.AnchorAccount))
	a.Acknowledge(first)
	assert.True(t, a.Snapshot().Tombstones.Reset)

	a.Acknowledge(a.Snapshot().Tombstones)
	assert.True(t, a.Snapshot().Tombstones.Empty())
}

func TestReplaceWithIsAtomic(t *testing.T) {
	t.Parallel()
	a := NewAccount(Defaults(domain.AnchorAccount), testOptions())

	boom := errors.New("boom")
	_, err := a.ReplaceWith(func(domain.AccountState) (domain.AccountState, error) {
		return domain.AccountState{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Defaults(domain.AnchorAccount), a.Snapshot())

	got, err := a.ReplaceWith(func(cur domain.AccountState) (domain.AccountState, error) {
		cur.TargetValue = 42
		cur.ID = domain.RotatorAccount
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AnchorAccount, got.ID)
	assert.Equal(t, 42.0, got.TargetValue)
	assert.True(t, got.Tombstones.Reset)
}

func TestTargets(t *testing.T) {
	t.Parallel()
	a := testAccount(t)

	require.NoError(t, a.SetTargetAllocation("x", 40))
	assert.Equal(t, 40.0, position(t, a, "X").TargetAllocation)
	assert.ErrorIs(t, a.SetTargetAllocation("x", 140), domain.ErrInvalidOrder)
	assert.ErrorIs(t, a.SetTargetAllocation("nope", 4), domain.ErrUnknownAsset)

	require.NoError(t, a.SetTargetValue(5000))
	assert.Equal(t, 5000.0, a.Snapshot().TargetValue)
	assert.Error(t, a.SetTargetValue(-1))
}

func TestResetKeepsID(t *testing.T) {
	t.Parallel()
	a := NewAccount(Defaults(domain.AnchorAccount), testOptions())
	_, err := a.ExecuteTrade(domain.JournalEntry{Type: domain.EntryBuy, Symbol: "SUI", Units: domain.Float(1), Price: domain.Float(1)})
	require.NoError(t, err)

	a.Reset(Defaults(domain.AnchorAccount))
	got := a.Snapshot()
	assert.True(t, got.Tombstones.Reset)
	got.Tombstones = domain.Tombstones{}
	assert.Equal(t, Defaults(domain.AnchorAccount), got)
}

func TestBookSwitchAccount(t *testing.T) {
	t.Parallel()
	b := NewBook(testOptions())

	assert.Equal(t, domain.AnchorAccount, b.Active())
	require.NoError(t, b.SwitchAccount(domain.RotatorAccount))
	assert.Equal(t, domain.RotatorAccount, b.Active())
	assert.ErrorIs(t, b.SwitchAccount("main"), domain.ErrUnknownAccount)

	_, err := b.Account("main")
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)
	assert.Len(t, b.Snapshots(), 2)
}
