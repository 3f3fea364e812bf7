package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestAddDefaults(t *testing.T) {
	t.Parallel()
	b := NewBook(nil, clock)
	a, err := b.Add("sui", domain.AlertAbove, 4.5, "")
	require.NoError(t, err)
	assert.Equal(t, "SUI", a.Symbol)
	assert.Equal(t, "SUI above $4.5", a.Note)
	assert.True(t, a.Active)
	assert.Equal(t, fixedNow, a.CreatedAt)

	_, err = b.Add("SUI", domain.AlertCondition("sideways"), 1, "")
	assert.Error(t, err)
	_, err = b.Add("SUI", domain.AlertBelow, 0, "")
	assert.Error(t, err)
	assert.Len(t, b.All(), 1)
}

func TestCheckFiresOnce(t *testing.T) {
	t.Parallel()
	b := NewBook(nil, clock)
	above, _ := b.Add("SUI", domain.AlertAbove, 4, "")
	below, _ := b.Add("ETH", domain.AlertBelow, 2000, "")

	assert.Empty(t, b.Check(domain.PriceMap{"SUI": 3.99, "ETH": 2000.01}))

	fired := b.Check(domain.PriceMap{"SUI": 4, "ETH": 2000})
	require.Len(t, fired, 2)
	assert.Equal(t, above.ID, fired[0].ID)
	assert.Equal(t, below.ID, fired[1].ID)
	require.NotNil(t, fired[0].TriggeredAt)

	assert.Empty(t, b.Check(domain.PriceMap{"SUI": 10, "ETH": 1}))
	assert.Len(t, b.Triggered(), 2)
	assert.Empty(t, b.Active())

	require.NoError(t, b.Reset(above.ID))
	assert.Len(t, b.Check(domain.PriceMap{"SUI": 5}), 1)
}

func TestToggleAndClear(t *testing.T) {
	t.Parallel()
	b := NewBook(nil, clock)
	a, _ := b.Add("SUI", domain.AlertAbove, 4, "")
	c, _ := b.Add("BTC", domain.AlertBelow, 50000, "")

	require.NoError(t, b.Toggle(a.ID))
	assert.Empty(t, b.Check(domain.PriceMap{"SUI": 5}))
	assert.Equal(t, []string{"BTC"}, b.Symbols())

	b.Check(domain.PriceMap{"BTC": 40000})
	assert.Equal(t, 1, b.ClearTriggered())
	assert.Len(t, b.All(), 1)

	assert.True(t, b.Remove(a.ID))
	assert.False(t, b.Remove(c.ID))
	assert.ErrorIs(t, b.Toggle("missing"), domain.ErrNotFound)
}

func TestReplaceDropsInvalid(t *testing.T) {
	t.Parallel()
	b := NewBook([]domain.PriceAlert{
		{ID: "a", Symbol: "sui", Condition: domain.AlertAbove, Price: 1, Active: true},
		{ID: "b", Symbol: "", Condition: domain.AlertAbove, Price: 1},
	}, clock)
	all := b.All()
	require.Len(t, all, 1)
	assert.Equal(t, "SUI", all[0].Symbol)
}
