package snapshots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

var day0 = time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)

func snapAt(days int, total float64) domain.DailySnapshot {
	ts := day0.AddDate(0, 0, days)
	return domain.DailySnapshot{Date: ts.Format("2006-01-02"), Timestamp: ts, TotalValue: total}
}

func TestFromState(t *testing.T) {
	t.Parallel()
	state := domain.AccountState{Positions: []domain.Position{
		{Symbol: "SUI", CurrentValue: 750, Allocation: 75, CurrentPrice: 3},
		{Symbol: "USD", Units: 250, CurrentValue: 250, Allocation: 25, CurrentPrice: 1},
	}}
	s := FromState(state, day0)
	assert.Equal(t, "2026-01-01", s.Date)
	assert.Equal(t, 1000.0, s.TotalValue)
	assert.Equal(t, 250.0, s.CashValue)
	assert.Equal(t, 25.0, s.CashPercent)
	assert.Len(t, s.Positions, 2)
}

func TestRecordReplacesSameDay(t *testing.T) {
	t.Parallel()
	h := Record(nil, snapAt(0, 100))
	h = Record(h, snapAt(1, 110))
	later := snapAt(1, 120)
	later.Timestamp = later.Timestamp.Add(time.Hour)
	h = Record(h, later)

	require.Len(t, h, 2)
	assert.Equal(t, 120.0, h[1].TotalValue)
}

func TestRecordTrims(t *testing.T) {
	t.Parallel()
	var h []domain.DailySnapshot
	for i := 0; i < MaxHistory+10; i++ {
		h = Record(h, snapAt(i, float64(i)))
	}
	require.Len(t, h, MaxHistory)
	assert.Equal(t, 10.0, h[0].TotalValue)
}

func TestComputePerformance(t *testing.T) {
	t.Parallel()
	var h []domain.DailySnapshot
	values := map[int]float64{0: 1000, 23: 1200, 30: 1100, 29: 1000}
	for _, d := range []int{0, 23, 29, 30} {
		h = Record(h, snapAt(d, values[d]))
	}
	now := day0.AddDate(0, 0, 30)

	p := ComputePerformance(h, now)
	require.NotNil(t, p.Daily)
	assert.InDelta(t, 10.0, *p.Daily, 1e-9)
	require.NotNil(t, p.Weekly)
	assert.InDelta(t, (1100.0-1200)/1200*100, *p.Weekly, 1e-9)
	require.NotNil(t, p.Monthly)
	assert.InDelta(t, 10.0, *p.Monthly, 1e-9)
	require.NotNil(t, p.AllTime)
	assert.Equal(t, 1200.0, p.HighWaterMark)
	assert.InDelta(t, (1100.0-1200)/1200*100, p.Drawdown, 1e-9)
}

func TestComputePerformanceSingleSnapshot(t *testing.T) {
	t.Parallel()
	p := ComputePerformance([]domain.DailySnapshot{snapAt(0, 500)}, day0)
	assert.Nil(t, p.Daily)
	assert.Nil(t, p.AllTime)
	assert.Equal(t, 500.0, p.HighWaterMark)
	assert.Zero(t, p.Drawdown)

	assert.Equal(t, Performance{}, ComputePerformance(nil, day0))
}
