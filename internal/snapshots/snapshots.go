// Package snapshots records one value snapshot per account per UTC day and
// derives performance figures from the history.
package snapshots

import (
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// MaxHistory is the number of daily snapshots kept per account.
const MaxHistory = 365

const dateLayout = "2006-01-02"

// FromState builds the snapshot of state taken at now.
func FromState(state domain.AccountState, now time.Time) domain.DailySnapshot {
	now = now.UTC()
	total := state.TotalValue()
	cash := state.CashValue()
	snap := domain.DailySnapshot{
		Date:       now.Format(dateLayout),
		Timestamp:  now,
		TotalValue: total,
		CashValue:  cash,
		Positions:  make([]domain.SnapshotPosition, 0, len(state.Positions)),
	}
	if total > 0 {
		snap.CashPercent = cash / total * 100
	}
	for _, p := range state.Positions {
		snap.Positions = append(snap.Positions, domain.SnapshotPosition{
			Symbol:     p.Symbol,
			Value:      p.CurrentValue,
			Allocation: p.Allocation,
			Price:      p.CurrentPrice,
		})
	}
	return snap
}

// Record returns history with snap added: a snapshot for the same date is
// replaced, the result is ordered oldest first and trimmed to MaxHistory.
func Record(history []domain.DailySnapshot, snap domain.DailySnapshot) []domain.DailySnapshot {
	out := make([]domain.DailySnapshot, 0, len(history)+1)
	replaced := false
	for _, h := range history {
		if h.Date == snap.Date {
			out = append(out, snap)
			replaced = true
			continue
		}
		out = append(out, h)
	}
	if !replaced {
		out = append(out, snap)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > MaxHistory {
		out = out[len(out)-MaxHistory:]
	}
	return out
}

// Performance summarises a snapshot history. Percentages are nil when there
// is no earlier snapshot to compare against.
type Performance struct {
	Daily         *float64 `json:"daily" yaml:"daily"`
	Weekly        *float64 `json:"weekly" yaml:"weekly"`
	Monthly       *float64 `json:"monthly" yaml:"monthly"`
	AllTime       *float64 `json:"allTime" yaml:"allTime"`
	HighWaterMark float64  `json:"highWaterMark" yaml:"highWaterMark"`
	Drawdown      float64  `json:"drawdown" yaml:"drawdown"`
}

// ComputePerformance compares the latest snapshot with the snapshots nearest
// to one, seven and thirty days before now.
func ComputePerformance(history []domain.DailySnapshot, now time.Time) Performance {
	if len(history) == 0 {
		return Performance{}
	}
	h := make([]domain.DailySnapshot, len(history))
	copy(h, history)
	sort.SliceStable(h, func(i, j int) bool { return h[i].Timestamp.Before(h[j].Timestamp) })
	latest := h[len(h)-1]

	change := func(ref *domain.DailySnapshot) *float64 {
		if ref == nil || ref.Date == latest.Date || ref.TotalValue == 0 {
			return nil
		}
		v := (latest.TotalValue - ref.TotalValue) / ref.TotalValue * 100
		return &v
	}

	var perf Performance
	now = now.UTC()
	perf.Daily = change(nearest(h, now.AddDate(0, 0, -1)))
	perf.Weekly = change(nearest(h, now.AddDate(0, 0, -7)))
	perf.Monthly = change(nearest(h, now.AddDate(0, 0, -30)))
	if len(h) > 1 {
		perf.AllTime = change(&h[0])
	}

	for _, s := range h {
		perf.HighWaterMark = math.Max(perf.HighWaterMark, s.TotalValue)
	}
	if perf.HighWaterMark > 0 {
		perf.Drawdown = (latest.TotalValue - perf.HighWaterMark) / perf.HighWaterMark * 100
	}
	return perf
}

func nearest(h []domain.DailySnapshot, target time.Time) *domain.DailySnapshot {
	day, _ := time.Parse(dateLayout, target.Format(dateLayout))
	var best *domain.DailySnapshot
	bestDiff := time.Duration(math.MaxInt64)
	for i := range h {
		d, err := time.Parse(dateLayout, h[i].Date)
		if err != nil {
			continue
		}
		diff := d.Sub(day)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = &h[i], diff
		}
	}
	return best
}
