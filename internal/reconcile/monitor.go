// Package reconcile detects staged orders that vanished from the ledger
// store because an out-of-band trade superseded them.
package reconcile

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// Default matching parameters.
const (
	DefaultWindow    = 5
	DefaultTolerance = 0.10
)

// Monitor matches vanished orders against recent journal entries.
type Monitor struct {
	// Window is how many of the most recent journal entries are searched.
	Window int
	// Tolerance is the accepted relative units difference, 0.10 = ±10%.
	Tolerance float64

	logger *slog.Logger
	now    func() time.Time
}

// NewMonitor creates a Monitor. Non-positive window or negative tolerance
// fall back to the defaults.
func NewMonitor(window int, tolerance float64, logger *slog.Logger) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		Window:    window,
		Tolerance: tolerance,
		logger:    logger.With(slog.String("component", "reconcile")),
		now:       time.Now,
	}
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Events holds one reconciliation event per superseded order.
	Events []domain.SystemEvent
	// Dropped lists every local order absent remotely, matched or not.
	Dropped []domain.PendingOrder
	// Kept is the authoritative pending set: the remote orders.
	Kept []domain.PendingOrder
}

// Reconcile diffs local against remote pending orders. For every local order
// missing remotely it searches the newest Window journal entries (journal in
// chronological order) for the same symbol and side with units within
// Tolerance; the newest match wins and yields a reconciliation event.
// Unmatched orders are dropped silently.
func (m *Monitor) Reconcile(id domain.AccountID, local, remote []domain.PendingOrder, journal []domain.JournalEntry) Result {
	res := Result{Kept: append([]domain.PendingOrder(nil), remote...)}
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, o := range remote {
		remoteIDs[o.ID] = struct{}{}
	}

	start := len(journal) - m.Window
	if start < 0 {
		start = 0
	}
	recent := journal[start:]

	for _, o := range local {
		if _, ok := remoteIDs[o.ID]; ok {
			continue
		}
		res.Dropped = append(res.Dropped, o)

		entry, err := m.match(o, recent)
		if err != nil {
			m.logger.Debug("reconcile: order dropped",
				slog.String("account", string(id)),
				slog.String("order", o.ID),
				slog.String("reason", err.Error()),
			)
			continue
		}
		order := o
		res.Events = append(res.Events, domain.SystemEvent{
			Kind:      domain.EventReconciliation,
			AccountID: id,
			Order:     &order,
			Entry:     &entry,
			Message: fmt.Sprintf("Pending %s %g %s @ %g was superseded by journal %s: %g @ %g",
				o.Type, o.Units, o.Symbol, o.Price, entry.ID, entry.UnitsOr(0), entry.PriceOr(0)),
			At: m.now().UTC(),
		})
	}
	return res
}

// match scans recent newest first.
func (m *Monitor) match(o domain.PendingOrder, recent []domain.JournalEntry) (domain.JournalEntry, error) {
	sym := domain.NormalizeSymbol(o.Symbol)
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		if domain.NormalizeSymbol(e.Symbol) != sym || string(e.Type) != string(o.Type) || e.Units == nil {
			continue
		}
		if o.Units <= 0 {
			continue
		}
		if math.Abs(*e.Units-o.Units)/o.Units <= m.Tolerance+1e-12 {
			return e.Clone(), nil
		}
	}
	return domain.JournalEntry{}, fmt.Errorf("order %s: %w", o.ID, domain.ErrReconciliationAmbiguous)
}
