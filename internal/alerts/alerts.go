// Package alerts tracks one-shot price alerts shared by all accounts.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/idgen"
)

// Book holds the alert list. It is safe for concurrent use.
type Book struct {
	mu     sync.Mutex
	alerts []domain.PriceAlert
	now    func() time.Time
}

// NewBook creates a Book seeded with alerts.
func NewBook(alerts []domain.PriceAlert, now func() time.Time) *Book {
	if now == nil {
		now = time.Now
	}
	b := &Book{now: now}
	b.Replace(alerts)
	return b
}

// Replace swaps in a new alert list, dropping invalid entries.
func (b *Book) Replace(alerts []domain.PriceAlert) {
	out := make([]domain.PriceAlert, 0, len(alerts))
	for _, a := range alerts {
		if a.Validate() == nil {
			a.Symbol = domain.NormalizeSymbol(a.Symbol)
			out = append(out, a)
		}
	}
	b.mu.Lock()
	b.alerts = out
	b.mu.Unlock()
}

// All returns a copy of every alert in creation order.
func (b *Book) All() []domain.PriceAlert {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneAlerts(b.alerts)
}

// Active returns the alerts still waiting to fire.
func (b *Book) Active() []domain.PriceAlert {
	return b.filter(func(a domain.PriceAlert) bool { return a.Active && !a.Triggered })
}

// Triggered returns the alerts that have fired.
func (b *Book) Triggered() []domain.PriceAlert {
	return b.filter(func(a domain.PriceAlert) bool { return a.Triggered })
}

// Symbols returns the distinct symbols of active alerts, sorted.
func (b *Book) Symbols() []string {
	seen := map[string]bool{}
	for _, a := range b.Active() {
		seen[a.Symbol] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Add creates an active alert. An empty note gets a generated description.
func (b *Book) Add(symbol string, cond domain.AlertCondition, price float64, note string) (domain.PriceAlert, error) {
	sym := domain.NormalizeSymbol(symbol)
	if strings.TrimSpace(note) == "" {
		note = fmt.Sprintf("%s %s $%s", sym, cond, trimFloat(price))
	}
	a := domain.PriceAlert{
		ID:        idgen.Prefixed("alert"),
		Symbol:    sym,
		Condition: cond,
		Price:     price,
		Note:      note,
		Active:    true,
		CreatedAt: b.now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return domain.PriceAlert{}, fmt.Errorf("alerts: add: %w", err)
	}
	b.mu.Lock()
	b.alerts = append(b.alerts, a)
	b.mu.Unlock()
	return a, nil
}

// Remove deletes an alert. It reports whether one was removed.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, a := range b.alerts {
		if a.ID == id {
			b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// Toggle flips the active flag of an alert.
func (b *Book) Toggle(id string) error {
	return b.update(id, func(a *domain.PriceAlert) { a.Active = !a.Active })
}

// Reset re-arms a triggered alert.
func (b *Book) Reset(id string) error {
	return b.update(id, func(a *domain.PriceAlert) {
		a.Triggered = false
		a.TriggeredAt = nil
		a.Active = true
	})
}

// ClearTriggered removes every fired alert and returns how many were removed.
func (b *Book) ClearTriggered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.alerts[:0]
	removed := 0
	for _, a := range b.alerts {
		if a.Triggered {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	b.alerts = kept
	return removed
}

// Check fires every active alert whose condition holds for prices: above
// fires at price >= threshold, below at price <= threshold. Each alert fires
// once until Reset. It returns the alerts fired by this call.
func (b *Book) Check(prices domain.PriceMap) []domain.PriceAlert {
	b.mu.Lock()
	defer b.mu.Unlock()

	var fired []domain.PriceAlert
	for i := range b.alerts {
		a := &b.alerts[i]
		if !a.Active || a.Triggered {
			continue
		}
		price, ok := prices[a.Symbol]
		if !ok || math.IsNaN(price) {
			continue
		}
		hit := (a.Condition == domain.AlertAbove && price >= a.Price) ||
			(a.Condition == domain.AlertBelow && price <= a.Price)
		if !hit {
			continue
		}
		at := b.now().UTC()
		a.Triggered = true
		a.TriggeredAt = &at
		fired = append(fired, cloneAlert(*a))
	}
	return fired
}

func (b *Book) update(id string, fn func(*domain.PriceAlert)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.alerts {
		if b.alerts[i].ID == id {
			fn(&b.alerts[i])
			return nil
		}
	}
	return fmt.Errorf("alerts: %q: %w", id, domain.ErrNotFound)
}

func (b *Book) filter(keep func(domain.PriceAlert) bool) []domain.PriceAlert {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.PriceAlert
	for _, a := range b.alerts {
		if keep(a) {
			out = append(out, cloneAlert(a))
		}
	}
	return out
}

func cloneAlert(a domain.PriceAlert) domain.PriceAlert {
	if a.TriggeredAt != nil {
		t := *a.TriggeredAt
		a.TriggeredAt = &t
	}
	return a
}

func cloneAlerts(in []domain.PriceAlert) []domain.PriceAlert {
	out := make([]domain.PriceAlert, len(in))
	for i, a := range in {
		out[i] = cloneAlert(a)
	}
	return out
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
}
