// Package ledger holds per-account portfolio state and applies trades, orders
// and price updates to it. Every mutation on an Account is serialized through
// its mutex and ends with a synchronous recompute of the derived fields.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// DefaultFeePercent is the fee charged on the gross value of every trade.
const DefaultFeePercent = 1.0

// Options configures an Account.
type Options struct {
	// FeePercent is the trade fee in percent of gross value (1.0 = 1%).
	FeePercent float64
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FeePercent < 0 {
		o.FeePercent = DefaultFeePercent
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// DefaultOptions returns options with the standard 1% fee.
func DefaultOptions() Options {
	return Options{FeePercent: DefaultFeePercent, Now: time.Now}
}

// Account is the single-writer handle for one account's state.
type Account struct {
	mu    sync.Mutex
	state domain.AccountState
	opts  Options
	fee   decimal.Decimal
}

// NewAccount takes ownership of a copy of state and recomputes its derived
// fields.
func NewAccount(state domain.AccountState, opts Options) *Account {
	opts = opts.withDefaults()
	a := &Account{
		state: state.Clone(),
		opts:  opts,
		fee:   decimal.NewFromFloat(opts.FeePercent).Div(decimal.NewFromInt(100)),
	}
	a.recompute()
	return a
}

// ID returns the account identifier.
func (a *Account) ID() domain.AccountID {
	return a.state.ID
}

// FeeRate returns the fee as a fraction of gross value.
func (a *Account) FeeRate() float64 {
	return a.fee.InexactFloat64()
}

// Snapshot returns a deep copy of the current state.
func (a *Account) Snapshot() domain.AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Update runs fn with exclusive access to the state and recomputes derived
// fields afterwards. fn must not retain the pointer.
func (a *Account) Update(fn func(s *domain.AccountState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.state)
	a.recompute()
}

// Reset reinitialises the account in place from state and marks the stored
// copy for a wipe on the next ledger sync.
func (a *Account) Reset(state domain.AccountState) {
	_, _ = a.ReplaceWith(func(domain.AccountState) (domain.AccountState, error) {
		return state, nil
	})
}

// ReplaceWith swaps the whole state for build(current) under the account
// lock, so no mutation can land between reading and replacing. The stored
// copy is marked for a wipe on the next ledger sync. A build error leaves
// the account untouched.
func (a *Account) ReplaceWith(build func(cur domain.AccountState) (domain.AccountState, error)) (domain.AccountState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := build(a.state.Clone())
	if err != nil {
		return domain.AccountState{}, err
	}
	next = next.Clone()
	next.ID = a.state.ID
	next.Tombstones = domain.Tombstones{Reset: true, Epoch: a.state.Tombstones.Epoch + 1}
	a.state = next
	a.recompute()
	return a.state.Clone(), nil
}

// Acknowledge clears the tombstones a successful ledger sync carried. A
// reset is only cleared when no newer one happened since.
func (a *Account) Acknowledge(synced domain.Tombstones) {
	if synced.Empty() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t := &a.state.Tombstones
	if synced.Reset && synced.Epoch == t.Epoch {
		t.Reset = false
	}
	kept := t.Journal[:0]
	for _, id := range t.Journal {
		if !synced.HasJournal(id) {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	t.Journal = kept
}

// recompute refreshes value, gain/loss and allocation of every position.
// Callers must hold a.mu.
func (a *Account) recompute() {
	recomputePositions(a.state.Positions)
}

// recomputePositions normalises cash and derives value, gain/loss and
// allocation so that allocations sum to 100 whenever the total is positive.
func recomputePositions(positions []domain.Position) {
	var total float64
	for i := range positions {
		p := &positions[i]
		p.Symbol = domain.NormalizeSymbol(p.Symbol)
		if p.IsCash() {
			p.CurrentPrice = 1
			p.CurrentValue = p.Units
			p.TotalCost = p.Units
			p.GainLoss = 0
		} else {
			p.CurrentValue = p.Units * p.CurrentPrice
			p.GainLoss = p.CurrentValue - p.TotalCost
		}
		total += p.CurrentValue
	}
	for i := range positions {
		if total > 0 {
			positions[i].Allocation = positions[i].CurrentValue / total * 100
		} else {
			positions[i].Allocation = 0
		}
	}
}

// Recompute derives value, gain/loss and allocation for a detached slice of
// positions, the same way an Account does after every mutation.
func Recompute(positions []domain.Position) {
	recomputePositions(positions)
}

func (a *Account) positionIndex(symbol string) int {
	sym := domain.NormalizeSymbol(symbol)
	for i, p := range a.state.Positions {
		if domain.NormalizeSymbol(p.Symbol) == sym {
			return i
		}
	}
	return -1
}

func (a *Account) journalIndex(id string) int {
	for i, e := range a.state.Journal {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// appendJournal records entry and forgets any pending deletion of its ID.
// Callers must hold a.mu.
func (a *Account) appendJournal(entry domain.JournalEntry) {
	a.state.Journal = append(a.state.Journal, entry)
	t := &a.state.Tombstones
	for i, id := range t.Journal {
		if id == entry.ID {
			t.Journal = append(t.Journal[:i:i], t.Journal[i+1:]...)
			if len(t.Journal) == 0 {
				t.Journal = nil
			}
			break
		}
	}
}

func (a *Account) orderIndex(id string) int {
	for i, o := range a.state.PendingOrders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (a *Account) removeOrder(id string) bool {
	i := a.orderIndex(id)
	if i < 0 {
		return false
	}
	a.state.PendingOrders = append(a.state.PendingOrders[:i], a.state.PendingOrders[i+1:]...)
	return true
}

func (a *Account) today() string {
	return a.opts.Now().UTC().Format("2006-01-02")
}
