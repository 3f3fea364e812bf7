package ledger

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/idgen"
)

// AddOrder stages a pending order. Missing ID, status and date are filled
// in. An order whose ID is already pending is ignored and the existing order
// is returned.
func (a *Account) AddOrder(order domain.PendingOrder) (domain.PendingOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	order.Symbol = domain.NormalizeSymbol(order.Symbol)
	order.Type = domain.OrderSide(strings.ToLower(string(order.Type)))
	if order.ID == "" {
		order.ID = fmt.Sprintf("%s-%s-%s", order.Symbol, order.Type, idgen.New())
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusOpen
	}
	if order.Date == "" {
		order.Date = a.today()
	}
	if err := order.Validate(); err != nil {
		return domain.PendingOrder{}, fmt.Errorf("ledger: add order: %w", err)
	}
	if i := a.orderIndex(order.ID); i >= 0 {
		return a.state.PendingOrders[i], nil
	}
	a.state.PendingOrders = append(a.state.PendingOrders, order)
	return order, nil
}

// KillOrder cancels a pending order by removing it. It reports whether an
// order was removed.
func (a *Account) KillOrder(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeOrder(id)
}

// FillOrder executes a pending order at its limit price. The resulting
// journal entry reuses the order ID and the order is removed. Unknown IDs
// fail with domain.ErrNotFound.
func (a *Account) FillOrder(id string) (TradeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.orderIndex(id)
	if i < 0 {
		return TradeResult{}, fmt.Errorf("ledger: fill order %q: %w", id, domain.ErrNotFound)
	}
	o := a.state.PendingOrders[i]
	entryType := domain.EntryBuy
	if o.Type == domain.OrderSideSell {
		entryType = domain.EntrySell
	}
	res, err := a.executeLocked(domain.JournalEntry{
		ID:     o.ID,
		Type:   entryType,
		Symbol: o.Symbol,
		Units:  domain.Float(o.Units),
		Price:  domain.Float(o.Price),
		Notes:  fmt.Sprintf("Filled order %s %g %s @ %g", o.Type, o.Units, o.Symbol, o.Price),
	})
	if err != nil {
		return TradeResult{}, fmt.Errorf("ledger: fill order %q: %w", id, err)
	}
	return res, nil
}

// HasPendingOrder reports whether id is currently pending.
func (a *Account) HasPendingOrder(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orderIndex(id) >= 0
}

// PendingOrders returns a copy of the pending orders.
func (a *Account) PendingOrders() []domain.PendingOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.PendingOrder(nil), a.state.PendingOrders...)
}

// ReplaceOrders swaps the pending set, used after reconciliation.
func (a *Account) ReplaceOrders(orders []domain.PendingOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.PendingOrders = append([]domain.PendingOrder(nil), orders...)
}
