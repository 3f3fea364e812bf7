package ledger

import (
	"math"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// ApplyPrices updates the price of every held symbol present in prices and
// recomputes the account once. Cash, unknown symbols and non-positive or
// non-finite quotes are ignored. It returns the number of positions updated.
func (a *Account) ApplyPrices(prices domain.PriceMap) int {
	if len(prices) == 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var n int
	for i := range a.state.Positions {
		p := &a.state.Positions[i]
		if p.IsCash() {
			continue
		}
		price, ok := prices[domain.NormalizeSymbol(p.Symbol)]
		if !ok || !(price > 0) || math.IsInf(price, 0) {
			continue
		}
		p.CurrentPrice = price
		n++
	}
	if n > 0 {
		a.recompute()
	}
	return n
}

// Symbols returns the non-cash symbols currently held.
func (a *Account) Symbols() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Symbols()
}
