package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

type quote struct {
	price float64
	ts    time.Time
}

// PriceCache implements domain.PriceCache with a map.
type PriceCache struct {
	mu     sync.RWMutex
	quotes map[string]quote
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{quotes: make(map[string]quote)}
}

// SetPrice stores the latest quote for symbol.
func (c *PriceCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[domain.NormalizeSymbol(symbol)] = quote{price: price, ts: ts}
	return nil
}

// GetPrice returns the cached quote for symbol or domain.ErrNotFound.
func (c *PriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[domain.NormalizeSymbol(symbol)]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("memory: quote %s: %w", symbol, domain.ErrNotFound)
	}
	return q.price, q.ts, nil
}

// GetPrices returns the cached quotes that exist among symbols.
func (c *PriceCache) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		sym := domain.NormalizeSymbol(s)
		if q, ok := c.quotes[sym]; ok {
			out[sym] = q.price
		}
	}
	return out, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
