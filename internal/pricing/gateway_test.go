package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

type fakeSource struct {
	mu       sync.Mutex
	prices   map[string]float64
	calls    map[string]int
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeSource(prices map[string]float64) *fakeSource {
	return &fakeSource{prices: prices, calls: map[string]int{}}
}

func (f *fakeSource) Quote(ctx context.Context, symbol string) (float64, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("no quote")
	}
	return p, nil
}

func (f *fakeSource) set(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

type memCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (c *memCache) SetPrice(_ context.Context, symbol string, price float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = map[string]float64{}
	}
	c.prices[symbol] = price
	return nil
}

func (c *memCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Time{}, nil
}

func (c *memCache) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, s := range symbols {
		if p, _, err := c.GetPrice(ctx, s); err == nil {
			out[s] = p
		}
	}
	return out, nil
}

func TestFetchPricesPartial(t *testing.T) {
	t.Parallel()
	src := newFakeSource(map[string]float64{"SUI": 1, "LINK": 9})
	g := NewGateway(src, nil, 0, nil)

	prices, err := g.FetchPrices(context.Background(), []string{"sui", "LINK", "usd", "", "DOGE", "SUI"})
	require.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.ErrorContains(t, err, "DOGE")
	assert.Equal(t, domain.PriceMap{"SUI": 1, "LINK": 9}, prices)
	assert.Equal(t, 1, src.calls["SUI"])
	assert.Zero(t, src.calls["USD"])
}

func TestFetchPricesBoundedConcurrency(t *testing.T) {
	t.Parallel()
	prices := map[string]float64{}
	var symbols []string
	for _, s := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		prices[s] = 1
		symbols = append(symbols, s)
	}
	src := newFakeSource(prices)
	src.delay = 10 * time.Millisecond
	g := NewGateway(src, nil, 5, nil)

	got, err := g.FetchPrices(context.Background(), symbols)
	require.NoError(t, err)
	assert.Len(t, got, 12)
	assert.LessOrEqual(t, src.maxSeen.Load(), int32(5))
}

func TestFetchWithFallback(t *testing.T) {
	t.Parallel()
	src := newFakeSource(map[string]float64{"SUI": 1.2, "LINK": 9})
	cache := &memCache{}
	g := NewGateway(src, cache, 5, nil)
	ctx := context.Background()

	_, err := g.FetchPrices(ctx, []string{"SUI", "LINK"})
	require.NoError(t, err)
	assert.Equal(t, 9.0, cache.prices["LINK"])

	src.mu.Lock()
	delete(src.prices, "LINK")
	src.mu.Unlock()

	prices, stale, err := g.FetchWithFallback(ctx, []string{"SUI", "LINK", "NEW"})
	require.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.Equal(t, []string{"LINK"}, stale)
	assert.Equal(t, domain.PriceMap{"SUI": 1.2, "LINK": 9}, prices)

	prices, stale, err = g.FetchWithFallback(ctx, []string{"SUI", "LINK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"LINK"}, stale)
	assert.Len(t, prices, 2)
}

func TestStartPollingRecoversFromErrors(t *testing.T) {
	t.Parallel()
	src := newFakeSource(map[string]float64{})
	g := NewGateway(src, nil, 5, nil)

	var (
		errs    atomic.Int32
		updates atomic.Int32
		syncs   atomic.Int32
	)
	cancel := g.StartPolling(context.Background(), StaticSymbols([]string{"SUI"}), 10*time.Millisecond, PollCallbacks{
		OnUpdate: func(p domain.PriceMap) {
			if p["SUI"] == 2 {
				updates.Add(1)
			}
		},
		OnSyncComplete: func(time.Time) { syncs.Add(1) },
		OnError: func(err error) {
			if errors.Is(err, domain.ErrQuoteUnavailable) {
				errs.Add(1)
			}
		},
	})
	defer cancel()

	require.Eventually(t, func() bool { return errs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	src.set("SUI", 2)
	require.Eventually(t, func() bool { return updates.Load() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.GreaterOrEqual(t, syncs.Load(), updates.Load())
	cancel()
}

func TestStartPollingImmediateAndNoOverlap(t *testing.T) {
	t.Parallel()
	src := newFakeSource(map[string]float64{"SUI": 1})
	src.delay = 60 * time.Millisecond
	g := NewGateway(src, nil, 5, nil)

	var rounds atomic.Int32
	cancel := g.StartPolling(context.Background(), StaticSymbols([]string{"SUI"}), 5*time.Millisecond, PollCallbacks{
		OnUpdate: func(domain.PriceMap) { rounds.Add(1) },
	})

	require.Eventually(t, func() bool { return rounds.Load() >= 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	cancel()

	src.mu.Lock()
	calls := src.calls["SUI"]
	src.mu.Unlock()
	assert.Equal(t, int32(1), src.maxSeen.Load())
	assert.LessOrEqual(t, calls, 4)
}
