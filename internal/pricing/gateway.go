package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// DefaultBatchSize is the number of concurrent quote requests.
const DefaultBatchSize = 5

// Gateway fans quote requests out to a QuoteSource and keeps the last good
// quote of every symbol in an optional PriceCache.
type Gateway struct {
	source    QuoteSource
	cache     domain.PriceCache
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewGateway creates a Gateway. cache may be nil.
func NewGateway(source QuoteSource, cache domain.PriceCache, batchSize int, logger *slog.Logger) *Gateway {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		source:    source,
		cache:     cache,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "pricing")),
		now:       time.Now,
	}
}

// FetchPrices quotes every non-cash symbol once. Failed symbols are omitted
// from the map; when any failed, the returned error wraps
// domain.ErrQuoteUnavailable and lists them, and the partial map is still
// valid.
func (g *Gateway) FetchPrices(ctx context.Context, symbols []string) (domain.PriceMap, error) {
	wanted := uniqueSymbols(symbols)
	prices := make(domain.PriceMap, len(wanted))
	if len(wanted) == 0 {
		return prices, nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	var eg errgroup.Group
	eg.SetLimit(g.batchSize)
	for _, sym := range wanted {
		eg.Go(func() error {
			price, err := g.source.Quote(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, sym)
				g.logger.DebugContext(ctx, "pricing: quote failed",
					slog.String("symbol", sym),
					slog.String("error", err.Error()),
				)
				return nil
			}
			prices[sym] = price
			return nil
		})
	}
	_ = eg.Wait()

	g.remember(ctx, prices)

	if len(failed) > 0 {
		sort.Strings(failed)
		return prices, fmt.Errorf("pricing: %d of %d quotes failed [%s]: %w",
			len(failed), len(wanted), strings.Join(failed, ","), domain.ErrQuoteUnavailable)
	}
	return prices, nil
}

// FetchWithFallback behaves like FetchPrices but fills failed symbols from
// the last known good quotes. It returns the symbols served stale; the error
// is non-nil only when some symbol has neither a live nor a cached quote.
func (g *Gateway) FetchWithFallback(ctx context.Context, symbols []string) (domain.PriceMap, []string, error) {
	prices, err := g.FetchPrices(ctx, symbols)
	if err == nil || g.cache == nil {
		return prices, nil, err
	}

	var missing []string
	for _, sym := range uniqueSymbols(symbols) {
		if _, ok := prices[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	cached, cerr := g.cache.GetPrices(ctx, missing)
	if cerr != nil {
		g.logger.WarnContext(ctx, "pricing: read cached quotes failed", slog.String("error", cerr.Error()))
		return prices, nil, err
	}

	var stale, still []string
	for _, sym := range missing {
		if p, ok := cached[sym]; ok && p > 0 {
			prices[sym] = p
			stale = append(stale, sym)
			continue
		}
		still = append(still, sym)
	}
	if len(still) > 0 {
		return prices, stale, fmt.Errorf("pricing: no quote for [%s]: %w", strings.Join(still, ","), domain.ErrQuoteUnavailable)
	}
	return prices, stale, nil
}

func (g *Gateway) remember(ctx context.Context, prices domain.PriceMap) {
	if g.cache == nil {
		return
	}
	ts := g.now()
	for sym, p := range prices {
		if err := g.cache.SetPrice(ctx, sym, p, ts); err != nil {
			g.logger.WarnContext(ctx, "pricing: cache quote failed",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// PollCallbacks receive the outcome of every polling round.
type PollCallbacks struct {
	OnUpdate       func(domain.PriceMap)
	OnSyncComplete func(time.Time)
	OnError        func(error)
}

// StartPolling fetches prices for symbols() immediately and then every
// interval until the returned cancel is called or ctx ends. A round that
// yields at least one price calls OnUpdate then OnSyncComplete; a round that
// yields none calls OnError. Rounds never overlap: a tick that arrives while
// a round is running is skipped. Errors never stop the schedule. cancel is
// idempotent and returns once no round is running.
func (g *Gateway) StartPolling(ctx context.Context, symbols func() []string, interval time.Duration, cb PollCallbacks) (cancel func()) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, stop := context.WithCancel(ctx)

	var (
		wg       sync.WaitGroup
		inFlight atomic.Bool
	)
	round := func() {
		if !inFlight.CompareAndSwap(false, true) {
			g.logger.DebugContext(ctx, "pricing: previous round still running, skipping")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer inFlight.Store(false)
			g.pollOnce(ctx, symbols(), cb)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		round()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				round()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			wg.Wait()
		})
	}
}

func (g *Gateway) pollOnce(ctx context.Context, symbols []string, cb PollCallbacks) {
	wanted := uniqueSymbols(symbols)
	if len(wanted) == 0 {
		return
	}
	prices, err := g.FetchPrices(ctx, wanted)
	if ctx.Err() != nil {
		return
	}
	if len(prices) == 0 {
		if err == nil {
			err = fmt.Errorf("pricing: empty round: %w", domain.ErrQuoteUnavailable)
		}
		g.logger.WarnContext(ctx, "pricing: polling round failed", slog.String("error", err.Error()))
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if err != nil {
		g.logger.InfoContext(ctx, "pricing: partial round",
			slog.Int("resolved", len(prices)),
			slog.String("error", err.Error()),
		)
	}
	if cb.OnUpdate != nil {
		cb.OnUpdate(prices)
	}
	if cb.OnSyncComplete != nil {
		cb.OnSyncComplete(g.now())
	}
}

// uniqueSymbols normalises, drops cash and blanks, and de-duplicates while
// keeping the first-seen order.
func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := domain.NormalizeSymbol(s)
		if sym == "" || sym == domain.CashSymbol || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// StaticSymbols adapts a fixed list for StartPolling.
func StaticSymbols(symbols []string) func() []string {
	cp := append([]string(nil), symbols...)
	return func() []string { return cp }
}
