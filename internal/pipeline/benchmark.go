package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/metrics"
	"github.com/tickerwatch/tickerwatch/internal/provider"
	"go.uber.org/zap"
)

// BenchmarkCache memoizes the market-index price series consulted when
// computing benchmark-relative performance. Entries are keyed by period
// length in days, so ticks requesting different periods never observe a
// series of the wrong length. Within one key the first successful fetch
// wins: concurrent callers share a single provider call, and a failed
// fetch is retried on the next request rather than cached forever.
type BenchmarkCache struct {
	symbol   core.Symbol
	provider provider.Provider
	metrics  *metrics.Registry
	log      *zap.Logger

	mu      sync.Mutex
	entries map[int]*benchEntry
}

type benchEntry struct {
	ready  chan struct{} // closed once the fetch attempt completes
	series core.PriceSeries
	err    error
}

// NewBenchmarkCache creates a cache for the given index symbol.
func NewBenchmarkCache(p provider.Provider, symbol core.Symbol, m *metrics.Registry, log *zap.Logger) *BenchmarkCache {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &BenchmarkCache{
		symbol:   symbol,
		provider: p,
		metrics:  m,
		log:      log,
		entries:  make(map[int]*benchEntry),
	}
}

// Symbol returns the benchmark index symbol.
func (c *BenchmarkCache) Symbol() core.Symbol {
	return c.symbol
}

// Get returns the benchmark series for the given period length, fetching
// it on first need. Concurrent callers for the same period length block
// on the one in-flight fetch instead of issuing duplicates.
func (c *BenchmarkCache) Get(ctx context.Context, days int) (core.PriceSeries, error) {
	c.mu.Lock()
	e, ok := c.entries[days]
	if ok {
		select {
		case <-e.ready:
			if e.err != nil {
				// The previous attempt failed; start a fresh one.
				ok = false
			}
		default:
			// Fetch in flight; fall through and wait on it.
		}
	}
	if !ok {
		e = &benchEntry{ready: make(chan struct{})}
		c.entries[days] = e
		c.mu.Unlock()

		c.metrics.BenchmarkFetched()
		c.log.Debug("fetching benchmark series",
			zap.String("symbol", c.symbol.String()),
			zap.Int("days", days),
		)
		c.fill(ctx, days, e)
		return e.series, e.err
	}
	c.mu.Unlock()

	select {
	case <-e.ready:
		return e.series, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fill runs the provider fetch for one entry. The ready channel is
// closed on every exit, panic included: an entry whose channel never
// closes would block all later callers for that period length, even
// after the supervisor restarts the crashed actor. On panic the error
// is recorded first, so the retry-on-error path heals the key, and the
// panic is then rethrown for the supervisor to see.
func (c *BenchmarkCache) fill(ctx context.Context, days int, e *benchEntry) {
	defer func() {
		if r := recover(); r != nil {
			e.err = core.WrapError(core.ErrActorCrashed,
				fmt.Errorf("benchmark fetch: %v", r))
			close(e.ready)
			panic(r)
		}
	}()
	e.series, e.err = c.provider.ClosingPrices(ctx, c.symbol, days)
	close(e.ready)
}
