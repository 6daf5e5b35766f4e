package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/metrics"
	"github.com/tickerwatch/tickerwatch/internal/provider"
)

// fakeProvider counts calls and delegates to fn.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(symbol core.Symbol, days int) (core.PriceSeries, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ClosingPrices(ctx context.Context, symbol core.Symbol, days int) (core.PriceSeries, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(symbol, days)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ascending(n int) core.PriceSeries {
	series := make(core.PriceSeries, n)
	for i := range series {
		series[i] = float64(i + 1)
	}
	return series
}

func newTestSupervisor(t *testing.T, p provider.Provider, benchmark core.Symbol) (*Supervisor, *BenchmarkCache) {
	t.Helper()
	bench := NewBenchmarkCache(p, benchmark, metrics.NewRegistry(), nil)
	return New(p, bench, metrics.NewRegistry(), nil), bench
}

func TestProviderInterface(t *testing.T) {
	var _ provider.Provider = (*fakeProvider)(nil)
}

func TestSupervisor_Fetch(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		return ascending(45), nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sup.Start(ctx)

	series, err := sup.Fetch(ctx, "AAPL", 45)
	require.NoError(t, err)
	assert.Len(t, series, 45)
	assert.Equal(t, 1, p.callCount())
}

func TestSupervisor_Fetch_Error(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		return nil, core.ErrProviderFailed
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sup.Start(ctx)

	_, err := sup.Fetch(ctx, "AAPL", 45)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderFailed)
}

func TestSupervisor_Process(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		return ascending(45), nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sup.Start(ctx)

	result, err := sup.Process(ctx, ProcessRequest{
		Symbol:      "AAPL",
		PeriodStart: "2024-01-01",
		Series:      ascending(45),
		Days:        45,
		Window:      30,
	})
	require.NoError(t, err)

	assert.Equal(t, core.Symbol("AAPL"), result.Symbol)
	assert.Equal(t, "2024-01-01", result.PeriodStart)
	assert.Equal(t, 45.0, result.ClosingPrice)
	assert.InDelta(t, 4400.0, result.PriceDifference, 1e-9) // (45-1)/1*100
	assert.Equal(t, 1.0, result.Min)
	assert.Equal(t, 45.0, result.Max)
	assert.InDelta(t, 30.5, result.SimpleMovingAverage, 1e-9) // mean of 16..45
}

func TestSupervisor_Process_WindowTooLarge(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		return ascending(10), nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sup.Start(ctx)

	_, err := sup.Process(ctx, ProcessRequest{
		Symbol: "AAPL",
		Series: ascending(10),
		Days:   10,
		Window: 30,
	})
	assert.ErrorIs(t, err, core.ErrWindowTooLarge)
	assert.Equal(t, 0, p.callCount(), "validation failure must not touch the provider")
}

func TestSupervisor_Process_ZeroBasePrice(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		return nil, nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sup.Start(ctx)

	series := ascending(45)
	series[0] = 0
	_, err := sup.Process(ctx, ProcessRequest{
		Symbol: "AAPL",
		Series: series,
		Days:   45,
		Window: 30,
	})
	assert.ErrorIs(t, err, core.ErrZeroBasePrice)
}

func TestSupervisor_Process_Relative(t *testing.T) {
	// Benchmark doubles (+100%), stock goes 1 -> 45 (+4400%).
	p := &fakeProvider{fn: func(symbol core.Symbol, days int) (core.PriceSeries, error) {
		if symbol == "^GSPC" {
			bench := make(core.PriceSeries, 45)
			for i := range bench {
				bench[i] = 100
			}
			bench[0] = 50
			bench[44] = 100
			return bench, nil
		}
		return ascending(45), nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sup.Start(ctx)

	result, err := sup.Process(ctx, ProcessRequest{
		Symbol:      "AAPL",
		PeriodStart: "2024-01-01",
		Series:      ascending(45),
		Days:        45,
		Window:      30,
		Relative:    true,
	})
	require.NoError(t, err)
	assert.InDelta(t, 4300.0, result.PriceDifference, 1e-9) // 4400 - 100
}

func TestSupervisor_RestartAfterCrash(t *testing.T) {
	var mu sync.Mutex
	crashed := false
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		mu.Lock()
		defer mu.Unlock()
		if !crashed {
			crashed = true
			panic("simulated provider bug")
		}
		return ascending(45), nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sup.Start(ctx)

	// First request crashes the fetcher; the caller still gets an error.
	_, err := sup.Fetch(ctx, "AAPL", 45)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrActorCrashed)

	// The supervisor restarts the actor and serves the next request.
	series, err := sup.Fetch(ctx, "AAPL", 45)
	require.NoError(t, err)
	assert.Len(t, series, 45)
}

func TestBenchmarkCache_FetchedOnce(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		time.Sleep(10 * time.Millisecond) // widen the race window
		return ascending(45), nil
	}}
	cache := NewBenchmarkCache(p, "^GSPC", metrics.NewRegistry(), nil)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := cache.Get(ctx, 45)
			assert.NoError(t, err)
			assert.Len(t, series, 45)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.callCount(), "concurrent callers must share one provider call")
}

func TestBenchmarkCache_KeyedByPeriodLength(t *testing.T) {
	p := &fakeProvider{fn: func(_ core.Symbol, days int) (core.PriceSeries, error) {
		return ascending(days), nil
	}}
	cache := NewBenchmarkCache(p, "^GSPC", metrics.NewRegistry(), nil)

	ctx := context.Background()
	a, err := cache.Get(ctx, 45)
	require.NoError(t, err)
	b, err := cache.Get(ctx, 90)
	require.NoError(t, err)
	c, err := cache.Get(ctx, 45)
	require.NoError(t, err)

	assert.Len(t, a, 45)
	assert.Len(t, b, 90)
	assert.Len(t, c, 45)
	assert.Equal(t, 2, p.callCount(), "one fetch per distinct period length")
}

func TestBenchmarkCache_RetriesAfterError(t *testing.T) {
	var mu sync.Mutex
	failFirst := true
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		mu.Lock()
		defer mu.Unlock()
		if failFirst {
			failFirst = false
			return nil, errors.New("transient outage")
		}
		return ascending(45), nil
	}}
	cache := NewBenchmarkCache(p, "^GSPC", metrics.NewRegistry(), nil)

	ctx := context.Background()
	_, err := cache.Get(ctx, 45)
	require.Error(t, err)

	series, err := cache.Get(ctx, 45)
	require.NoError(t, err)
	assert.Len(t, series, 45)
	assert.Equal(t, 2, p.callCount())
}

func TestBenchmarkCache_RetriesAfterCrash(t *testing.T) {
	var mu sync.Mutex
	crashFirst := true
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		mu.Lock()
		defer mu.Unlock()
		if crashFirst {
			crashFirst = false
			panic("simulated provider bug")
		}
		return ascending(45), nil
	}}
	cache := NewBenchmarkCache(p, "^GSPC", metrics.NewRegistry(), nil)

	// First fetch crashes; recover like the supervisor would around the
	// processor actor.
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the first Get to panic")
			}
		}()
		cache.Get(context.Background(), 45)
	}()

	// The crashed entry must not wedge the key: a later caller gets a
	// fresh fetch instead of waiting on a channel that never closes.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	series, err := cache.Get(ctx, 45)
	require.NoError(t, err)
	assert.Len(t, series, 45)
	assert.Equal(t, 2, p.callCount())
}

func TestSupervisor_Fetch_ContextCancelled(t *testing.T) {
	p := &fakeProvider{fn: func(core.Symbol, int) (core.PriceSeries, error) {
		return ascending(45), nil
	}}
	sup, _ := newTestSupervisor(t, p, "^GSPC")

	// Never started: the request must not hang once ctx is cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sup.Fetch(ctx, "AAPL", 45)
	assert.ErrorIs(t, err, context.Canceled)
}
