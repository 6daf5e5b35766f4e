package pipeline

import (
	"context"
	"fmt"

	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/stats"
	"go.uber.org/zap"
)

// ProcessRequest carries one fetched price series into the processor.
type ProcessRequest struct {
	Symbol      core.Symbol
	PeriodStart string // YYYY-MM-DD
	Series      core.PriceSeries
	Days        int // period length, keys the benchmark lookup
	Window      int // SMA window size
	Relative    bool
}

type processRequest struct {
	id    string
	req   ProcessRequest
	reply chan processReply
}

type processReply struct {
	result core.StatResult
	err    error
}

// processor turns a price series into a StatResult, consulting the
// memoized benchmark when relative mode is on.
type processor struct {
	bench *BenchmarkCache
	log   *zap.Logger
}

func (p *processor) handle(ctx context.Context, msg processRequest) processReply {
	req := msg.req

	// Validate up front: the stats functions themselves return seed or
	// non-finite values instead of errors, so domain errors are raised
	// at this boundary.
	if len(req.Series) < req.Window {
		return processReply{err: core.WrapError(core.ErrWindowTooLarge,
			fmt.Errorf("%s: %d prices, window %d", req.Symbol, len(req.Series), req.Window))}
	}
	if req.Series[0] == 0 {
		return processReply{err: core.WrapError(core.ErrZeroBasePrice,
			fmt.Errorf("%s: percent change undefined", req.Symbol))}
	}

	diff, _, err := stats.PriceDiff(req.Series)
	if err != nil {
		return processReply{err: err}
	}

	if req.Relative {
		bench, err := p.bench.Get(ctx, req.Days)
		if err != nil {
			return processReply{err: core.WrapError(core.ErrProviderFailed,
				fmt.Errorf("benchmark %s: %w", p.bench.Symbol(), err))}
		}
		diff, err = stats.RelativeDiff(req.Series, bench)
		if err != nil {
			return processReply{err: err}
		}
	}

	averages := stats.NWindowSMA(req.Window, req.Series)
	if len(averages) == 0 {
		// Unreachable after the window check above, but never index an
		// empty slice on faith.
		return processReply{err: core.WrapError(core.ErrWindowTooLarge,
			fmt.Errorf("%s: no SMA values", req.Symbol))}
	}

	closing, _ := req.Series.Last()
	result := core.StatResult{
		Symbol:              req.Symbol,
		PeriodStart:         req.PeriodStart,
		ClosingPrice:        closing,
		PriceDifference:     diff,
		Min:                 stats.Min(req.Series),
		Max:                 stats.Max(req.Series),
		SimpleMovingAverage: averages[len(averages)-1],
	}

	p.log.Debug("processed series",
		zap.String("request_id", msg.id),
		zap.String("symbol", req.Symbol.String()),
		zap.Float64("change_pct", diff),
	)
	return processReply{result: result}
}
