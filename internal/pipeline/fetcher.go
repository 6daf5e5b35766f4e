package pipeline

import (
	"context"
	"time"

	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/metrics"
	"github.com/tickerwatch/tickerwatch/internal/provider"
	"go.uber.org/zap"
)

type fetchRequest struct {
	id     string
	symbol core.Symbol
	days   int
	reply  chan fetchReply
}

type fetchReply struct {
	series core.PriceSeries
	err    error
}

// fetcher wraps the provider call. One provider call per request, no
// request-level retry: recovery from persistent failure is the
// supervisor's job.
type fetcher struct {
	provider provider.Provider
	metrics  *metrics.Registry
	log      *zap.Logger
}

func (f *fetcher) handle(ctx context.Context, req fetchRequest) fetchReply {
	start := time.Now()
	series, err := f.provider.ClosingPrices(ctx, req.symbol, req.days)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	f.metrics.FetchCompleted(status, elapsed.Seconds())

	if err != nil {
		f.log.Warn("fetch failed",
			zap.String("request_id", req.id),
			zap.String("symbol", req.symbol.String()),
			zap.Error(err),
		)
		return fetchReply{err: err}
	}

	f.log.Debug("fetch completed",
		zap.String("request_id", req.id),
		zap.String("symbol", req.symbol.String()),
		zap.Int("prices", len(series)),
		zap.Duration("elapsed", elapsed),
	)
	return fetchReply{series: series}
}
