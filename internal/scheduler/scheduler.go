// Package scheduler drives the polling loop: one tick walks the symbol
// list in order through the fetch/process pipeline and prints a row per
// symbol, then the loop sleeps for the configured interval.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/metrics"
	"github.com/tickerwatch/tickerwatch/internal/pipeline"
	"go.uber.org/zap"
)

// Config holds the loop parameters, already validated by the caller.
type Config struct {
	Symbols     []core.Symbol
	PeriodStart string // YYYY-MM-DD
	Days        int    // period length
	Window      int    // SMA window size
	Interval    time.Duration
	Relative    bool
	NoHeaders   bool

	// ExitOnError stops the loop on the first fetch/process failure
	// instead of logging and moving to the next symbol.
	ExitOnError bool
}

// Scheduler owns the Ticking/Sleeping loop.
type Scheduler struct {
	cfg     Config
	pipe    *pipeline.Supervisor
	out     io.Writer
	metrics *metrics.Registry
	log     *zap.Logger
}

// New creates a scheduler writing result rows to out.
func New(cfg Config, pipe *pipeline.Supervisor, out io.Writer, m *metrics.Registry, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Scheduler{
		cfg:     cfg,
		pipe:    pipe,
		out:     out,
		metrics: m,
		log:     log,
	}
}

// Run executes the polling loop until ctx is cancelled. The period
// precondition is enforced once, before any provider call.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.Days <= s.cfg.Window {
		return core.WrapError(core.ErrPeriodTooShort,
			fmt.Errorf("period %dd, window %d", s.cfg.Days, s.cfg.Window))
	}

	if !s.cfg.NoHeaders {
		fmt.Fprintln(s.out, core.Header(s.cfg.Window))
	}

	s.log.Info("entering polling loop",
		zap.Int("symbols", len(s.cfg.Symbols)),
		zap.Int("days", s.cfg.Days),
		zap.Duration("interval", s.cfg.Interval),
	)

	for {
		if err := s.tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			s.log.Info("polling loop stopped")
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// tick walks the symbol list in its given order. Emission order always
// matches input order: each symbol is fetched, processed and printed
// before the next one starts.
func (s *Scheduler) tick(ctx context.Context) error {
	start := time.Now()

	for _, symbol := range s.cfg.Symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := s.runSymbol(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.cfg.ExitOnError {
				return err
			}
			s.log.Warn("skipping symbol this tick",
				zap.String("symbol", symbol.String()),
				zap.Error(err),
			)
			continue
		}

		fmt.Fprintln(s.out, result.Row())
		s.metrics.RowEmitted()
	}

	s.metrics.TickCompleted(time.Since(start).Seconds())
	return nil
}

func (s *Scheduler) runSymbol(ctx context.Context, symbol core.Symbol) (core.StatResult, error) {
	series, err := s.pipe.Fetch(ctx, symbol, s.cfg.Days)
	if err != nil {
		return core.StatResult{}, err
	}

	return s.pipe.Process(ctx, pipeline.ProcessRequest{
		Symbol:      symbol,
		PeriodStart: s.cfg.PeriodStart,
		Series:      series,
		Days:        s.cfg.Days,
		Window:      s.cfg.Window,
		Relative:    s.cfg.Relative,
	})
}
