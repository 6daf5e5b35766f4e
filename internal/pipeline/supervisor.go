// Package pipeline implements the fetch/process actor pair behind each
// polling tick, supervised so that a crash in either actor restarts it
// without taking the loop down.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/metrics"
	"github.com/tickerwatch/tickerwatch/internal/provider"
	"go.uber.org/zap"
)

const (
	// requestBuffer bounds each actor's mailbox.
	requestBuffer = 16

	// restartBackoffBase doubles per consecutive crash, up to the cap.
	restartBackoffBase = 100 * time.Millisecond
	restartBackoffMax  = 30 * time.Second

	// stableAfter resets the consecutive-crash count once an actor has
	// run this long without crashing.
	stableAfter = time.Minute
)

// Supervisor owns the fetcher and processor actors for the process
// lifetime. Requests are passed over bounded channels and answered on a
// correlated reply channel; a crashed actor is restarted with fresh
// state and exponential backoff.
type Supervisor struct {
	log     *zap.Logger
	metrics *metrics.Registry

	fetcher   *fetcher
	processor *processor

	fetchCh   chan fetchRequest
	processCh chan processRequest
}

// New creates a supervisor over the given provider and benchmark cache.
func New(p provider.Provider, bench *BenchmarkCache, m *metrics.Registry, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Supervisor{
		log:     log,
		metrics: m,
		fetcher: &fetcher{
			provider: p,
			metrics:  m,
			log:      log,
		},
		processor: &processor{
			bench: bench,
			log:   log,
		},
		fetchCh:   make(chan fetchRequest, requestBuffer),
		processCh: make(chan processRequest, requestBuffer),
	}
}

// Start launches both actor loops. They run until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	go s.supervise(ctx, "fetcher", s.runFetcher)
	go s.supervise(ctx, "processor", s.runProcessor)
}

// Fetch asks the fetcher actor for the closing prices of one symbol and
// awaits the correlated reply.
func (s *Supervisor) Fetch(ctx context.Context, symbol core.Symbol, days int) (core.PriceSeries, error) {
	req := fetchRequest{
		id:     uuid.NewString(),
		symbol: symbol,
		days:   days,
		reply:  make(chan fetchReply, 1),
	}
	select {
	case s.fetchCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.series, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Process asks the processor actor to turn a fetched series into a
// StatResult and awaits the correlated reply.
func (s *Supervisor) Process(ctx context.Context, req ProcessRequest) (core.StatResult, error) {
	msg := processRequest{
		id:    uuid.NewString(),
		req:   req,
		reply: make(chan processReply, 1),
	}
	select {
	case s.processCh <- msg:
	case <-ctx.Done():
		return core.StatResult{}, ctx.Err()
	}
	select {
	case rep := <-msg.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return core.StatResult{}, ctx.Err()
	}
}

// supervise runs an actor loop, restarting it on panic. The backoff
// grows with consecutive crashes so a persistently failing actor does
// not hammer its dependency in a tight restart loop.
func (s *Supervisor) supervise(ctx context.Context, name string, run func(context.Context)) {
	failures := 0
	for {
		started := time.Now()
		if s.runActor(ctx, name, run) {
			return // clean shutdown via ctx
		}
		if time.Since(started) > stableAfter {
			failures = 0
		}
		failures++

		backoff := backoffFor(failures)
		s.metrics.ActorRestarted(name)
		s.log.Warn("restarting actor",
			zap.String("actor", name),
			zap.Int("consecutive_failures", failures),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// runActor runs one actor incarnation, reporting whether it returned
// cleanly (false means it panicked).
func (s *Supervisor) runActor(ctx context.Context, name string, run func(context.Context)) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("actor crashed",
				zap.String("actor", name),
				zap.Any("panic", r),
			)
		}
	}()
	run(ctx)
	return true
}

func backoffFor(failures int) time.Duration {
	backoff := restartBackoffBase
	for i := 1; i < failures; i++ {
		backoff *= 2
		if backoff >= restartBackoffMax {
			return restartBackoffMax
		}
	}
	return backoff
}

func (s *Supervisor) runFetcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.fetchCh:
			s.handleFetch(ctx, req)
		}
	}
}

func (s *Supervisor) runProcessor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.processCh:
			s.handleProcess(ctx, msg)
		}
	}
}

// handleFetch answers one fetch request. If the handler panics, the
// waiting requester still gets an error before the panic propagates to
// the supervisor for restart.
func (s *Supervisor) handleFetch(ctx context.Context, req fetchRequest) {
	defer func() {
		if r := recover(); r != nil {
			req.reply <- fetchReply{err: core.WrapError(core.ErrActorCrashed,
				fmt.Errorf("fetcher: %v", r))}
			panic(r)
		}
	}()
	req.reply <- s.fetcher.handle(ctx, req)
}

func (s *Supervisor) handleProcess(ctx context.Context, msg processRequest) {
	defer func() {
		if r := recover(); r != nil {
			msg.reply <- processReply{err: core.WrapError(core.ErrActorCrashed,
				fmt.Errorf("processor: %v", r))}
			panic(r)
		}
	}()
	msg.reply <- s.processor.handle(ctx, msg)
}
