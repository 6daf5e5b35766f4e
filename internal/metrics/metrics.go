package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	ticksTotal       prometheus.Counter
	tickDuration     prometheus.Histogram
	fetchesTotal     *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	benchmarkFetches prometheus.Counter
	actorRestarts    *prometheus.CounterVec
	rowsEmitted      prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tickerwatch_ticks_total",
				Help: "Total number of completed polling ticks",
			},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickerwatch_tick_duration_seconds",
				Help:    "Polling tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerwatch_fetches_total",
				Help: "Total number of provider fetches",
			},
			[]string{"status"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickerwatch_fetch_duration_seconds",
				Help:    "Provider fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		benchmarkFetches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tickerwatch_benchmark_fetches_total",
				Help: "Total number of benchmark series fetch attempts (memoization shares one attempt across callers; failed attempts are retried)",
			},
		),
		actorRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerwatch_actor_restarts_total",
				Help: "Total number of supervised actor restarts",
			},
			[]string{"actor"},
		),
		rowsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tickerwatch_rows_emitted_total",
				Help: "Total number of result rows emitted",
			},
		),
	}

	reg.MustRegister(r.ticksTotal)
	reg.MustRegister(r.tickDuration)
	reg.MustRegister(r.fetchesTotal)
	reg.MustRegister(r.fetchDuration)
	reg.MustRegister(r.benchmarkFetches)
	reg.MustRegister(r.actorRestarts)
	reg.MustRegister(r.rowsEmitted)

	return r
}

// Handler returns an HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// TickCompleted records one finished polling tick.
func (r *Registry) TickCompleted(seconds float64) {
	r.ticksTotal.Inc()
	r.tickDuration.Observe(seconds)
}

// FetchCompleted records one provider fetch with its outcome.
func (r *Registry) FetchCompleted(status string, seconds float64) {
	r.fetchesTotal.WithLabelValues(status).Inc()
	r.fetchDuration.Observe(seconds)
}

// BenchmarkFetched records one benchmark series fetch attempt.
func (r *Registry) BenchmarkFetched() {
	r.benchmarkFetches.Inc()
}

// ActorRestarted records one supervised restart.
func (r *Registry) ActorRestarted(actor string) {
	r.actorRestarts.WithLabelValues(actor).Inc()
}

// RowEmitted records one emitted result row.
func (r *Registry) RowEmitted() {
	r.rowsEmitted.Inc()
}
