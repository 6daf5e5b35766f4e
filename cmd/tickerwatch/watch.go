package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tickerwatch/tickerwatch/internal/config"
	"github.com/tickerwatch/tickerwatch/internal/core"
	"github.com/tickerwatch/tickerwatch/internal/logger"
	"github.com/tickerwatch/tickerwatch/internal/metrics"
	"github.com/tickerwatch/tickerwatch/internal/pipeline"
	"github.com/tickerwatch/tickerwatch/internal/provider/yahoo"
	"github.com/tickerwatch/tickerwatch/internal/scheduler"
	"github.com/tickerwatch/tickerwatch/internal/stats"
	"go.uber.org/zap"
)

var (
	watchFrom        string
	watchSymbols     []string
	watchWindow      int
	watchInterval    time.Duration
	watchRelative    bool
	watchBenchmark   string
	watchNoHeaders   bool
	watchOnError     string
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll closing prices and print per-symbol statistics",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFrom, "from", "f", "", "period start date (YYYY-MM-DD)")
	watchCmd.Flags().StringSliceVarP(&watchSymbols, "symbols", "s", nil, "ticker symbols to watch (comma separated or repeated)")
	watchCmd.Flags().IntVarP(&watchWindow, "window", "w", 30, "moving-average window in days")
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 30*time.Second, "pause between polling cycles")
	watchCmd.Flags().BoolVarP(&watchRelative, "relative", "r", false, "report change relative to the benchmark index")
	watchCmd.Flags().StringVarP(&watchBenchmark, "benchmark", "b", "^GSPC", "benchmark index symbol")
	watchCmd.Flags().BoolVarP(&watchNoHeaders, "no-headers", "n", false, "suppress the header line")
	watchCmd.Flags().StringVar(&watchOnError, "on-error", config.OnFetchErrorContinue, `fetch failure policy: "continue" or "exit"`)
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	symbols := parseWatchSymbols(cfg.Watch.Symbols)
	if len(symbols) == 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("at least one symbol is required (--symbols)"))
	}

	from, days, err := resolvePeriod(cfg.Watch.From, cfg.Watch.Window, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Debug("gathering info",
		zap.String("from", from),
		zap.Int("days", days),
		zap.Int("symbols", len(symbols)),
	)

	reg := metrics.NewRegistry()
	if addr := metricsAddr(cfg); addr != "" {
		go serveMetrics(addr, reg, log)
	}

	var opts []yahoo.Option
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, yahoo.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.Timeout > 0 {
		opts = append(opts, yahoo.WithTimeout(cfg.Provider.Timeout))
	}
	prov := yahoo.New(opts...)

	bench := pipeline.NewBenchmarkCache(prov, core.NewSymbol(cfg.Watch.Benchmark), reg, log)
	sup := pipeline.New(prov, bench, reg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx)

	sched := scheduler.New(scheduler.Config{
		Symbols:     symbols,
		PeriodStart: from,
		Days:        days,
		Window:      cfg.Watch.Window,
		Interval:    cfg.Watch.Interval,
		Relative:    cfg.Watch.Relative,
		NoHeaders:   cfg.Watch.NoHeaders,
		ExitOnError: cfg.Watch.OnFetchError == config.OnFetchErrorExit,
	}, sup, os.Stdout, reg, log)

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down")
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// loadConfig merges the optional config file with command-line flags;
// an explicitly set flag wins over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Defaults()
	}

	f := cmd.Flags()
	if f.Changed("from") || cfg.Watch.From == "" {
		cfg.Watch.From = watchFrom
	}
	if f.Changed("symbols") || len(cfg.Watch.Symbols) == 0 {
		cfg.Watch.Symbols = watchSymbols
	}
	if f.Changed("window") {
		cfg.Watch.Window = watchWindow
	}
	if f.Changed("interval") {
		cfg.Watch.Interval = watchInterval
	}
	if f.Changed("relative") {
		cfg.Watch.Relative = watchRelative
	}
	if f.Changed("benchmark") {
		cfg.Watch.Benchmark = watchBenchmark
	}
	if f.Changed("no-headers") {
		cfg.Watch.NoHeaders = watchNoHeaders
	}
	if f.Changed("on-error") {
		cfg.Watch.OnFetchError = watchOnError
	}
	return cfg, nil
}

// resolvePeriod turns the configured start date into the period start
// and its length in days, enforcing the window precondition before any
// provider is even constructed.
func resolvePeriod(rawFrom string, window int, now time.Time) (string, int, error) {
	if rawFrom == "" {
		return "", 0, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("a period start date is required (--from)"))
	}

	// The date may arrive with a time suffix; only the day matters.
	from := strings.SplitN(rawFrom, "T", 2)[0]

	period, err := stats.CountDays(from, now.Format("2006-01-02"))
	if err != nil {
		return "", 0, err
	}
	days, err := stats.ParsePeriodDays(period)
	if err != nil {
		return "", 0, err
	}
	if days <= window {
		return "", 0, core.WrapError(core.ErrPeriodTooShort,
			fmt.Errorf("select a start date more than %d days in the past", window))
	}
	return from, days, nil
}

// parseWatchSymbols normalizes the configured symbol list, splitting any
// comma-joined entries.
func parseWatchSymbols(raw []string) []core.Symbol {
	var symbols []core.Symbol
	for _, entry := range raw {
		symbols = append(symbols, core.ParseSymbols(entry)...)
	}
	return symbols
}

func metricsAddr(cfg *config.Config) string {
	if watchMetricsAddr != "" {
		return watchMetricsAddr
	}
	if cfg.Metrics.Enabled {
		return cfg.Metrics.Addr
	}
	return ""
}

func serveMetrics(addr string, reg *metrics.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server error", zap.Error(err))
	}
}
