// Package provider defines the market data dependency of the pipeline.
package provider

import (
	"context"

	"github.com/tickerwatch/tickerwatch/internal/core"
)

// Provider fetches historical daily closing prices for a symbol.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// ClosingPrices returns the adjusted daily closing prices for the
	// last `days` days, chronological ascending (oldest first). Any
	// transport or API failure is returned as an error for the whole
	// request; there is no partial result.
	ClosingPrices(ctx context.Context, symbol core.Symbol, days int) (core.PriceSeries, error)
}
