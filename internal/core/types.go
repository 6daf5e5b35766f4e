package core

import (
	"fmt"
	"strings"
)

// Symbol is an upper-cased ticker symbol. Validity is the provider's
// concern; the core only normalizes case.
type Symbol string

// NewSymbol normalizes a raw ticker string.
func NewSymbol(raw string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(raw)))
}

// ParseSymbols splits a comma-separated list into normalized symbols,
// dropping empty entries.
func ParseSymbols(list string) []Symbol {
	parts := strings.Split(list, ",")
	symbols := make([]Symbol, 0, len(parts))
	for _, p := range parts {
		s := NewSymbol(p)
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func (s Symbol) String() string {
	return string(s)
}

// PriceSeries is an ordered sequence of daily closing prices,
// chronological ascending (oldest first).
type PriceSeries []float64

// Last returns the most recent price. ok is false for an empty series.
func (p PriceSeries) Last() (v float64, ok bool) {
	if len(p) == 0 {
		return 0, false
	}
	return p[len(p)-1], true
}

// StatResult holds the derived statistics for one symbol over one period.
// Immutable once constructed; the scheduler prints it and moves on.
type StatResult struct {
	Symbol              Symbol
	PeriodStart         string // YYYY-MM-DD
	ClosingPrice        float64
	PriceDifference     float64 // percent; absolute or benchmark-relative
	Min                 float64
	Max                 float64
	SimpleMovingAverage float64
}

// Row renders the result as a CSV row:
//
//	2020-11-01,AAPL,$120.30,5.12%,$110.10,$125.00,$118.76
func (r StatResult) Row() string {
	return fmt.Sprintf("%s,%s,$%.2f,%.2f%%,$%.2f,$%.2f,$%.2f",
		r.PeriodStart,
		r.Symbol,
		r.ClosingPrice,
		r.PriceDifference,
		r.Min,
		r.Max,
		r.SimpleMovingAverage,
	)
}

// Header returns the column header matching Row for the given SMA window.
func Header(window int) string {
	return fmt.Sprintf("period start,symbol,price,change %%,min,max,%dd avg", window)
}
