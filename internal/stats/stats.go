// Package stats holds the pure numeric functions behind each output row.
// All functions are stateless and safe for concurrent use.
package stats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tickerwatch/tickerwatch/internal/core"
)

const dateLayout = "2006-01-02"

// CountDays parses two YYYY-MM-DD dates and returns the signed day count
// between them as a period descriptor such as "30d".
func CountDays(from, until string) (string, error) {
	past, err := time.Parse(dateLayout, from)
	if err != nil {
		return "", core.WrapError(core.ErrBadDate, err)
	}
	present, err := time.Parse(dateLayout, until)
	if err != nil {
		return "", core.WrapError(core.ErrBadDate, err)
	}
	days := int(present.Sub(past).Hours() / 24)
	return fmt.Sprintf("%dd", days), nil
}

// ParsePeriodDays converts a period descriptor like "45d" back to a day
// count.
func ParsePeriodDays(period string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
	if err != nil {
		return 0, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("malformed period %q: %w", period, err))
	}
	return days, nil
}

// PercentDiff returns the percent change from first to second.
//
// Not defined for first == 0: the result is ±Inf or NaN under IEEE
// division rules, and deliberately not special-cased here. Callers that
// cannot tolerate a non-finite result must validate first themselves.
func PercentDiff(first, second float64) float64 {
	return (second - first) / first * 100
}

// PriceDiff returns the percent and absolute change over a series, first
// element to last. Requires a non-empty series.
func PriceDiff(series core.PriceSeries) (percentage, absolute float64, err error) {
	if len(series) == 0 {
		return 0, 0, core.ErrNoData
	}
	last := series[len(series)-1]
	return PercentDiff(series[0], last), last - series[0], nil
}

// RelativeDiff returns the percent change of series minus the percent
// change of benchmark over the same period: performance relative to the
// index rather than to the series itself.
func RelativeDiff(series, benchmark core.PriceSeries) (float64, error) {
	pct, _, err := PriceDiff(series)
	if err != nil {
		return 0, err
	}
	benchPct, _, err := PriceDiff(benchmark)
	if err != nil {
		return 0, err
	}
	return pct - benchPct, nil
}

// Min folds the series from +Inf. A NaN element never wins the
// comparison, so it is skipped; an all-NaN (or empty) series yields +Inf.
// That seed value is the documented contract, not an error.
func Min(series core.PriceSeries) float64 {
	min := math.Inf(1)
	for _, v := range series {
		if v < min {
			min = v
		}
	}
	return min
}

// Max folds the series from -Inf, with the same NaN and seed-value
// contract as Min.
func Max(series core.PriceSeries) float64 {
	max := math.Inf(-1)
	for _, v := range series {
		if v > max {
			max = v
		}
	}
	return max
}

// NWindowSMA returns the simple moving average of each contiguous window
// of length n, sliding by one element. Output length is len(series)-n+1;
// a series shorter than n yields an empty result, never a partial window.
func NWindowSMA(n int, series core.PriceSeries) []float64 {
	if n <= 0 || len(series) < n {
		return []float64{}
	}
	averages := make([]float64, 0, len(series)-n+1)
	for i := 0; i+n <= len(series); i++ {
		var sum float64
		for _, v := range series[i : i+n] {
			sum += v
		}
		averages = append(averages, sum/float64(n))
	}
	return averages
}
