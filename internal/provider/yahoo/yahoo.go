package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/tickerwatch/tickerwatch/internal/core"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches tickers like AAPL, BRK-B, 0700.HK and index
// symbols like ^GSPC.
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9\-]{1,10}(\.[A-Za-z]{1,4})?$`)

func validateSymbol(symbol core.Symbol) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(string(symbol)) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches daily adjusted closing prices from the Yahoo Finance
// chart API.
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// Option configures a Yahoo provider.
type Option func(*Yahoo)

// WithBaseURL overrides the chart API endpoint. Used by tests to point
// at a stub server.
func WithBaseURL(url string) Option {
	return func(y *Yahoo) { y.baseURL = url }
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(y *Yahoo) { y.client.Timeout = d }
}

// New creates a new Yahoo provider.
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// ClosingPrices fetches the adjusted daily closes for the last `days`
// days, oldest first. The chart API already returns records in
// chronological order; entries with a missing close are skipped.
func (y *Yahoo) ClosingPrices(ctx context.Context, symbol core.Symbol, days int) (core.PriceSeries, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}

	url := fmt.Sprintf("%s/%s?interval=1d&range=%dd", y.baseURL, symbol, days)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no data for symbol: %s", symbol))
	}

	adj := result.Chart.Result[0].Indicators.AdjClose
	if len(adj) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no adjusted closes for symbol: %s", symbol))
	}

	prices := make(core.PriceSeries, 0, len(adj[0].AdjClose))
	for _, p := range adj[0].AdjClose {
		if p == nil {
			continue // Skip missing data
		}
		prices = append(prices, *p)
	}

	if len(prices) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("empty series for symbol: %s", symbol))
	}

	return prices, nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	AdjClose []adjCloseIndicator `json:"adjclose"`
}

type adjCloseIndicator struct {
	AdjClose []*float64 `json:"adjclose"`
}
