package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"EconSync/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
// Each bar's close becomes one observation dated at the bar's start.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	Options   HTTPOptions
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL string, opts HTTPOptions) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	opts = opts.withDefaults()
	return &YahooFetcher{
		BaseURL: baseURL,
		Client:  newHTTPClient(opts),
		Options: opts,
		SymbolMap: map[string]string{
			"BTC":     "BTC-USD",
			"BITCOIN": "BTC-USD",
			"NASDAQ":  "^IXIC",
			"IXIC":    "^IXIC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooFetcher) Fetch(ctx context.Context, req Request) ([]model.Observation, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("yahoo: no symbol for series %q", req.Series)
	}
	interval := req.Interval
	if interval == "" {
		interval = "1mo"
	}
	end := req.End
	if end.IsZero() {
		end = model.Today()
	}

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("period1", fmt.Sprint(req.Start.Time().Unix()))
	// period2 is exclusive
	q.Set("period2", fmt.Sprint(end.AddDays(1).Time().Unix()))
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(req.Symbol)), q.Encode())

	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")
	body, err := getWithRetry(ctx, f.Client, endpoint, header, f.Options)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", req.Symbol, err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close
	obs := make([]model.Observation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // null bars (holidays, incomplete periods)
		}
		d := model.DateOf(time.Unix(ts, 0).UTC())
		if d.Before(req.Start) || d.After(end) {
			continue
		}
		obs = append(obs, model.Observation{Date: d, Value: *closes[i]})
	}
	return obs, nil
}
