package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"EconSync/internal/model"
)

// DefaultFREDBaseURL is the St. Louis Fed API root.
const DefaultFREDBaseURL = "https://api.stlouisfed.org/fred"

// ErrMissingAPIKey is returned when a keyed provider is used without a key.
var ErrMissingAPIKey = errors.New("api key not configured")

// FREDFetcher implements Fetcher using the FRED series/observations endpoint.
// Values are rounded to two decimals.
type FREDFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Options HTTPOptions
}

// NewFREDFetcher creates a FRED fetcher. The key is never defaulted.
func NewFREDFetcher(baseURL, apiKey string, opts HTTPOptions) *FREDFetcher {
	if baseURL == "" {
		baseURL = DefaultFREDBaseURL
	}
	opts = opts.withDefaults()
	return &FREDFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(opts),
		Options: opts,
	}
}

func (f *FREDFetcher) Name() string { return "fred" }

// fredObservations is the expected JSON shape; FRED reports values as strings
// and uses "." for missing data.
type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (f *FREDFetcher) Fetch(ctx context.Context, req Request) ([]model.Observation, error) {
	if f.APIKey == "" {
		return nil, fmt.Errorf("fred: %w (set FRED_API_KEY, free keys at https://fred.stlouisfed.org/docs/api/api_key.html)", ErrMissingAPIKey)
	}
	if req.Symbol == "" {
		return nil, fmt.Errorf("fred: no series id for series %q", req.Series)
	}

	q := url.Values{}
	q.Set("series_id", req.Symbol)
	q.Set("api_key", f.APIKey)
	q.Set("file_type", "json")
	if !req.Start.IsZero() {
		q.Set("observation_start", req.Start.String())
	}
	if !req.End.IsZero() {
		q.Set("observation_end", req.End.String())
	}
	endpoint := fmt.Sprintf("%s/series/observations?%s", f.BaseURL, q.Encode())

	body, err := getWithRetry(ctx, f.Client, endpoint, nil, f.Options)
	if err != nil {
		return nil, fmt.Errorf("fred fetch %s: %w", req.Symbol, err)
	}
	var resp fredObservations
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fred decode: %w", err)
	}

	obs := make([]model.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == "." || o.Value == "" {
			continue
		}
		d, err := model.ParseDate(o.Date)
		if err != nil {
			return nil, fmt.Errorf("fred %s: %w", req.Symbol, err)
		}
		v, err := decimal.NewFromString(o.Value)
		if err != nil {
			return nil, fmt.Errorf("fred %s: value %q on %s: %w", req.Symbol, o.Value, o.Date, err)
		}
		obs = append(obs, model.Observation{Date: d, Value: v.Round(2).InexactFloat64()})
	}
	return obs, nil
}
