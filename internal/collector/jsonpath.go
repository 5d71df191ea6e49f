package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"EconSync/internal/model"
)

// JSONPathFetcher reads observations from an arbitrary JSON endpoint.
// Path selects an array of objects; DateKey and ValueKey name the fields of each.
//
// The request symbol is substituted for "{symbol}" and the start date for
// "{start}" in URL.
type JSONPathFetcher struct {
	URL      string
	Path     string
	DateKey  string
	ValueKey string
	Header   http.Header
	Client   *http.Client
	Options  HTTPOptions
}

// NewJSONPathFetcher creates a generic JSON fetcher. Empty keys default to "date" and "value".
func NewJSONPathFetcher(rawURL, path, dateKey, valueKey string, opts HTTPOptions) *JSONPathFetcher {
	if dateKey == "" {
		dateKey = "date"
	}
	if valueKey == "" {
		valueKey = "value"
	}
	opts = opts.withDefaults()
	return &JSONPathFetcher{
		URL:      rawURL,
		Path:     path,
		DateKey:  dateKey,
		ValueKey: valueKey,
		Client:   newHTTPClient(opts),
		Options:  opts,
	}
}

func (f *JSONPathFetcher) Name() string { return "jsonpath" }

func (f *JSONPathFetcher) Fetch(ctx context.Context, req Request) ([]model.Observation, error) {
	endpoint := strings.NewReplacer(
		"{symbol}", req.Symbol,
		"{start}", req.Start.String(),
	).Replace(f.URL)

	body, err := getWithRetry(ctx, f.Client, endpoint, f.Header, f.Options)
	if err != nil {
		return nil, fmt.Errorf("jsonpath fetch %s: %w", req.Series, err)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jsonpath decode: %w", err)
	}
	return f.extract(doc, req.Start)
}

func (f *JSONPathFetcher) extract(doc any, start model.Date) ([]model.Observation, error) {
	selected, err := jsonpath.Get(f.Path, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", f.Path, err)
	}
	items, ok := selected.([]any)
	if !ok {
		return nil, fmt.Errorf("path %q selected %T, want an array", f.Path, selected)
	}
	// jsonpath may wrap the selected array in a one element list
	if len(items) == 1 {
		if inner, ok := items[0].([]any); ok {
			items = inner
		}
	}

	obs := make([]model.Observation, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, want an object", i, item)
		}
		ds, ok := rec[f.DateKey].(string)
		if !ok {
			return nil, fmt.Errorf("item %d: missing string field %q", i, f.DateKey)
		}
		d, err := model.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if d.Before(start) {
			continue
		}
		v, ok, err := toFloat(rec[f.ValueKey])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if !ok {
			continue
		}
		obs = append(obs, model.Observation{Date: d, Value: v})
	}
	return obs, nil
}

// toFloat accepts JSON numbers and numeric strings. Null, "." (no data) and
// non-finite strings such as "NaN" report !ok.
func toFloat(v any) (float64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return n, true, nil
	case string:
		if n == "" || n == "." {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false, fmt.Errorf("value %q: %w", n, err)
		}
		return f, finite(f), nil
	default:
		return 0, false, fmt.Errorf("unsupported value type %T", v)
	}
}
