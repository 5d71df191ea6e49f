package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"EconSync/internal/model"
)

// MockFetcher returns fixed data for development and testing.
type MockFetcher struct {
	Data  map[string][]model.Observation // keyed by Request.Symbol
	Err   error
	Calls []Request
}

func (m *MockFetcher) Name() string { return "mock" }

// Fetch returns the configured observations for the symbol that are not before req.Start.
func (m *MockFetcher) Fetch(_ context.Context, req Request) ([]model.Observation, error) {
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.Observation
	for _, o := range m.Data[req.Symbol] {
		if o.Date.Before(req.Start) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Collector routes fetch requests to the fetcher registered for a source.
type Collector struct {
	fetchers map[string]Fetcher
}

// NewCollector creates a Collector from the given fetchers, keyed by their Name.
func NewCollector(fetchers ...Fetcher) *Collector {
	c := &Collector{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		c.Register(f.Name(), f)
	}
	return c
}

// Register adds or replaces the fetcher used for source.
func (c *Collector) Register(source string, f Fetcher) {
	c.fetchers[strings.ToLower(source)] = f
}

// Sources lists the registered source names.
func (c *Collector) Sources() []string {
	names := make([]string, 0, len(c.fetchers))
	for name := range c.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch fetches observations for req from the named source.
func (c *Collector) Fetch(ctx context.Context, source string, req Request) ([]model.Observation, error) {
	f, ok := c.fetchers[strings.ToLower(source)]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (have %s)", source, strings.Join(c.Sources(), ", "))
	}
	return f.Fetch(ctx, req)
}
