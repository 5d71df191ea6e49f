package syncer

import (
	"EconSync/internal/collector"
	"EconSync/internal/config"
	"EconSync/internal/recorder"
	"EconSync/internal/store"
)

// NewCollector registers a fetcher for every source the configured series use.
func NewCollector(cfg *config.Config) *collector.Collector {
	opts := collector.HTTPOptions{
		Proxy:      cfg.Proxy,
		Timeout:    cfg.Fetch.Timeout,
		MaxRetries: cfg.Fetch.MaxRetries,
	}
	c := collector.NewCollector(
		collector.NewYahooFetcher(cfg.Yahoo.BaseURL, opts),
		collector.NewFREDFetcher(cfg.FRED.BaseURL, cfg.FRED.APIKey, opts),
		collector.NewCSVFetcher(cfg.DataDir),
	)
	for _, sc := range cfg.Series {
		switch sc.Source {
		case config.SourceJSONPath:
			c.Register(sc.SourceKey(), collector.NewJSONPathFetcher(sc.URL, sc.Path, sc.DateKey, sc.ValueKey, opts))
		case config.SourceMock:
			c.Register(config.SourceMock, &collector.MockFetcher{})
		}
	}
	return c
}

// New wires a Syncer for cfg.
func New(cfg *config.Config, rec recorder.Recorder) *Syncer {
	return &Syncer{
		Store:            store.New(cfg.DataDir),
		Collector:        NewCollector(cfg),
		Recorder:         rec,
		Registry:         cfg.Registry(),
		Series:           cfg.Series,
		OverlayTolerance: cfg.OverlayTolerance,
	}
}
