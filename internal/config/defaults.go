package config

import (
	"path/filepath"
	"time"

	"EconSync/internal/collector"
)

// Default values for optional configuration fields.
const (
	DefaultDataDir          = "data"
	DefaultLogLevel         = "info"
	DefaultFetchTimeout     = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultOverlayTolerance = 0.01
	DefaultSQLiteFile       = "econsync.db"
)

// DefaultSeries is the series list used when the config file declares none.
func DefaultSeries() []SeriesConfig {
	return []SeriesConfig{
		{
			Name: "bitcoin_price", File: "bitcoin_price.json",
			Source: SourceYahoo, Symbol: "BTC-USD", Interval: "1mo",
			Start: "2010-07-01", Cadence: "0 0 1 * *", YoYFile: "bitcoin_yoy.json",
		},
		{
			Name: "nasdaq", File: "nasdaq.json",
			Source: SourceYahoo, Symbol: "^IXIC", Interval: "1mo",
			Start: "1990-01-01", Cadence: "0 0 1 * *", YoYFile: "nasdaq_yoy.json",
		},
		{
			Name: "global_m2", File: "global_m2.json",
			Source: SourceFRED, Symbol: "M2SL", Start: "1990-01-01", Cadence: "0 0 1 * *",
		},
		{
			Name: "unemployment_rate", File: "unemployment_rate.json",
			Source: SourceFRED, Symbol: "UNRATE", Start: "1990-01-01", Cadence: "0 0 1 * *",
		},
		{
			Name: "yield_curve", File: "yield_curve.json",
			Source: SourceFRED, Symbol: "T10Y2Y", Start: "1990-01-01",
		},
		{
			Name: "ism_manufacturing", File: "ism_manufacturing.json",
			Source: SourceCSV, Symbol: "ISM-pmi-pm.csv", Merge: MergeOverlay,
		},
		{
			Name: "ism_services", File: "ism_services.json",
			Source: SourceCSV, Symbol: "ISM-services-pmi.csv", Merge: MergeOverlay,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Yahoo.BaseURL == "" {
		c.Yahoo.BaseURL = collector.DefaultYahooBaseURL
	}
	if c.FRED.BaseURL == "" {
		c.FRED.BaseURL = collector.DefaultFREDBaseURL
	}
	if c.OverlayTolerance == 0 {
		c.OverlayTolerance = DefaultOverlayTolerance
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = filepath.Join(c.DataDir, DefaultSQLiteFile)
	}
	if len(c.Series) == 0 {
		c.Series = DefaultSeries()
	}
	for i := range c.Series {
		s := &c.Series[i]
		if s.File == "" && s.Name != "" {
			s.File = s.Name + ".json"
		}
		if s.Merge == "" {
			s.Merge = MergeAppend
		}
	}
}
