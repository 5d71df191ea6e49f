package collector

import (
	"context"
	"math"

	"EconSync/internal/model"
)

// Request describes the observations wanted for one series.
type Request struct {
	Series   string
	Symbol   string
	Start    model.Date // inclusive lower bound, zero means from the beginning
	End      model.Date // inclusive upper bound, zero means today
	Interval string
}

// Fetcher supplies raw observations for a series. An empty result is not an error.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]model.Observation, error)
	Name() string
}

// finite reports whether v can be stored: NaN and ±Inf cannot be encoded as JSON.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
