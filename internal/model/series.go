package model

import "fmt"

// Observation is one sample of a named economic series.
type Observation struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

func (o Observation) String() string { return fmt.Sprintf("%s=%g", o.Date, o.Value) }

// Range is the plausible value interval of a series, bounds included.
// A nil *Range means the series is unbounded.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) String() string { return fmt.Sprintf("%g-%g", r.Min, r.Max) }

// Latest returns the greatest date in obs, which need not be sorted.
func Latest(obs []Observation) (Date, bool) {
	if len(obs) == 0 {
		return Date{}, false
	}
	latest := obs[0].Date
	for _, o := range obs[1:] {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	return latest, true
}
