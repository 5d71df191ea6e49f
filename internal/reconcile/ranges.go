package reconcile

import "EconSync/internal/model"

// Registry maps a series name to its plausible value range.
// Series missing from the registry are unbounded.
type Registry map[string]*model.Range

// DefaultRegistry returns the built-in ranges of the known economic series.
func DefaultRegistry() Registry {
	return Registry{
		"ism_manufacturing": {Min: 0, Max: 100},
		"ism_services":      {Min: 0, Max: 100},
		"global_m2":         {Min: 1000, Max: 30000}, // billions USD
		"bitcoin_price":     {Min: 0, Max: 150000},
		"nasdaq":            {Min: 0, Max: 25000},
		"unemployment_rate": {Min: 0, Max: 20},
		"yield_curve":       {Min: -5, Max: 5},
	}
}

// Lookup returns the range of the named series, or nil when it is unbounded.
func (r Registry) Lookup(name string) *model.Range {
	rng, ok := r[name]
	if !ok || rng == nil {
		return nil
	}
	cp := *rng
	return &cp
}

// Set declares or replaces the range of a series. A nil range makes it unbounded.
func (r Registry) Set(name string, rng *model.Range) {
	if rng == nil {
		delete(r, name)
		return
	}
	cp := *rng
	r[name] = &cp
}
