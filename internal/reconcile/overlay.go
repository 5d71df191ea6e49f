package reconcile

import (
	"math"

	"EconSync/internal/model"
)

// OverlayReport counts the changes made by Overlay.
type OverlayReport struct {
	Added   int
	Updated int
}

// Overlay treats incoming as authoritative. Dates missing from existing are appended
// in incoming order; dates already present get their first existing entry replaced
// when the values differ by more than tolerance. The existing slice is not modified.
//
// Duplicates inside incoming are appended as-is and left for Clean to resolve.
func Overlay(existing, incoming []model.Observation, tolerance float64) ([]model.Observation, OverlayReport) {
	var report OverlayReport
	out := make([]model.Observation, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	index := make(map[model.Date]int, len(existing))
	for i, o := range existing {
		if _, ok := index[o.Date]; !ok {
			index[o.Date] = i
		}
	}

	for _, o := range incoming {
		i, ok := index[o.Date]
		if !ok {
			out = append(out, o)
			report.Added++
			continue
		}
		if math.Abs(o.Value-out[i].Value) > tolerance {
			out[i].Value = o.Value
			report.Updated++
		}
	}
	return out, report
}
