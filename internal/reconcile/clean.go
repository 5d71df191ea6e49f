package reconcile

import (
	"slices"

	"EconSync/internal/model"
)

// Outlier is an observation rejected because its value fell outside the series range.
type Outlier struct {
	Observation model.Observation
	Range       model.Range
}

// CleanReport summarizes what Clean removed.
type CleanReport struct {
	Input      int
	Kept       int
	Duplicates int
	Outliers   []Outlier
}

// Removed returns the number of dropped observations.
func (r CleanReport) Removed() int { return r.Duplicates + len(r.Outliers) }

// Merge concatenates existing and incoming, existing first. Neither input is modified.
// The order matters: Clean keeps the first observation of a date, so persisted values
// take precedence over freshly fetched ones.
func Merge(existing, incoming []model.Observation) []model.Observation {
	out := make([]model.Observation, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	return append(out, incoming...)
}

// Clean drops duplicate dates (first occurrence wins) and, when rng is not nil,
// values outside rng. The result is sorted ascending by date.
//
// Only kept dates count as seen: an outlier does not shadow a later in-range
// observation of the same date.
func Clean(data []model.Observation, rng *model.Range) ([]model.Observation, CleanReport) {
	report := CleanReport{Input: len(data)}
	kept := make([]model.Observation, 0, len(data))
	seen := make(map[model.Date]struct{}, len(data))

	for _, o := range data {
		if _, dup := seen[o.Date]; dup {
			report.Duplicates++
			continue
		}
		if rng != nil && !rng.Contains(o.Value) {
			report.Outliers = append(report.Outliers, Outlier{Observation: o, Range: *rng})
			continue
		}
		kept = append(kept, o)
		seen[o.Date] = struct{}{}
	}

	sortByDate(kept)
	report.Kept = len(kept)
	return kept, report
}

func sortByDate(obs []model.Observation) {
	slices.SortStableFunc(obs, func(a, b model.Observation) int {
		return a.Date.Compare(b.Date)
	})
}
