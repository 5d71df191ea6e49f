package reconcile

import (
	"math"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"EconSync/internal/model"
)

// MaxYoYGapDays is how far the year-ago anchor may sit from the exact one-year mark.
const MaxYoYGapDays = 45

// DeriveYoY computes year-over-year percentage changes for a price series.
//
// For each observation the anchor is the strictly earlier observation nearest to the
// same date one year before; on equal distance the earlier date wins. No value is
// emitted when the anchor is more than MaxYoYGapDays away or not positive.
// Results are rounded to two decimals and returned in ascending date order.
func DeriveYoY(series []model.Observation) []model.Observation {
	sorted := slices.Clone(series)
	sortByDate(sorted)

	var out []model.Observation
	for i, cur := range sorted {
		j, ok := nearestBefore(sorted, i, cur.Date.AddYears(-1))
		if !ok {
			continue
		}
		past := sorted[j].Value
		if past <= 0 {
			continue
		}
		pct := (cur.Value/past - 1) * 100
		if math.IsInf(pct, 0) || math.IsNaN(pct) {
			continue
		}
		out = append(out, model.Observation{Date: cur.Date, Value: round2(pct)})
	}
	return out
}

// nearestBefore returns the index in s[:i] whose date is closest to target and
// within MaxYoYGapDays. s must be sorted ascending.
func nearestBefore(s []model.Observation, i int, target model.Date) (int, bool) {
	if i == 0 {
		return 0, false
	}
	// k is the first index in s[:i] not before target.
	k := sort.Search(i, func(n int) bool { return !s[n].Date.Before(target) })

	best, bestDist := -1, 0
	if k > 0 {
		// first index carrying the same date as s[k-1], matching a forward scan
		d := s[k-1].Date
		lo := sort.Search(k, func(n int) bool { return !s[n].Date.Before(d) })
		best, bestDist = lo, target.DaysSince(d)
	}
	if k < i {
		if dist := s[k].Date.DaysSince(target); best < 0 || dist < bestDist {
			best, bestDist = k, dist
		}
	}
	if best < 0 || bestDist > MaxYoYGapDays {
		return 0, false
	}
	return best, true
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
