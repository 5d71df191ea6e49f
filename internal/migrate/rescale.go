// Package migrate holds one-off data migrations that are run by hand, outside
// the regular sync.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/shopspring/decimal"

	"EconSync/internal/model"
)

var (
	ErrNoData       = errors.New("no data to rescale")
	ErrNoReferences = errors.New("no reference values")
)

// Result describes a rescaled series.
type Result struct {
	Data        []model.Observation
	Factor      float64
	Matched     int // reference dates used to compute Factor
	Overwritten int
	Appended    int
}

// Rescale converts a series recorded in the wrong unit to the unit of refs.
//
// The scale factor is the mean of ref/existing over the reference dates present
// in data with a positive value. Without any such date the ratio of the last
// reference to the last data value is used. Every value is multiplied by the
// factor and rounded to one decimal, then the reference points overwrite or
// extend the result. Neither input is modified.
func Rescale(data, refs []model.Observation) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrNoData
	}
	if len(refs) == 0 {
		return Result{}, ErrNoReferences
	}

	out := slices.Clone(data)
	sortByDate(out)
	sortedRefs := slices.Clone(refs)
	sortByDate(sortedRefs)

	index := make(map[model.Date]int, len(out))
	for i, o := range out {
		index[o.Date] = i
	}

	var res Result
	sum := 0.0
	for _, r := range sortedRefs {
		i, ok := index[r.Date]
		if !ok || out[i].Value <= 0 {
			continue
		}
		sum += r.Value / out[i].Value
		res.Matched++
	}
	if res.Matched > 0 {
		res.Factor = sum / float64(res.Matched)
	} else {
		last := out[len(out)-1].Value
		if last <= 0 {
			return Result{}, fmt.Errorf("cannot derive scale factor: last value is %g", last)
		}
		res.Factor = sortedRefs[len(sortedRefs)-1].Value / last
	}

	factor := decimal.NewFromFloat(res.Factor)
	for i := range out {
		out[i].Value = decimal.NewFromFloat(out[i].Value).Mul(factor).Round(1).InexactFloat64()
	}

	for _, r := range sortedRefs {
		if i, ok := index[r.Date]; ok {
			out[i].Value = r.Value
			res.Overwritten++
			continue
		}
		out = append(out, r)
		index[r.Date] = len(out) - 1
		res.Appended++
	}
	sortByDate(out)
	res.Data = out
	return res, nil
}

// LoadReferences reads a JSON array of {"date", "value"} reference points.
func LoadReferences(path string) ([]model.Observation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}
	var refs []model.Observation
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("parse references %s: %w", path, err)
	}
	if len(refs) == 0 {
		return nil, ErrNoReferences
	}
	return refs, nil
}

func sortByDate(obs []model.Observation) {
	slices.SortStableFunc(obs, func(a, b model.Observation) int { return a.Date.Compare(b.Date) })
}
