package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"EconSync/internal/model"
)

// CSVFetcher reads a local two-column "period,value" file with a header row,
// such as a manually downloaded ISM PMI history. Monthly periods ("2024-03")
// map to the first day of the month. The whole file is returned regardless of
// Request.Start, since such files are used as authoritative overlays.
type CSVFetcher struct {
	// Resolve maps Request.Symbol to a file path.
	Resolve func(symbol string) string
}

// NewCSVFetcher returns a fetcher that resolves relative symbols against dir.
func NewCSVFetcher(dir string) *CSVFetcher {
	return &CSVFetcher{Resolve: func(symbol string) string {
		if dir == "" || filepath.IsAbs(symbol) {
			return symbol
		}
		return filepath.Join(dir, symbol)
	}}
}

func (f *CSVFetcher) Name() string { return "csv" }

func (f *CSVFetcher) Fetch(_ context.Context, req Request) ([]model.Observation, error) {
	path := f.Resolve(req.Symbol)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()
	obs, err := ParseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// ParseCSV decodes "period,value" rows after a header line.
func ParseCSV(r io.Reader) ([]model.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var obs []model.Observation
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		d, err := parsePeriod(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value %q: %w", line, row[1], err)
		}
		if !finite(v) {
			logrus.WithField("line", line).Warnf("skipping non-finite value %q", row[1])
			continue
		}
		obs = append(obs, model.Observation{Date: d, Value: v})
	}
	return obs, nil
}

func parsePeriod(s string) (model.Date, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return model.DateOf(t), nil
	}
	return model.ParseDate(s)
}
