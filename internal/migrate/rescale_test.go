package migrate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"EconSync/internal/model"
)

func o(date string, v float64) model.Observation {
	return model.Observation{Date: model.MustParseDate(date), Value: v}
}

func TestRescale_MeanFactor(t *testing.T) {
	data := []model.Observation{o("2024-01-01", 20), o("2024-02-01", 21), o("2024-03-01", 22)}
	refs := []model.Observation{o("2024-01-01", 20000), o("2024-03-01", 22000), o("2024-04-01", 23000)}

	res, err := Rescale(data, refs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Factor != 1000 || res.Matched != 2 {
		t.Errorf("factor = %v from %d points, want 1000 from 2", res.Factor, res.Matched)
	}
	if res.Overwritten != 2 || res.Appended != 1 {
		t.Errorf("overwritten/appended = %d/%d, want 2/1", res.Overwritten, res.Appended)
	}
	want := []model.Observation{o("2024-01-01", 20000), o("2024-02-01", 21000), o("2024-03-01", 22000), o("2024-04-01", 23000)}
	assertSeries(t, res.Data, want)
	if data[1].Value != 21 {
		t.Error("input was modified")
	}
}

func TestRescale_FallbackToLastValues(t *testing.T) {
	data := []model.Observation{o("2024-01-01", 10), o("2024-02-01", 12.5)}
	refs := []model.Observation{o("2024-03-01", 25)}

	res, err := Rescale(data, refs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Factor != 2 || res.Matched != 0 {
		t.Errorf("factor = %v (matched %d), want 2 (0)", res.Factor, res.Matched)
	}
	assertSeries(t, res.Data, []model.Observation{o("2024-01-01", 20), o("2024-02-01", 25), o("2024-03-01", 25)})
}

func TestRescale_RoundsToOneDecimal(t *testing.T) {
	data := []model.Observation{o("2024-01-01", 3), o("2024-02-01", 7)}
	refs := []model.Observation{o("2024-01-01", 10)}

	res, err := Rescale(data, refs)
	if err != nil {
		t.Fatal(err)
	}
	// 7 * 3.333... = 23.333...
	if got := res.Data[1].Value; got != 23.3 {
		t.Errorf("scaled value = %v, want 23.3", got)
	}
}

func TestRescale_Errors(t *testing.T) {
	if _, err := Rescale(nil, []model.Observation{o("2024-01-01", 1)}); !errors.Is(err, ErrNoData) {
		t.Errorf("empty data: got %v", err)
	}
	if _, err := Rescale([]model.Observation{o("2024-01-01", 1)}, nil); !errors.Is(err, ErrNoReferences) {
		t.Errorf("empty refs: got %v", err)
	}
	if _, err := Rescale([]model.Observation{o("2024-01-01", 0)}, []model.Observation{o("2024-02-01", 1)}); err == nil {
		t.Error("expected error for zero last value")
	}
}

func TestLoadReferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refs.json")
	if err := os.WriteFile(path, []byte(`[{"date":"2024-01-01","value":21000.5}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	refs, err := LoadReferences(path)
	if err != nil {
		t.Fatal(err)
	}
	assertSeries(t, refs, []model.Observation{o("2024-01-01", 21000.5)})

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`[]`), 0o644)
	if _, err := LoadReferences(empty); !errors.Is(err, ErrNoReferences) {
		t.Errorf("empty refs file: got %v", err)
	}
}

func assertSeries(t *testing.T, got, want []model.Observation) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d observations, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
