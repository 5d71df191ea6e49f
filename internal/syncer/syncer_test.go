package syncer

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EconSync/internal/collector"
	"EconSync/internal/config"
	"EconSync/internal/model"
	"EconSync/internal/reconcile"
	"EconSync/internal/recorder"
	"EconSync/internal/store"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func d(s string) model.Date { return model.MustParseDate(s) }

func obs(pairs ...any) []model.Observation {
	var out []model.Observation
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.Observation{Date: d(pairs[i].(string)), Value: toF(pairs[i+1])})
	}
	return out
}

func toF(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	}
	panic("unsupported value")
}

// staticFetcher ignores the requested start, like a file-backed source.
type staticFetcher struct {
	data  []model.Observation
	err   error
	calls int
}

func (f *staticFetcher) Name() string { return "static" }

func (f *staticFetcher) Fetch(context.Context, collector.Request) ([]model.Observation, error) {
	f.calls++
	return f.data, f.err
}

type memRecorder struct{ runs []*recorder.RunRecord }

func (m *memRecorder) RecordRun(r *recorder.RunRecord) error { m.runs = append(m.runs, r); return nil }
func (m *memRecorder) Close() error                         { return nil }

func newSyncer(t *testing.T, fetchers ...collector.Fetcher) (*Syncer, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	st := store.New(t.TempDir())
	require.NoError(t, st.EnsureDir())
	return &Syncer{
		Store:            st,
		Collector:        collector.NewCollector(fetchers...),
		Recorder:         rec,
		Registry:         reconcile.DefaultRegistry(),
		OverlayTolerance: 0.01,
		Now:              func() time.Time { return testNow },
	}, rec
}

func series(name, source, symbol string) config.SeriesConfig {
	return config.SeriesConfig{Name: name, File: name + ".json", Source: source, Symbol: symbol, Merge: config.MergeAppend}
}

func TestSyncSeries_UpToDateSkipsFetch(t *testing.T) {
	mock := &collector.MockFetcher{}
	s, rec := newSyncer(t, mock)
	sc := series("yield_curve", "mock", "T10Y2Y")
	require.NoError(t, s.Store.Save(sc.File, obs("2024-06-13", 0.1, "2024-06-14", 0.2)))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSkipped, run.Status)
	assert.Empty(t, mock.Calls)
	assert.Equal(t, 2, run.Kept)
	require.Len(t, rec.runs, 1)
}

func TestSyncSeries_LogsOutliersInPersistedData(t *testing.T) {
	hook := logtest.NewGlobal()
	defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	s, rec := newSyncer(t, &collector.MockFetcher{})
	sc := series("unemployment_rate", "mock", "UNRATE")
	require.NoError(t, s.Store.Save(sc.File, obs("2024-06-13", 42, "2024-06-14", 4.1)))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSkipped, run.Status)
	require.Len(t, run.Outliers, 1)
	require.Len(t, rec.runs, 1)

	var logged []log.Fields
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && e.Message == "value out of range, dropped" {
			logged = append(logged, e.Data)
		}
	}
	require.Len(t, logged, 1)
	assert.Equal(t, d("2024-06-13"), logged[0]["date"])
	assert.Equal(t, 42.0, logged[0]["value"])
	assert.Equal(t, "unemployment_rate", logged[0]["series"])
}

func TestSyncSeries_FetchesFromDayAfterLatest(t *testing.T) {
	mock := &collector.MockFetcher{Data: map[string][]model.Observation{
		"UNRATE": obs("2024-04-01", 3.9, "2024-05-01", 4.0),
	}}
	s, _ := newSyncer(t, mock)
	sc := series("unemployment_rate", "mock", "UNRATE")
	require.NoError(t, s.Store.Save(sc.File, obs("2024-03-01", 3.8, "2024-04-01", 3.9)))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, d("2024-04-02"), mock.Calls[0].Start)
	assert.Equal(t, d("2024-06-15"), mock.Calls[0].End)
	assert.Equal(t, 1, run.Added)

	got, err := s.Store.Load(sc.File)
	require.NoError(t, err)
	assert.Equal(t, obs("2024-03-01", 3.8, "2024-04-01", 3.9, "2024-05-01", 4.0), got)
}

func TestSyncSeries_ExistingValueWinsOnCollision(t *testing.T) {
	f := &staticFetcher{data: obs("2024-01-01", 99, "2024-02-01", 2)}
	s, _ := newSyncer(t, f)
	sc := series("nasdaq", "static", "^IXIC")
	require.NoError(t, s.Store.Save(sc.File, obs("2024-01-01", 1)))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Duplicates)
	assert.Equal(t, 1, run.Added)

	got, err := s.Store.Load(sc.File)
	require.NoError(t, err)
	assert.Equal(t, obs("2024-01-01", 1, "2024-02-01", 2), got)
}

func TestSyncSeries_RecordsOutliers(t *testing.T) {
	mock := &collector.MockFetcher{Data: map[string][]model.Observation{
		"UNRATE": obs("2024-01-01", 3.7, "2024-02-01", 42, "2024-03-01", 3.8),
	}}
	s, rec := newSyncer(t, mock)
	sc := series("unemployment_rate", "mock", "UNRATE")
	sc.Start = "2024-01-01"

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusOK, run.Status)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 2, run.Kept)
	require.Len(t, run.Outliers, 1)
	assert.Equal(t, 42.0, run.Outliers[0].Observation.Value)
	assert.Equal(t, model.Range{Min: 0, Max: 20}, run.Outliers[0].Range)

	require.Len(t, rec.runs, 1)
	assert.Same(t, run, rec.runs[0])
	assert.False(t, rec.runs[0].FinishedAt.IsZero())
}

func TestSyncSeries_NoNewData(t *testing.T) {
	s, _ := newSyncer(t, &collector.MockFetcher{})
	sc := series("bitcoin_price", "mock", "BTC-USD")

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusNoData, run.Status)
	assert.False(t, s.Store.Exists(sc.File))
}

func TestSyncSeries_DefaultStart(t *testing.T) {
	mock := &collector.MockFetcher{}
	s, _ := newSyncer(t, mock)
	_, err := s.SyncSeries(context.Background(), series("global_m2", "mock", "M2SL"))
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, DefaultStart, mock.Calls[0].Start)
}

func TestSyncSeries_Overlay(t *testing.T) {
	f := &staticFetcher{data: obs("2024-01-01", 50.005, "2024-02-01", 52, "2024-03-01", 53)}
	s, _ := newSyncer(t, f)
	sc := series("ism_manufacturing", "static", "ISM-pmi-pm.csv")
	sc.Merge = config.MergeOverlay
	require.NoError(t, s.Store.Save(sc.File, obs("2024-01-01", 50, "2024-02-01", 51)))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 1, run.Added)

	got, err := s.Store.Load(sc.File)
	require.NoError(t, err)
	assert.Equal(t, obs("2024-01-01", 50, "2024-02-01", 52, "2024-03-01", 53), got)
}

func TestSyncSeries_CorruptFileIsQuarantined(t *testing.T) {
	mock := &collector.MockFetcher{Data: map[string][]model.Observation{
		"UNRATE": obs("2024-01-01", 3.7, "2024-02-01", 3.9),
	}}
	s, _ := newSyncer(t, mock)
	sc := series("unemployment_rate", "mock", "UNRATE")
	sc.Start = "2024-01-01"
	require.NoError(t, os.WriteFile(s.Store.Path(sc.File), []byte("{{{"), 0o644))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Kept)
	assert.FileExists(t, s.Store.Path(sc.File)+".bak")
}

func TestSyncSeries_CadenceNotDue(t *testing.T) {
	mock := &collector.MockFetcher{}
	s, _ := newSyncer(t, mock)
	sc := series("nasdaq", "mock", "^IXIC")
	sc.Cadence = "0 0 1 * *"
	require.NoError(t, s.Store.Save(sc.File, obs("2024-06-01", 17000)))

	run, err := s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSkipped, run.Status)
	assert.Contains(t, run.Reason, "2024-07-01")
	assert.Empty(t, mock.Calls)

	s.IgnoreCadence = true
	_, err = s.SyncSeries(context.Background(), sc)
	require.NoError(t, err)
	assert.Len(t, mock.Calls, 1)
}

func TestSyncSeries_FetchError(t *testing.T) {
	s, rec := newSyncer(t, &staticFetcher{err: errors.New("upstream down")})
	run, err := s.SyncSeries(context.Background(), series("nasdaq", "static", "^IXIC"))
	require.Error(t, err)
	assert.Equal(t, recorder.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "upstream down")
	require.Len(t, rec.runs, 1)
}

func TestRunAll(t *testing.T) {
	monthly := make([]model.Observation, 0, 24)
	for i := 0; i < 24; i++ {
		monthly = append(monthly, model.Observation{
			Date:  model.NewDate(2022, time.January+time.Month(i), 1),
			Value: float64(100 + i),
		})
	}
	mock := &collector.MockFetcher{Data: map[string][]model.Observation{
		"UNRATE": obs("2024-05-01", 4.0),
	}}
	broken := &staticFetcher{err: errors.New("timeout")}
	s, rec := newSyncer(t, mock, broken)

	nasdaq := series("nasdaq", "mock", "^IXIC")
	nasdaq.YoYFile = "nasdaq_yoy.json"
	unrate := series("unemployment_rate", "mock", "UNRATE")
	btc := series("bitcoin_price", "static", "BTC-USD")
	s.Series = []config.SeriesConfig{btc, nasdaq, unrate}

	require.NoError(t, s.Store.Save(nasdaq.File, monthly))
	require.NoError(t, s.Store.Save(unrate.File, obs("2024-04-01", 3.9, "2024-04-01", 3.8)))

	sum, err := s.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, 1, sum.Failed())
	require.Len(t, sum.Runs, 3)
	assert.Len(t, rec.runs, 3)

	got, err := s.Store.Load(unrate.File)
	require.NoError(t, err)
	assert.Equal(t, obs("2024-04-01", 3.9, "2024-05-01", 4.0), got, "other series still synced")

	// 2022-12 already has an anchor: 2022-01 is 31 days from 2021-12-01.
	assert.Equal(t, 13, sum.YoY["nasdaq"])
	yoy, err := s.Store.Load(nasdaq.YoYFile)
	require.NoError(t, err)
	require.Len(t, yoy, 13)
	assert.Equal(t, obs("2022-12-01", 11, "2023-01-01", 12), yoy[:2])
	assert.Equal(t, 10.81, yoy[12].Value)

	for _, r := range sum.FinalIntegrity {
		assert.True(t, r.OK, r.File)
	}
}

func TestCheckIntegrity_Repairs(t *testing.T) {
	s, _ := newSyncer(t)
	sc := series("yield_curve", "mock", "T10Y2Y")
	s.Series = []config.SeriesConfig{sc}
	require.NoError(t, os.WriteFile(s.Store.Path(sc.File),
		[]byte("[\n  {\"date\": \"2024-01-02\", \"value\": 0.3},\n"), 0o644))

	res := s.CheckIntegrity(context.Background(), false)
	require.Len(t, res, 1)
	assert.False(t, res[0].OK)
	assert.Error(t, res[0].Err)

	res = s.CheckIntegrity(context.Background(), true)
	require.Len(t, res, 1)
	assert.True(t, res[0].OK)
	assert.True(t, res[0].Repaired)

	got, err := s.Store.Load(sc.File)
	require.NoError(t, err)
	assert.Equal(t, obs("2024-01-02", 0.3), got)
}

func TestDeriveYoY_RequiresFile(t *testing.T) {
	s, _ := newSyncer(t)
	_, err := s.DeriveYoY(context.Background(), series("nasdaq", "mock", "^IXIC"))
	assert.ErrorContains(t, err, "no yoy_file")
}

func TestDue(t *testing.T) {
	latest := d("2024-05-01")
	tests := []struct {
		name    string
		cadence string
		now     time.Time
		want    bool
	}{
		{"no cadence", "", testNow, true},
		{"monthly before next", "0 0 1 * *", time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), false},
		{"monthly at next", "0 0 1 * *", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"daily", "0 6 * * *", time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Due(tt.cadence, latest, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, _, err := Due("nonsense", latest, testNow)
	assert.Error(t, err)
}
