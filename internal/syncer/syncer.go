package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"EconSync/internal/collector"
	"EconSync/internal/config"
	"EconSync/internal/model"
	"EconSync/internal/reconcile"
	"EconSync/internal/recorder"
	"EconSync/internal/store"
)

// DefaultStart is the first date fetched for a series with no data and no configured start.
var DefaultStart = model.NewDate(1990, time.January, 1)

// Syncer keeps the series files in Store up to date.
type Syncer struct {
	Store     *store.Store
	Collector *collector.Collector
	Recorder  recorder.Recorder
	Registry  reconcile.Registry
	Series    []config.SeriesConfig

	// OverlayTolerance is the smallest difference that replaces a persisted value
	// for series with merge mode overlay.
	OverlayTolerance float64
	// IgnoreCadence fetches every series regardless of its cadence.
	IgnoreCadence bool
	Now           func() time.Time
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Syncer) recorder() recorder.Recorder {
	if s.Recorder == nil {
		return recorder.NewNoopRecorder()
	}
	return s.Recorder
}

// SyncSeries fetches the observations newer than the latest persisted one,
// reconciles them with the file and saves the result. Skipped and empty
// fetches are not errors; the returned record says what happened.
func (s *Syncer) SyncSeries(ctx context.Context, sc config.SeriesConfig) (*recorder.RunRecord, error) {
	run := recorder.NewRun(sc.Name, s.now())
	err := s.syncSeries(ctx, sc, run)
	run.FinishedAt = s.now()
	if err != nil {
		run.Status = recorder.StatusFailed
		run.Error = err.Error()
	}
	if rerr := s.recorder().RecordRun(run); rerr != nil {
		log.WithError(rerr).WithField("series", sc.Name).Error("record run")
	}
	return run, err
}

func (s *Syncer) syncSeries(ctx context.Context, sc config.SeriesConfig, run *recorder.RunRecord) error {
	logger := log.WithField("series", sc.Name)
	rng := sc.ValueRange(s.Registry)

	existing, err := s.Store.LoadOrQuarantine(sc.File)
	if err != nil {
		return fmt.Errorf("load %s: %w", sc.File, err)
	}
	existing, pre := reconcile.Clean(existing, rng)
	run.Duplicates = pre.Duplicates
	run.Outliers = pre.Outliers
	logOutliers(logger, pre.Outliers)

	today := model.DateOf(run.StartedAt)
	start, err := s.startDate(sc, existing)
	if err != nil {
		return err
	}
	if !start.Before(today) {
		run.Status, run.Reason = recorder.StatusSkipped, "up to date"
		run.Kept = len(existing)
		logger.WithField("latest", start.AddDays(-1)).Info("already up to date")
		return nil
	}
	if latest, ok := model.Latest(existing); ok && !s.IgnoreCadence {
		due, next, err := Due(sc.Cadence, latest, run.StartedAt)
		if err != nil {
			return err
		}
		if !due {
			run.Status, run.Reason = recorder.StatusSkipped, "next update due "+next.Format(time.DateOnly)
			run.Kept = len(existing)
			logger.WithField("next", next.Format(time.DateOnly)).Info("not due yet")
			return nil
		}
	}

	run.From = start.String()
	logger.WithFields(log.Fields{"from": start, "to": today}).Info("fetching")
	fetched, err := s.Collector.Fetch(ctx, sc.SourceKey(), collector.Request{
		Series:   sc.Name,
		Symbol:   sc.Symbol,
		Start:    start,
		End:      today,
		Interval: sc.Interval,
	})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	run.Fetched = len(fetched)
	if len(fetched) == 0 {
		run.Status, run.Reason = recorder.StatusNoData, "no new data"
		run.Kept = len(existing)
		logger.Info("no new data")
		return nil
	}

	var merged []model.Observation
	if sc.Merge == config.MergeOverlay {
		var orep reconcile.OverlayReport
		merged, orep = reconcile.Overlay(existing, fetched, s.OverlayTolerance)
		run.Updated = orep.Updated
	} else {
		merged = reconcile.Merge(existing, fetched)
	}
	cleaned, rep := reconcile.Clean(merged, rng)
	run.Duplicates += rep.Duplicates
	run.Outliers = append(run.Outliers, rep.Outliers...)
	run.Kept = len(cleaned)
	run.Added = len(cleaned) - len(existing)

	logOutliers(logger, rep.Outliers)
	if err := s.Store.Save(sc.File, cleaned); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	logger.WithFields(log.Fields{
		"added":      run.Added,
		"updated":    run.Updated,
		"duplicates": run.Duplicates,
		"outliers":   len(run.Outliers),
		"total":      run.Kept,
	}).Info("series updated")
	return nil
}

func (s *Syncer) startDate(sc config.SeriesConfig, existing []model.Observation) (model.Date, error) {
	if latest, ok := model.Latest(existing); ok {
		return latest.AddDays(1), nil
	}
	start, err := sc.StartDate()
	if err != nil {
		return model.Date{}, err
	}
	if start.IsZero() {
		return DefaultStart, nil
	}
	return start, nil
}

// CleanResult is the outcome of cleaning one series file.
type CleanResult struct {
	Series string
	Report reconcile.CleanReport
}

// CleanAll deduplicates, range-filters and sorts every existing series file.
func (s *Syncer) CleanAll(ctx context.Context) ([]CleanResult, error) {
	var (
		results []CleanResult
		errs    []error
	)
	for _, sc := range s.Series {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !s.Store.Exists(sc.File) {
			continue
		}
		logger := log.WithField("series", sc.Name)
		data, err := s.Store.LoadOrQuarantine(sc.File)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sc.Name, err))
			continue
		}
		cleaned, rep := reconcile.Clean(data, sc.ValueRange(s.Registry))
		logOutliers(logger, rep.Outliers)
		if err := s.Store.Save(sc.File, cleaned); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sc.Name, err))
			continue
		}
		if rep.Removed() > 0 {
			logger.WithFields(log.Fields{
				"duplicates": rep.Duplicates,
				"outliers":   len(rep.Outliers),
			}).Info("cleaned")
		}
		results = append(results, CleanResult{Series: sc.Name, Report: rep})
	}
	return results, errors.Join(errs...)
}

// DeriveYoY writes the year-over-year series of sc to its yoy file and returns
// the number of derived points.
func (s *Syncer) DeriveYoY(ctx context.Context, sc config.SeriesConfig) (int, error) {
	if sc.YoYFile == "" {
		return 0, fmt.Errorf("series %q has no yoy_file", sc.Name)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := s.Store.Load(sc.File)
	if err != nil {
		return 0, err
	}
	data, _ = reconcile.Clean(data, sc.ValueRange(s.Registry))
	yoy := reconcile.DeriveYoY(data)
	if err := s.Store.Save(sc.YoYFile, yoy); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"series": sc.Name, "file": sc.YoYFile, "points": len(yoy)}).Info("yoy derived")
	return len(yoy), nil
}

// IntegrityResult is the outcome of checking one data file.
type IntegrityResult struct {
	File     string
	OK       bool
	Repaired bool
	Err      error
}

// CheckIntegrity verifies every series and yoy file that exists. When repair is
// set, corrupt files are repaired where possible.
func (s *Syncer) CheckIntegrity(ctx context.Context, repair bool) []IntegrityResult {
	var results []IntegrityResult
	for _, file := range s.files() {
		if ctx.Err() != nil {
			break
		}
		if !s.Store.Exists(file) {
			continue
		}
		res := IntegrityResult{File: file}
		err := s.Store.Check(file)
		switch {
		case err == nil:
			res.OK = true
		case !repair:
			res.Err = err
		default:
			logger := log.WithField("file", file)
			logger.WithError(err).Warn("integrity check failed, attempting repair")
			if res.Repaired, res.Err = s.Store.Repair(file); res.Err == nil {
				res.OK = true
				logger.Info("repaired")
			} else {
				logger.WithError(res.Err).Error("repair failed")
			}
		}
		results = append(results, res)
	}
	return results
}

func (s *Syncer) files() []string {
	var files []string
	for _, sc := range s.Series {
		files = append(files, sc.File)
		if sc.YoYFile != "" {
			files = append(files, sc.YoYFile)
		}
	}
	return files
}

// Summary describes a full RunAll pass.
type Summary struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	Integrity      []IntegrityResult
	Cleaned        []CleanResult
	Runs           []*recorder.RunRecord
	YoY            map[string]int
	FinalIntegrity []IntegrityResult
	Errors         []error
}

// Err joins all errors collected during the pass.
func (s *Summary) Err() error { return errors.Join(s.Errors...) }

// Failed returns the number of series whose sync failed.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Runs {
		if r.Status == recorder.StatusFailed {
			n++
		}
	}
	return n
}

// RunAll performs the complete update: integrity check with repair, cleaning,
// syncing every series, YoY derivation and a final integrity check. A failing
// series never stops the others; all errors are joined in the returned error.
func (s *Syncer) RunAll(ctx context.Context) (*Summary, error) {
	sum := &Summary{StartedAt: s.now(), YoY: make(map[string]int)}
	if err := s.Store.EnsureDir(); err != nil {
		return sum, err
	}

	// Unrepairable files are already quarantined; their series start over.
	sum.Integrity = s.CheckIntegrity(ctx, true)

	cleaned, err := s.CleanAll(ctx)
	sum.Cleaned = cleaned
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Errorf("clean: %w", err))
	}

	for _, sc := range s.Series {
		if err := ctx.Err(); err != nil {
			sum.Errors = append(sum.Errors, err)
			break
		}
		run, err := s.SyncSeries(ctx, sc)
		sum.Runs = append(sum.Runs, run)
		if err != nil {
			log.WithError(err).WithField("series", sc.Name).Error("sync failed")
			sum.Errors = append(sum.Errors, fmt.Errorf("%s: %w", sc.Name, err))
		}
	}

	for _, sc := range s.Series {
		if sc.YoYFile == "" || ctx.Err() != nil {
			continue
		}
		n, err := s.DeriveYoY(ctx, sc)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Errorf("yoy %s: %w", sc.Name, err))
			continue
		}
		sum.YoY[sc.Name] = n
	}

	sum.FinalIntegrity = s.CheckIntegrity(ctx, false)
	for _, r := range sum.FinalIntegrity {
		if r.Err != nil {
			sum.Errors = append(sum.Errors, fmt.Errorf("final check %s: %w", r.File, r.Err))
		}
	}
	sum.FinishedAt = s.now()
	return sum, sum.Err()
}

func logOutliers(logger *log.Entry, outliers []reconcile.Outlier) {
	for _, o := range outliers {
		logger.WithFields(log.Fields{
			"date":  o.Observation.Date,
			"value": o.Observation.Value,
			"range": o.Range,
		}).Warn("value out of range, dropped")
	}
}
