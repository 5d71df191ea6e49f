package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"EconSync/internal/model"
	"EconSync/internal/reconcile"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets readers inspect history while a sync is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Debug("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL UNIQUE,
			series      TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			from_date   TEXT,
			fetched     INTEGER,
			added       INTEGER,
			updated     INTEGER,
			duplicates  INTEGER,
			outliers    INTEGER,
			kept        INTEGER,
			status      TEXT,
			reason      TEXT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_series_ts ON sync_runs(series, started_at)`,

		`CREATE TABLE IF NOT EXISTS outliers (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			series    TEXT NOT NULL,
			date      TEXT NOT NULL,
			value     REAL,
			range_min REAL,
			range_max REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outliers_run ON outliers(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores run and its outliers in one transaction.
func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.Unix()
	}
	_, err = tx.Exec(`INSERT INTO sync_runs
		(run_id, series, started_at, finished_at, from_date,
		 fetched, added, updated, duplicates, outliers, kept,
		 status, reason, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.RunID.String(), run.Series, run.StartedAt.Unix(), finished, run.From,
		run.Fetched, run.Added, run.Updated, run.Duplicates, len(run.Outliers), run.Kept,
		run.Status, run.Reason, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, o := range run.Outliers {
		_, err := tx.Exec(`INSERT INTO outliers
			(run_id, series, date, value, range_min, range_max)
			VALUES (?,?,?,?,?,?)`,
			run.RunID.String(), run.Series, o.Observation.Date.String(), o.Observation.Value,
			o.Range.Min, o.Range.Max,
		)
		if err != nil {
			return fmt.Errorf("insert outlier: %w", err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first. An empty series matches all.
func (r *SQLiteRecorder) RecentRuns(series string, limit int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT run_id, series, started_at, finished_at, from_date,
			fetched, added, updated, duplicates, kept, status, reason, error
		FROM sync_runs
		WHERE ? = '' OR series = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, series, series, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run              RunRecord
			id               string
			started          int64
			finished         sql.NullInt64
			from, reason, er sql.NullString
		)
		if err := rows.Scan(&id, &run.Series, &started, &finished, &from,
			&run.Fetched, &run.Added, &run.Updated, &run.Duplicates, &run.Kept,
			&run.Status, &reason, &er); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			run.FinishedAt = time.Unix(finished.Int64, 0).UTC()
		}
		run.From, run.Reason, run.Error = from.String, reason.String, er.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		outliers, err := r.outliers(runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Outliers = outliers
	}
	return runs, nil
}

func (r *SQLiteRecorder) outliers(runID uuid.UUID) ([]reconcile.Outlier, error) {
	rows, err := r.db.Query(`SELECT date, value, range_min, range_max
		FROM outliers WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query outliers: %w", err)
	}
	defer rows.Close()

	var out []reconcile.Outlier
	for rows.Next() {
		var (
			date string
			o    reconcile.Outlier
		)
		if err := rows.Scan(&date, &o.Observation.Value, &o.Range.Min, &o.Range.Max); err != nil {
			return nil, fmt.Errorf("scan outlier: %w", err)
		}
		if o.Observation.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("outlier date: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Debug("closing sqlite recorder")
	return r.db.Close()
}

// Open returns a SQLite recorder for path, or a NoopRecorder when path is empty
// or the database cannot be opened.
func Open(path string) Recorder {
	if path == "" {
		return NewNoopRecorder()
	}
	rec, err := NewSQLiteRecorder(path)
	if err != nil {
		log.WithError(err).Warn("run history disabled")
		return NewNoopRecorder()
	}
	return rec
}
