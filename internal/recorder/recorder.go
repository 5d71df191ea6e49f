package recorder

import (
	"time"

	"github.com/google/uuid"

	"EconSync/internal/reconcile"
)

// Run statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusNoData  = "no_data"
	StatusFailed  = "failed"
)

// RunRecord describes one synchronization attempt of a series.
type RunRecord struct {
	RunID      uuid.UUID
	Series     string
	StartedAt  time.Time
	FinishedAt time.Time
	From       string // first date requested, empty when nothing was fetched
	Fetched    int
	Added      int
	Updated    int
	Duplicates int
	Outliers   []reconcile.Outlier
	Kept       int
	Status     string
	Reason     string
	Error      string
}

// NewRun starts a record for series with a fresh run id.
func NewRun(series string, now time.Time) *RunRecord {
	return &RunRecord{RunID: uuid.New(), Series: series, StartedAt: now, Status: StatusOK}
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(run *RunRecord) error
	Close() error
}
