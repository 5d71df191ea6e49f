package syncer

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"EconSync/internal/model"
)

// Due reports whether a series whose latest observation is latest should be
// fetched at now, given a standard 5-field cron cadence. An empty cadence is
// always due. The returned time is the next scheduled fetch.
func Due(cadence string, latest model.Date, now time.Time) (bool, time.Time, error) {
	if cadence == "" {
		return true, now, nil
	}
	sched, err := cron.ParseStandard(cadence)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("cadence %q: %w", cadence, err)
	}
	next := sched.Next(latest.Time())
	return !next.After(now), next, nil
}
