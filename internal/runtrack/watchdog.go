package runtrack

import (
	"fmt"
	"time"
)

// ErrStale wraps the freshness violation details for the run record.
type ErrStale struct {
	Latest    *time.Time
	Threshold time.Duration
}

func (e *ErrStale) Error() string {
	if e.Latest == nil {
		return fmt.Sprintf("freshness watchdog: store has no items within %s (store empty)", e.Threshold)
	}
	return fmt.Sprintf("freshness watchdog: newest item %s is older than threshold %s",
		e.Latest.Format(time.RFC3339), e.Threshold)
}

// CheckFreshness fails when no stored item is newer than now minus the
// threshold. This is the post-hoc net-zero-data detector: every adapter and
// provider can degrade gracefully and the run still must not pass if nothing
// new actually landed.
func CheckFreshness(latest *time.Time, now time.Time, threshold time.Duration) error {
	if latest == nil || now.Sub(*latest) > threshold {
		return &ErrStale{Latest: latest, Threshold: threshold}
	}
	return nil
}
