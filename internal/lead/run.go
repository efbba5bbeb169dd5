package lead

import (
	"time"
	"unicode/utf8"
)

// RunStatus is the terminal disposition of a pipeline execution.
type RunStatus string

// Run statuses.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Stage is a named position in the run lifecycle state machine.
type Stage string

// The run lifecycle stages, in order. StageFailed is reachable from any
// stage; otherwise a run only moves forward through this sequence.
const (
	StageBoot               Stage = "BOOT"
	StageConfigValidated    Stage = "CONFIG_VALIDATED"
	StageDBInitialized      Stage = "DB_INITIALIZED"
	StageRunTrackingStarted Stage = "RUN_TRACKING_STARTED"
	StageInitialStatsLoaded Stage = "INITIAL_STATS_LOADED"
	StageFetchStarted       Stage = "FETCH_STARTED"
	StageFetchCompleted     Stage = "FETCH_COMPLETED"
	StageProcessCompleted   Stage = "PROCESS_COMPLETED"
	StageCleanupCompleted   Stage = "CLEANUP_COMPLETED"
	StageFreshnessValidated Stage = "FRESHNESS_VALIDATED"
	StageRunCompleted       Stage = "RUN_COMPLETED"
	StageFailed             Stage = "FAILED"
)

// StageOrder lists the forward sequence used to reject regressions.
var StageOrder = []Stage{
	StageBoot,
	StageConfigValidated,
	StageDBInitialized,
	StageRunTrackingStarted,
	StageInitialStatsLoaded,
	StageFetchStarted,
	StageFetchCompleted,
	StageProcessCompleted,
	StageCleanupCompleted,
	StageFreshnessValidated,
	StageRunCompleted,
}

// StageIndex returns the position of s in the forward sequence, or -1 for
// StageFailed and unknown stages.
func StageIndex(s Stage) int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// MaxErrorMessageLen bounds the error text persisted with a failed run.
const MaxErrorMessageLen = 500

// TruncateError trims an error message to the persisted bound. The cut
// backs up to a rune boundary so the result stays valid UTF-8 for the
// text column.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	cut := MaxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// Run records one pipeline execution. It is the only externally queryable
// health surface for the pipeline and is written even on failure.
type Run struct {
	ID               string
	Trigger          string
	Stage            Stage
	Status           RunStatus
	FetchedCount     int
	NewItemCount     int
	LatestItemBefore *time.Time
	LatestItemAfter  *time.Time
	ErrorMessage     string
	StartedAt        time.Time
	FinishedAt       *time.Time
}
