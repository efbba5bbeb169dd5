// Package runtrack records the run lifecycle state machine and runs the
// post-hoc freshness watchdog that catches silent pipeline failure.
package runtrack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/clock"
	"github.com/leadscout/leadscout/internal/lead"
)

// ErrStageRegression is returned when a transition would move a run
// backwards through the stage sequence.
var ErrStageRegression = errors.New("run stage cannot regress")

// Store is the persistence surface for run records.
type Store interface {
	InsertRun(ctx context.Context, run lead.Run) error
	UpdateRunStage(ctx context.Context, runID string, stage lead.Stage) error
	FinishRun(ctx context.Context, run lead.Run, finishedAt time.Time) error
}

// Tracker owns one Run record. Transitions are kept in memory from BOOT and
// persisted from the moment Begin succeeds, so an external observer can
// diagnose exactly where a hung or crashed run stopped.
type Tracker struct {
	run      lead.Run
	store    Store
	clk      clock.Clock
	logger   *zap.Logger
	recorded bool
}

// New creates a tracker at StageBoot. Nothing is persisted yet; the store
// may not even be initialized at this point.
func New(trigger string, store Store, clk clock.Clock, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		run: lead.Run{
			ID:        uuid.NewString(),
			Trigger:   trigger,
			Stage:     lead.StageBoot,
			Status:    lead.RunRunning,
			StartedAt: clk.Now(),
		},
		store:  store,
		clk:    clk,
		logger: logger,
	}
}

// Run returns a copy of the current run record.
func (t *Tracker) Run() lead.Run { return t.run }

// SetCounts records fetch statistics on the run.
func (t *Tracker) SetCounts(fetched, newItems int) {
	t.run.FetchedCount = fetched
	t.run.NewItemCount = newItems
}

// SetLatestBefore records the newest stored item timestamp observed before
// this run ingested anything.
func (t *Tracker) SetLatestBefore(ts *time.Time) { t.run.LatestItemBefore = ts }

// SetLatestAfter records the newest stored item timestamp after processing.
func (t *Tracker) SetLatestAfter(ts *time.Time) { t.run.LatestItemAfter = ts }

// Begin persists the run row. Call once the store is ready; stage
// transitions before this are memory-only.
func (t *Tracker) Begin(ctx context.Context) error {
	if err := t.store.InsertRun(ctx, t.run); err != nil {
		return fmt.Errorf("begin run tracking: %w", err)
	}
	t.recorded = true
	return nil
}

// Advance moves the run forward to stage. Moving backwards or to an unknown
// stage is an error; FAILED is reached through Fail, not Advance.
func (t *Tracker) Advance(ctx context.Context, stage lead.Stage) error {
	next := lead.StageIndex(stage)
	if next == -1 {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if current := lead.StageIndex(t.run.Stage); next <= current {
		return fmt.Errorf("%w: %s -> %s", ErrStageRegression, t.run.Stage, stage)
	}

	t.run.Stage = stage
	t.logger.Info("run stage", zap.String("run_id", t.run.ID), zap.String("stage", string(stage)))

	if !t.recorded {
		return nil
	}
	if err := t.store.UpdateRunStage(ctx, t.run.ID, stage); err != nil {
		return fmt.Errorf("persist stage %s: %w", stage, err)
	}
	return nil
}

// Complete marks the run successful and writes the terminal record.
func (t *Tracker) Complete(ctx context.Context) error {
	if err := t.Advance(ctx, lead.StageRunCompleted); err != nil {
		return err
	}
	t.run.Status = lead.RunSuccess
	finished := t.clk.Now()
	t.run.FinishedAt = &finished
	if !t.recorded {
		return nil
	}
	if err := t.store.FinishRun(ctx, t.run, finished); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Fail jumps the run to FAILED from any stage, storing the truncated cause.
// It is best-effort: the run row must be written even when the store is the
// thing that failed, so persistence errors are logged, not returned.
func (t *Tracker) Fail(ctx context.Context, cause error) {
	t.run.Stage = lead.StageFailed
	t.run.Status = lead.RunFailed
	if cause != nil {
		t.run.ErrorMessage = lead.TruncateError(cause.Error())
	}
	finished := t.clk.Now()
	t.run.FinishedAt = &finished

	t.logger.Error("run failed",
		zap.String("run_id", t.run.ID),
		zap.String("error", t.run.ErrorMessage),
	)

	if !t.recorded {
		return
	}
	if err := t.store.FinishRun(ctx, t.run, finished); err != nil {
		t.logger.Error("failed to persist failed run", zap.String("run_id", t.run.ID), zap.Error(err))
	}
}
