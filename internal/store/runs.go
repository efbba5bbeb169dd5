package store

import (
	"context"
	"fmt"
	"time"

	"github.com/leadscout/leadscout/internal/lead"
)

// InsertRun records a freshly started pipeline execution.
func (s *Store) InsertRun(ctx context.Context, run lead.Run) error {
	err := withRetry(ctx, s.logger, "insert run", s.initDelay, func() error {
		_, execErr := s.db.Exec(ctx, `
INSERT INTO runs (id, trigger, stage, status, fetched_count, new_item_count, latest_item_before, started_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			run.ID,
			run.Trigger,
			string(run.Stage),
			string(run.Status),
			run.FetchedCount,
			run.NewItemCount,
			run.LatestItemBefore,
			run.StartedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRunStage persists a stage transition so an external observer can see
// exactly where a hung or crashed run stopped.
func (s *Store) UpdateRunStage(ctx context.Context, runID string, stage lead.Stage) error {
	err := withRetry(ctx, s.logger, "update run stage", s.writeDelay, func() error {
		_, execErr := s.db.Exec(ctx,
			`UPDATE runs SET stage = $2 WHERE id = $1`,
			runID, string(stage),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update run stage: %w", err)
	}
	return nil
}

// FinishRun writes the terminal state of a run. It must succeed even for
// failed runs; the run row is the pipeline's only health surface.
func (s *Store) FinishRun(ctx context.Context, run lead.Run, finishedAt time.Time) error {
	err := withRetry(ctx, s.logger, "finish run", s.writeDelay, func() error {
		_, execErr := s.db.Exec(ctx, `
UPDATE runs SET
	stage = $2,
	status = $3,
	fetched_count = $4,
	new_item_count = $5,
	latest_item_after = $6,
	error_message = $7,
	finished_at = $8
WHERE id = $1`,
			run.ID,
			string(run.Stage),
			string(run.Status),
			run.FetchedCount,
			run.NewItemCount,
			run.LatestItemAfter,
			lead.TruncateError(run.ErrorMessage),
			finishedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
