package runtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/lead"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeRunStore struct {
	inserted []lead.Run
	stages   []lead.Stage
	finished []lead.Run
	failNext error
}

func (f *fakeRunStore) InsertRun(_ context.Context, run lead.Run) error {
	if f.failNext != nil {
		return f.failNext
	}
	f.inserted = append(f.inserted, run)
	return nil
}

func (f *fakeRunStore) UpdateRunStage(_ context.Context, _ string, stage lead.Stage) error {
	if f.failNext != nil {
		return f.failNext
	}
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeRunStore) FinishRun(_ context.Context, run lead.Run, _ time.Time) error {
	if f.failNext != nil {
		return f.failNext
	}
	f.finished = append(f.finished, run)
	return nil
}

func newTestTracker(store *fakeRunStore) *Tracker {
	return New("test", store, fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}, zap.NewNop())
}

func TestTrackerForwardProgression(t *testing.T) {
	t.Parallel()

	store := &fakeRunStore{}
	tr := newTestTracker(store)
	ctx := context.Background()

	// Pre-Begin stages are memory-only.
	require.NoError(t, tr.Advance(ctx, lead.StageConfigValidated))
	require.NoError(t, tr.Advance(ctx, lead.StageDBInitialized))
	require.Empty(t, store.stages)

	require.NoError(t, tr.Begin(ctx))
	require.Len(t, store.inserted, 1)
	require.Equal(t, lead.StageDBInitialized, store.inserted[0].Stage)

	require.NoError(t, tr.Advance(ctx, lead.StageRunTrackingStarted))
	require.NoError(t, tr.Advance(ctx, lead.StageFetchStarted)) // skipping stages forward is allowed
	require.Equal(t, []lead.Stage{lead.StageRunTrackingStarted, lead.StageFetchStarted}, store.stages)
}

func TestTrackerRejectsRegression(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(&fakeRunStore{})
	ctx := context.Background()

	require.NoError(t, tr.Advance(ctx, lead.StageFetchCompleted))
	err := tr.Advance(ctx, lead.StageFetchStarted)
	require.ErrorIs(t, err, ErrStageRegression)

	// Same stage is also a regression.
	err = tr.Advance(ctx, lead.StageFetchCompleted)
	require.ErrorIs(t, err, ErrStageRegression)
}

func TestTrackerComplete(t *testing.T) {
	t.Parallel()

	store := &fakeRunStore{}
	tr := newTestTracker(store)
	ctx := context.Background()

	require.NoError(t, tr.Begin(ctx))
	tr.SetCounts(10, 4)
	require.NoError(t, tr.Complete(ctx))

	require.Len(t, store.finished, 1)
	final := store.finished[0]
	require.Equal(t, lead.RunSuccess, final.Status)
	require.Equal(t, lead.StageRunCompleted, final.Stage)
	require.Equal(t, 10, final.FetchedCount)
	require.Equal(t, 4, final.NewItemCount)
	require.NotNil(t, final.FinishedAt)
}

func TestTrackerFailFromAnyStage(t *testing.T) {
	t.Parallel()

	store := &fakeRunStore{}
	tr := newTestTracker(store)
	ctx := context.Background()

	require.NoError(t, tr.Begin(ctx))
	require.NoError(t, tr.Advance(ctx, lead.StageProcessCompleted))

	tr.Fail(ctx, errors.New("adapter meltdown"))

	require.Len(t, store.finished, 1)
	final := store.finished[0]
	require.Equal(t, lead.RunFailed, final.Status)
	require.Equal(t, lead.StageFailed, final.Stage)
	require.Equal(t, "adapter meltdown", final.ErrorMessage)
}

func TestTrackerFailTruncatesMessage(t *testing.T) {
	t.Parallel()

	store := &fakeRunStore{}
	tr := newTestTracker(store)
	require.NoError(t, tr.Begin(context.Background()))

	long := make([]byte, lead.MaxErrorMessageLen*2)
	for i := range long {
		long[i] = 'e'
	}
	tr.Fail(context.Background(), errors.New(string(long)))
	require.Len(t, store.finished[0].ErrorMessage, lead.MaxErrorMessageLen)
}

func TestCheckFreshness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	threshold := 24 * time.Hour

	fresh := now.Add(-23 * time.Hour)
	require.NoError(t, CheckFreshness(&fresh, now, threshold))

	boundary := now.Add(-threshold)
	require.NoError(t, CheckFreshness(&boundary, now, threshold))

	stale := now.Add(-25 * time.Hour)
	err := CheckFreshness(&stale, now, threshold)
	require.Error(t, err)
	var es *ErrStale
	require.ErrorAs(t, err, &es)

	require.Error(t, CheckFreshness(nil, now, threshold))
}
