package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/lead"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s := NewWithDB(mock, config.PipelineConfig{
		StoreRetryInitDelayMs:   1,
		StoreRetryWriteDelaySec: 1,
	}, zap.NewNop())
	// Tests should not sit out the steady-state write delay.
	s.writeDelay = time.Millisecond
	return s, mock
}

func sampleItem() lead.ClassifiedItem {
	at := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	return lead.ClassifiedItem{
		Post: lead.RawPost{
			Source:    lead.SourceForum,
			SourceID:  "abc123",
			SourceURL: "https://forum.example/abc123",
			Title:     "Looking for a developer",
			Content:   "budget $5k",
			PostedAt:  &at,
		},
		Judgment: lead.Judgment{
			Relevance: 8, Severity: 6, Score: 7,
			Summary: "hiring", Category: "saas",
			Source: lead.ProviderJudgment("primary"),
		},
		BaitScore: 10,
		Status:    lead.StatusNew,
	}
}

func TestInsertItemReturnsID(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	item := sampleItem()

	mock.ExpectQuery(`INSERT INTO items`).
		WithArgs(
			string(item.Post.Source), item.Post.SourceID, item.Post.SourceURL,
			item.Post.Title, item.Post.Content, item.Post.Author, item.Post.Topic, item.Post.PostedAt,
			item.Judgment.Relevance, item.Judgment.Severity, item.Judgment.Score,
			item.Judgment.Summary, item.Judgment.Category, string(item.Judgment.Source),
			item.BaitScore, item.IsBait, string(item.Status), item.Notes,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(17)))

	id, inserted, err := s.InsertItem(context.Background(), item)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, int64(17), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertItemConflictIsAlreadyExists(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	item := sampleItem()

	// ON CONFLICT DO NOTHING produces no row; the natural-key race must land
	// as inserted=false, not as an error.
	mock.ExpectQuery(`INSERT INTO items`).
		WithArgs(
			string(item.Post.Source), item.Post.SourceID, item.Post.SourceURL,
			item.Post.Title, item.Post.Content, item.Post.Author, item.Post.Topic, item.Post.PostedAt,
			item.Judgment.Relevance, item.Judgment.Severity, item.Judgment.Score,
			item.Judgment.Summary, item.Judgment.Category, string(item.Judgment.Source),
			item.BaitScore, item.IsBait, string(item.Status), item.Notes,
		).
		WillReturnError(pgx.ErrNoRows)

	_, inserted, err := s.InsertItem(context.Background(), item)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemExists(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("forum", "abc123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.ItemExists(context.Background(), lead.SourceForum, "abc123")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemExistsRetriesTransient(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("forum", "abc123").
		WillReturnError(transientErr())
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("forum", "abc123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := s.ItemExists(context.Background(), lead.SourceForum, "abc123")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestItemTimestamp(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	latest := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT MAX`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&latest))

	got, err := s.LatestItemTimestamp(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, latest.Equal(*got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignClusterChunks(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	ids := make([]int64, assignChunkSize+10)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	mock.ExpectExec(`UPDATE items SET cluster_id`).
		WithArgs(int64(9), ids[:assignChunkSize]).
		WillReturnResult(pgxmock.NewResult("UPDATE", int64(assignChunkSize)))
	mock.ExpectExec(`UPDATE items SET cluster_id`).
		WithArgs(int64(9), ids[assignChunkSize:]).
		WillReturnResult(pgxmock.NewResult("UPDATE", 10))

	require.NoError(t, s.AssignCluster(context.Background(), 9, ids))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCluster(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	c := lead.Cluster{
		Name:            "Automation",
		PostCount:       5,
		AvgScore:        7.2,
		ValidationLevel: lead.ValidationHigh,
		Industries:      []string{"saas"},
		BestQuotes:      []string{"we waste hours"},
	}

	mock.ExpectQuery(`INSERT INTO clusters`).
		WithArgs(
			c.Name, c.PostCount, c.AvgScore, string(c.ValidationLevel),
			[]byte(`["saas"]`), []byte(`["we waste hours"]`), c.Synthesis,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := s.UpsertCluster(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, int64(3), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunTruncatesError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	long := make([]byte, lead.MaxErrorMessageLen+100)
	for i := range long {
		long[i] = 'x'
	}
	run := lead.Run{
		ID:           "11111111-2222-3333-4444-555555555555",
		Stage:        lead.StageFailed,
		Status:       lead.RunFailed,
		ErrorMessage: string(long),
	}
	finished := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE runs SET`).
		WithArgs(
			run.ID, string(run.Stage), string(run.Status),
			run.FetchedCount, run.NewItemCount, run.LatestItemAfter,
			string(long[:lead.MaxErrorMessageLen]), finished,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FinishRun(context.Background(), run, finished))
	require.NoError(t, mock.ExpectationsWereMet())
}
