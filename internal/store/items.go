package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/leadscout/leadscout/internal/lead"
)

// assignChunkSize bounds the ID list of a single cluster back-assignment
// update to keep query payloads small.
const assignChunkSize = 50

const itemColumns = `id, source, source_id, source_url, title, content, author, topic, posted_at,
relevance, severity, score, summary, category, judgment_source,
bait_score, is_bait, cluster_id, status, notes, created_at, updated_at`

// scanItem maps one row to the domain struct. Schema-to-struct mapping is
// explicit and validated here, nowhere else.
func scanItem(row pgx.Row) (lead.ClassifiedItem, error) {
	var (
		item     lead.ClassifiedItem
		source   string
		judgeSrc string
		status   string
	)
	err := row.Scan(
		&item.ID,
		&source,
		&item.Post.SourceID,
		&item.Post.SourceURL,
		&item.Post.Title,
		&item.Post.Content,
		&item.Post.Author,
		&item.Post.Topic,
		&item.Post.PostedAt,
		&item.Judgment.Relevance,
		&item.Judgment.Severity,
		&item.Judgment.Score,
		&item.Judgment.Summary,
		&item.Judgment.Category,
		&judgeSrc,
		&item.BaitScore,
		&item.IsBait,
		&item.ClusterID,
		&status,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return lead.ClassifiedItem{}, fmt.Errorf("scan item: %w", err)
	}
	item.Post.Source = lead.Source(source)
	item.Judgment.Source = lead.JudgmentSource(judgeSrc)
	item.Status = lead.Status(status)
	return item, nil
}

// ItemExists checks the natural key before any classification work is spent
// on a post. Matching either the source-scoped ID or the URL counts.
func (s *Store) ItemExists(ctx context.Context, source lead.Source, key string) (bool, error) {
	var exists bool
	err := withRetry(ctx, s.logger, "item exists", s.writeDelay, func() error {
		row := s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM items WHERE source = $1 AND (source_id = $2 OR source_url = $2))`,
			string(source), key,
		)
		return row.Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("item exists: %w", err)
	}
	return exists, nil
}

// InsertItem writes one classified item. The unique natural-key index plus
// ON CONFLICT DO NOTHING makes a check-then-insert race land as "already
// exists" (inserted=false), never as an error.
func (s *Store) InsertItem(ctx context.Context, item lead.ClassifiedItem) (id int64, inserted bool, err error) {
	err = withRetry(ctx, s.logger, "insert item", s.writeDelay, func() error {
		row := s.db.QueryRow(ctx, `
INSERT INTO items (
	source, source_id, source_url, title, content, author, topic, posted_at,
	relevance, severity, score, summary, category, judgment_source,
	bait_score, is_bait, status, notes
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (source, source_id) DO NOTHING
RETURNING id`,
			string(item.Post.Source),
			item.Post.SourceID,
			item.Post.SourceURL,
			item.Post.Title,
			item.Post.Content,
			item.Post.Author,
			item.Post.Topic,
			item.Post.PostedAt,
			item.Judgment.Relevance,
			item.Judgment.Severity,
			item.Judgment.Score,
			item.Judgment.Summary,
			item.Judgment.Category,
			string(item.Judgment.Source),
			item.BaitScore,
			item.IsBait,
			string(item.Status),
			item.Notes,
		)
		scanErr := row.Scan(&id)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			inserted = false
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		inserted = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("insert item: %w", err)
	}
	return id, inserted, nil
}

// LatestItemTimestamp returns the newest posted/created timestamp in the
// store, or nil when the table is empty. The freshness watchdog runs on it.
func (s *Store) LatestItemTimestamp(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	err := withRetry(ctx, s.logger, "latest item timestamp", s.writeDelay, func() error {
		row := s.db.QueryRow(ctx, `SELECT MAX(COALESCE(posted_at, created_at)) FROM items`)
		return row.Scan(&latest)
	})
	if err != nil {
		return nil, fmt.Errorf("latest item timestamp: %w", err)
	}
	return latest, nil
}

// DistinctCategories lists every category label currently present.
func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := withRetry(ctx, s.logger, "distinct categories", s.writeDelay, func() error {
		rows, qErr := s.db.Query(ctx, `SELECT DISTINCT category FROM items`)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		categories = categories[:0]
		for rows.Next() {
			var c string
			if scanErr := rows.Scan(&c); scanErr != nil {
				return scanErr
			}
			categories = append(categories, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}
	return categories, nil
}

// ItemsByCategories fetches the member items of a cluster's source labels.
func (s *Store) ItemsByCategories(ctx context.Context, categories []string) ([]lead.ClassifiedItem, error) {
	var items []lead.ClassifiedItem
	err := withRetry(ctx, s.logger, "items by categories", s.writeDelay, func() error {
		rows, qErr := s.db.Query(ctx,
			`SELECT `+itemColumns+` FROM items WHERE category = ANY($1) ORDER BY id`,
			categories,
		)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		items = items[:0]
		for rows.Next() {
			item, scanErr := scanItem(rows)
			if scanErr != nil {
				return scanErr
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("items by categories: %w", err)
	}
	return items, nil
}

// AssignCluster back-assigns the cluster ID to member items in fixed-size
// chunks to bound query size.
func (s *Store) AssignCluster(ctx context.Context, clusterID int64, itemIDs []int64) error {
	for start := 0; start < len(itemIDs); start += assignChunkSize {
		end := min(start+assignChunkSize, len(itemIDs))
		chunk := itemIDs[start:end]
		err := withRetry(ctx, s.logger, "assign cluster", s.writeDelay, func() error {
			_, execErr := s.db.Exec(ctx,
				`UPDATE items SET cluster_id = $1, updated_at = NOW() WHERE id = ANY($2)`,
				clusterID, chunk,
			)
			return execErr
		})
		if err != nil {
			return fmt.Errorf("assign cluster: %w", err)
		}
	}
	return nil
}

// UpdateStatusByCluster applies the coarse denormalized status to cluster
// members that have not advanced through the notify lifecycle yet.
func (s *Store) UpdateStatusByCluster(ctx context.Context, clusterID int64, status lead.Status) error {
	err := withRetry(ctx, s.logger, "update status by cluster", s.writeDelay, func() error {
		_, execErr := s.db.Exec(ctx, `
UPDATE items SET status = $2, updated_at = NOW()
WHERE cluster_id = $1 AND status NOT IN ('notified','processed','archived')`,
			clusterID, string(status),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update status by cluster: %w", err)
	}
	return nil
}

// ItemsWithStatus returns up to limit items in the given lifecycle state,
// newest first.
func (s *Store) ItemsWithStatus(ctx context.Context, status lead.Status, limit int) ([]lead.ClassifiedItem, error) {
	var items []lead.ClassifiedItem
	err := withRetry(ctx, s.logger, "items with status", s.writeDelay, func() error {
		rows, qErr := s.db.Query(ctx,
			`SELECT `+itemColumns+` FROM items WHERE status = $1 ORDER BY COALESCE(posted_at, created_at) DESC LIMIT $2`,
			string(status), limit,
		)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		items = items[:0]
		for rows.Next() {
			item, scanErr := scanItem(rows)
			if scanErr != nil {
				return scanErr
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("items with status: %w", err)
	}
	return items, nil
}

// MarkItemsStatus moves the given items to a new lifecycle state.
func (s *Store) MarkItemsStatus(ctx context.Context, itemIDs []int64, status lead.Status) error {
	if len(itemIDs) == 0 {
		return nil
	}
	err := withRetry(ctx, s.logger, "mark items status", s.writeDelay, func() error {
		_, execErr := s.db.Exec(ctx,
			`UPDATE items SET status = $2, updated_at = NOW() WHERE id = ANY($1)`,
			itemIDs, string(status),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("mark items status: %w", err)
	}
	return nil
}
