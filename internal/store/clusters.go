package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leadscout/leadscout/internal/lead"
)

// UpsertCluster writes the recomputed materialized view for one cluster and
// returns its row ID. Name is the conflict key; all aggregates are replaced
// wholesale.
func (s *Store) UpsertCluster(ctx context.Context, c lead.Cluster) (int64, error) {
	industries, err := json.Marshal(emptyIfNil(c.Industries))
	if err != nil {
		return 0, fmt.Errorf("marshal industries: %w", err)
	}
	quotes, err := json.Marshal(emptyIfNil(c.BestQuotes))
	if err != nil {
		return 0, fmt.Errorf("marshal quotes: %w", err)
	}

	var id int64
	err = withRetry(ctx, s.logger, "upsert cluster", s.writeDelay, func() error {
		row := s.db.QueryRow(ctx, `
INSERT INTO clusters (name, post_count, avg_score, validation_level, industries, best_quotes, synthesis)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (name) DO UPDATE SET
	post_count = EXCLUDED.post_count,
	avg_score = EXCLUDED.avg_score,
	validation_level = EXCLUDED.validation_level,
	industries = EXCLUDED.industries,
	best_quotes = EXCLUDED.best_quotes,
	synthesis = EXCLUDED.synthesis,
	updated_at = NOW()
RETURNING id`,
			c.Name,
			c.PostCount,
			c.AvgScore,
			string(c.ValidationLevel),
			industries,
			quotes,
			c.Synthesis,
		)
		return row.Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert cluster: %w", err)
	}
	return id, nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
