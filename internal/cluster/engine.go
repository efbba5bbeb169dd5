package cluster

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/lead"
)

// Payload-size discipline: the store has a practical per-write ceiling, so
// aggregates carry bounded lists only.
const (
	maxIndustries = 8
	maxQuotes     = 5
	quoteMaxLen   = 180
)

// Store is the persistence surface the engine needs.
type Store interface {
	DistinctCategories(ctx context.Context) ([]string, error)
	ItemsByCategories(ctx context.Context, categories []string) ([]lead.ClassifiedItem, error)
	UpsertCluster(ctx context.Context, c lead.Cluster) (int64, error)
	AssignCluster(ctx context.Context, clusterID int64, itemIDs []int64) error
	UpdateStatusByCluster(ctx context.Context, clusterID int64, status lead.Status) error
}

// Engine recomputes every cluster as a materialized view over current items.
type Engine struct {
	store  Store
	logger *zap.Logger
}

// NewEngine builds the clustering engine.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Recompute runs once per batch after persistence. It groups category labels
// into clusters, rebuilds each cluster's aggregates, back-assigns cluster IDs
// to members, and applies the coarse denormalized status pass.
func (e *Engine) Recompute(ctx context.Context) error {
	categories, err := e.store.DistinctCategories(ctx)
	if err != nil {
		return fmt.Errorf("recompute clusters: %w", err)
	}
	if len(categories) == 0 {
		return nil
	}

	groups := map[string][]string{}
	for _, label := range categories {
		name := Normalize(label)
		groups[name] = append(groups[name], label)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := e.recomputeOne(ctx, name, groups[name]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recomputeOne(ctx context.Context, name string, labels []string) error {
	items, err := e.store.ItemsByCategories(ctx, labels)
	if err != nil {
		return fmt.Errorf("cluster %s members: %w", name, err)
	}
	if len(items) == 0 {
		return nil
	}

	agg := Aggregate(name, items)
	clusterID, err := e.store.UpsertCluster(ctx, agg)
	if err != nil {
		return fmt.Errorf("cluster %s upsert: %w", name, err)
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if err := e.store.AssignCluster(ctx, clusterID, ids); err != nil {
		return fmt.Errorf("cluster %s assign: %w", name, err)
	}

	if status, ok := statusForCluster(agg); ok {
		if err := e.store.UpdateStatusByCluster(ctx, clusterID, status); err != nil {
			return fmt.Errorf("cluster %s status: %w", name, err)
		}
	}

	e.logger.Info("cluster recomputed",
		zap.String("cluster", name),
		zap.Int("members", agg.PostCount),
		zap.Float64("avg_score", agg.AvgScore),
		zap.String("validation", string(agg.ValidationLevel)),
	)
	return nil
}

// Aggregate computes the materialized view for one cluster from its member
// items. Pure function; the validation level is derived, never hand-set.
func Aggregate(name string, items []lead.ClassifiedItem) lead.Cluster {
	total := 0
	for _, item := range items {
		total += item.Judgment.Score // absent scores are zero by construction
	}
	avg := 0.0
	if len(items) > 0 {
		avg = float64(total) / float64(len(items))
	}

	industries := make([]string, 0, maxIndustries)
	seenIndustry := map[string]bool{}
	quotes := make([]string, 0, maxQuotes)
	seenQuote := map[string]bool{}
	for _, item := range items {
		topic := item.Post.Topic
		if topic != "" && !seenIndustry[topic] && len(industries) < maxIndustries {
			seenIndustry[topic] = true
			industries = append(industries, topic)
		}
		quote := item.Post.Content
		if quote == "" {
			quote = item.Post.Title
		}
		quote = truncate(quote, quoteMaxLen)
		if quote != "" && !seenQuote[quote] && len(quotes) < maxQuotes {
			seenQuote[quote] = true
			quotes = append(quotes, quote)
		}
	}

	return lead.Cluster{
		Name:            name,
		PostCount:       len(items),
		AvgScore:        avg,
		ValidationLevel: lead.ValidationForCount(len(items)),
		Industries:      industries,
		BestQuotes:      quotes,
	}
}

// statusForCluster maps the validation tier to the coarse item status pass:
// HIGH members are validated, MEDIUM are researching, 2-member clusters are
// interesting, everything else stays as is.
func statusForCluster(c lead.Cluster) (lead.Status, bool) {
	switch {
	case c.ValidationLevel == lead.ValidationHigh:
		return lead.StatusValidated, true
	case c.ValidationLevel == lead.ValidationMedium:
		return lead.StatusResearching, true
	case c.PostCount == 2:
		return lead.StatusInteresting, true
	default:
		return "", false
	}
}

// truncate cuts on a rune boundary so stored quotes stay valid UTF-8.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}
