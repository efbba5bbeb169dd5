// Package pipeline orchestrates one full run: fan-out fetch, sequential
// per-item processing, batch clustering, notification, and the freshness
// watchdog. No run-level transaction exists; rows committed before a failure
// survive it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/clock"
	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/filter"
	"github.com/leadscout/leadscout/internal/heuristic"
	"github.com/leadscout/leadscout/internal/lead"
	"github.com/leadscout/leadscout/internal/metrics"
	"github.com/leadscout/leadscout/internal/runtrack"
	"github.com/leadscout/leadscout/internal/source"
)

// notifyBatchLimit bounds how many new items one run will push to the
// webhook.
const notifyBatchLimit = 25

// Store is the persistence surface the orchestrator needs.
type Store interface {
	ItemExists(ctx context.Context, src lead.Source, key string) (bool, error)
	InsertItem(ctx context.Context, item lead.ClassifiedItem) (int64, bool, error)
	LatestItemTimestamp(ctx context.Context) (*time.Time, error)
	ItemsWithStatus(ctx context.Context, status lead.Status, limit int) ([]lead.ClassifiedItem, error)
	MarkItemsStatus(ctx context.Context, itemIDs []int64, status lead.Status) error
}

// Classifier is the provider chain surface. A nil judgment with nil error
// means total exhaustion.
type Classifier interface {
	Classify(ctx context.Context, post lead.RawPost) (*lead.Judgment, error)
}

// Clusterer recomputes the cluster materialized views.
type Clusterer interface {
	Recompute(ctx context.Context) error
}

// Notifier delivers new items and reports which ones actually went out.
type Notifier interface {
	NotifyItems(ctx context.Context, items []lead.ClassifiedItem) ([]int64, error)
}

// Pipeline wires the stages together. Construct once per process; each run
// gets its own tracker.
type Pipeline struct {
	cfg      config.Config
	store    Store
	adapters []source.Adapter
	chain    Classifier
	clusters Clusterer
	notifier Notifier
	clk      clock.Clock
	logger   *zap.Logger

	sleep func(context.Context, time.Duration) error
}

// New builds a Pipeline. notifier may be nil when no webhook is configured.
func New(
	cfg config.Config,
	st Store,
	adapters []source.Adapter,
	chain Classifier,
	clusters Clusterer,
	notifier Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		adapters: adapters,
		chain:    chain,
		clusters: clusters,
		notifier: notifier,
		clk:      clk,
		logger:   logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Execute runs the stages from INITIAL_STATS_LOADED through
// FRESHNESS_VALIDATED on an already-begun tracker. The caller owns the
// terminal transition (Complete or Fail).
func (p *Pipeline) Execute(ctx context.Context, tracker *runtrack.Tracker) error {
	latestBefore, err := p.store.LatestItemTimestamp(ctx)
	if err != nil {
		return err
	}
	tracker.SetLatestBefore(latestBefore)
	if err := p.advance(ctx, tracker, lead.StageInitialStatsLoaded); err != nil {
		return err
	}

	if err := p.advance(ctx, tracker, lead.StageFetchStarted); err != nil {
		return err
	}
	results := source.FetchAll(ctx, p.adapters, p.logger)
	fetched := 0
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		fetched += len(res.Posts)
		metrics.ObserveFetched(string(res.Source), len(res.Posts))
	}
	if err := p.advance(ctx, tracker, lead.StageFetchCompleted); err != nil {
		return err
	}

	newItems, err := p.processAll(ctx, results)
	if err != nil {
		return err
	}
	tracker.SetCounts(fetched, newItems)
	if err := p.advance(ctx, tracker, lead.StageProcessCompleted); err != nil {
		return err
	}

	// Notification consumes status new, and the cluster pass rewrites new
	// rows in multi-member clusters to coarser statuses. Notify first so
	// this run's leads go out before clustering reclassifies them.
	if err := p.notifyNew(ctx); err != nil {
		// Notification failure degrades, it does not fail the run. The
		// items stay in status new and go out next time.
		p.logger.Warn("notification pass failed", zap.Error(err))
	}
	if err := p.clusters.Recompute(ctx); err != nil {
		return err
	}
	if err := p.advance(ctx, tracker, lead.StageCleanupCompleted); err != nil {
		return err
	}

	latestAfter, err := p.store.LatestItemTimestamp(ctx)
	if err != nil {
		return err
	}
	tracker.SetLatestAfter(latestAfter)
	if err := runtrack.CheckFreshness(latestAfter, p.clk.Now(), p.cfg.StalenessThreshold()); err != nil {
		return err
	}
	if err := p.advance(ctx, tracker, lead.StageFreshnessValidated); err != nil {
		return err
	}

	p.logger.Info("run processed",
		zap.Int("fetched", fetched),
		zap.Int("new", newItems),
	)
	return nil
}

// processAll walks every fetched post sequentially. Source order is the
// adapter registration order; a delay separates sources and another
// separates provider-bound items, to stay polite to both tiers.
func (p *Pipeline) processAll(ctx context.Context, results []source.FetchResult) (int, error) {
	newItems := 0
	interSource := time.Duration(p.cfg.Pipeline.InterSourceDelayMs) * time.Millisecond
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		if i > 0 {
			if err := p.sleep(ctx, interSource); err != nil {
				return newItems, err
			}
		}
		for _, post := range res.Posts {
			inserted, err := p.processOne(ctx, post)
			if err != nil {
				return newItems, err
			}
			if inserted {
				newItems++
			}
		}
	}
	return newItems, nil
}

// processOne runs the per-item gate order: filter, bait scoring, dedup,
// intent gate, provider chain with heuristic fallback, persist. The dedup
// gate sits before the provider call so duplicate posts never spend tokens.
func (p *Pipeline) processOne(ctx context.Context, post lead.RawPost) (bool, error) {
	if !filter.Accept(post, p.clk.Now(), p.cfg.FreshnessWindow()) {
		return false, nil
	}
	metrics.ObserveAccepted(string(post.Source))

	baitScore, isBait := heuristic.ScoreBait(post)
	if isBait {
		metrics.ObserveBait(string(post.Source))
	}

	src, key := post.NaturalKey()
	exists, err := p.store.ItemExists(ctx, src, key)
	if err != nil {
		return false, err
	}
	if exists {
		metrics.ObserveDuplicate(string(post.Source))
		return false, nil
	}

	judgment, err := p.classifyPost(ctx, post, isBait)
	if err != nil {
		return false, err
	}

	item := lead.ClassifiedItem{
		Post:      post,
		Judgment:  judgment,
		BaitScore: baitScore,
		IsBait:    isBait,
		Status:    lead.StatusNew,
	}
	_, inserted, err := p.store.InsertItem(ctx, item)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Lost the check-then-insert race to a concurrent run.
		metrics.ObserveDuplicate(string(post.Source))
		return false, nil
	}
	return true, nil
}

// classifyPost applies the intent and bait gates and the provider chain.
// Bait and confidently not-actionable posts skip the providers entirely;
// chain exhaustion falls back to the heuristic judgment.
func (p *Pipeline) classifyPost(ctx context.Context, post lead.RawPost, isBait bool) (lead.Judgment, error) {
	if isBait {
		return heuristic.Fallback(post), nil
	}
	intent := heuristic.ScoreIntent(post)
	if intent.Verdict == heuristic.IntentNotActionable {
		return heuristic.Fallback(post), nil
	}

	judgment, err := p.chain.Classify(ctx, post)
	if err != nil {
		// The chain only surfaces context cancellation; provider failures
		// degrade to nil.
		return lead.Judgment{}, err
	}
	if sleepErr := p.sleep(ctx, time.Duration(p.cfg.Pipeline.InterItemDelayMs)*time.Millisecond); sleepErr != nil {
		return lead.Judgment{}, sleepErr
	}
	if judgment == nil {
		p.logger.Warn("all providers exhausted, using heuristic judgment",
			zap.String("source", string(post.Source)),
			zap.String("source_id", post.SourceID),
		)
		return heuristic.Fallback(post), nil
	}
	return *judgment, nil
}

// notifyNew pushes un-notified items to the webhook and advances their
// lifecycle state. A nil notifier or empty batch is a no-op.
func (p *Pipeline) notifyNew(ctx context.Context) error {
	if p.notifier == nil {
		return nil
	}
	items, err := p.store.ItemsWithStatus(ctx, lead.StatusNew, notifyBatchLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	sentIDs, err := p.notifier.NotifyItems(ctx, items)
	if len(sentIDs) > 0 {
		metrics.ObserveNotification()
		if markErr := p.store.MarkItemsStatus(ctx, sentIDs, lead.StatusNotified); markErr != nil {
			return fmt.Errorf("mark notified: %w", markErr)
		}
	}
	return err
}

func (p *Pipeline) advance(ctx context.Context, tracker *runtrack.Tracker, stage lead.Stage) error {
	if err := tracker.Advance(ctx, stage); err != nil {
		return err
	}
	metrics.SetRunStage(lead.StageIndex(stage))
	return nil
}
