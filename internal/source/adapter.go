// Package source defines the feed adapter contract and bundles thin
// reference adapters. Adapters are external collaborators to the pipeline:
// each may fail entirely and its failure never aborts a sibling.
package source

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/lead"
)

// Adapter fetches the current posts of one feed. An empty slice is success,
// not an error.
type Adapter interface {
	Source() lead.Source
	Fetch(ctx context.Context) ([]lead.RawPost, error)
}

// FetchResult is one adapter's outcome from a fan-out fetch.
type FetchResult struct {
	Source lead.Source
	Posts  []lead.RawPost
	Err    error
}

// FetchAll fans out across adapters concurrently and waits for every one to
// settle. Adapters share no mutable state, so partial failure stays isolated
// per source; errors are reported in the results, never raised.
func FetchAll(ctx context.Context, adapters []Adapter, logger *zap.Logger) []FetchResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]FetchResult, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()
			posts, err := adapter.Fetch(ctx)
			results[i] = FetchResult{Source: adapter.Source(), Posts: posts, Err: err}
			if err != nil {
				logger.Error("adapter fetch failed",
					zap.String("source", string(adapter.Source())),
					zap.Error(err),
				)
				return
			}
			logger.Info("adapter fetch completed",
				zap.String("source", string(adapter.Source())),
				zap.Int("posts", len(posts)),
			)
		}(i, adapter)
	}
	wg.Wait()
	return results
}
