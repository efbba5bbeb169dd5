package source

import (
	"context"

	"github.com/leadscout/leadscout/internal/lead"
)

// StaticAdapter serves a fixed slice of posts. Used in tests and smoke runs.
type StaticAdapter struct {
	Name  lead.Source
	Posts []lead.RawPost
	Fail  error
}

// Source identifies the adapter.
func (a *StaticAdapter) Source() lead.Source { return a.Name }

// Fetch returns the configured posts, or the configured failure.
func (a *StaticAdapter) Fetch(context.Context) ([]lead.RawPost, error) {
	if a.Fail != nil {
		return nil, a.Fail
	}
	return a.Posts, nil
}
