// Package filter rejects stale or content-free posts before any network
// work is spent on them. Everything here is a pure function.
package filter

import (
	"strings"
	"time"

	"github.com/leadscout/leadscout/internal/lead"
)

// boilerplateMarkers are shapes of content-free submissions: very short
// bodies that only carry submission metadata.
var boilerplateMarkers = []string{
	"submitted by",
	"[link]",
	"[comments]",
	"view poll",
	"crosspost",
}

const boilerplateMaxLen = 120

// Accept reports whether the post is fresh enough and carries real content.
// A nil PostedAt is accepted; some feeds never expose timestamps.
func Accept(post lead.RawPost, now time.Time, window time.Duration) bool {
	if post.PostedAt != nil && now.Sub(*post.PostedAt) > window {
		return false
	}
	if isBoilerplate(post) {
		return false
	}
	return true
}

func isBoilerplate(post lead.RawPost) bool {
	content := strings.TrimSpace(post.Content)
	if content == "" {
		// Title-only posts are fine; an empty title is not.
		return strings.TrimSpace(post.Title) == ""
	}
	if len(content) > boilerplateMaxLen {
		return false
	}
	lower := strings.ToLower(content)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
