// Package lead defines the core domain entities flowing through the
// ingestion pipeline: raw posts, judgments, classified items, clusters,
// and run records.
package lead

import "time"

// Source identifies the feed a post was ingested from.
type Source string

// Supported feed sources.
const (
	SourceForum  Source = "forum"
	SourceQA     Source = "qa"
	SourceJobs   Source = "jobs"
	SourceSocial Source = "social"
)

// RawPost is the immutable input unit produced by a source adapter.
// Adapters create it; nothing downstream mutates it.
type RawPost struct {
	Source    Source
	SourceID  string
	SourceURL string
	Title     string
	Content   string
	Author    string
	Topic     string
	// PostedAt is nil when the feed does not expose a timestamp.
	PostedAt *time.Time
}

// NaturalKey returns the dedup key for the post: source-scoped ID when the
// feed provides one, otherwise the URL.
func (p RawPost) NaturalKey() (Source, string) {
	if p.SourceID != "" {
		return p.Source, p.SourceID
	}
	return p.Source, p.SourceURL
}

// Text returns the lower-cased title+content blob the heuristics score.
func (p RawPost) Text() string {
	if p.Content == "" {
		return p.Title
	}
	return p.Title + "\n" + p.Content
}

// JudgmentSource tags where a judgment came from so downstream code can
// distinguish confidence provenance without inspecting strings.
type JudgmentSource string

// JudgmentHeuristic marks judgments produced by the deterministic fallback.
const JudgmentHeuristic JudgmentSource = "heuristic"

// ProviderJudgment builds the provenance tag for a named provider.
func ProviderJudgment(name string) JudgmentSource {
	return JudgmentSource("provider:" + name)
}

// Judgment is the structured result of classifying one RawPost.
type Judgment struct {
	Relevance int // 1-10
	Severity  int // 1-10
	Score     int // 1-10, the overall ranking signal
	Summary   string
	Category  string
	Source    JudgmentSource
}

// Placeholder values for required string fields. Downstream code never
// branches on missing-vs-present for these.
const (
	DefaultCategory = "uncategorized"
	DefaultSummary  = "general"
)

// Normalize clamps every numeric field into its declared range and fills
// required string fields with placeholders.
func (j Judgment) Normalize() Judgment {
	j.Relevance = Clamp(j.Relevance, 1, 10)
	j.Severity = Clamp(j.Severity, 1, 10)
	j.Score = Clamp(j.Score, 1, 10)
	if j.Summary == "" {
		j.Summary = DefaultSummary
	}
	if j.Category == "" {
		j.Category = DefaultCategory
	}
	return j
}

// Clamp bounds v into the closed interval [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BaitThreshold is the bait score at or above which a post is flagged.
const BaitThreshold = 70

// Status is the lifecycle state of a classified item. Transitions are
// forward-only except for explicit operator resets.
type Status string

// Item lifecycle states.
const (
	StatusNew         Status = "new"
	StatusNotified    Status = "notified"
	StatusProcessed   Status = "processed"
	StatusArchived    Status = "archived"
	StatusValidated   Status = "validated"
	StatusResearching Status = "researching"
	StatusInteresting Status = "interesting"
)

// ClassifiedItem is a RawPost plus its judgment and lifecycle bookkeeping.
// Created once per accepted post, updated only by status transitions and
// cluster back-assignment.
type ClassifiedItem struct {
	ID        int64
	Post      RawPost
	Judgment  Judgment
	BaitScore int // 0-100
	IsBait    bool
	ClusterID *int64
	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidationLevel is the coarse confidence tier of a cluster.
type ValidationLevel string

// Validation tiers.
const (
	ValidationLow    ValidationLevel = "LOW"
	ValidationMedium ValidationLevel = "MEDIUM"
	ValidationHigh   ValidationLevel = "HIGH"
)

// ValidationForCount derives the tier from cluster membership. It is the
// only way a validation level may be produced.
func ValidationForCount(postCount int) ValidationLevel {
	switch {
	case postCount >= 5:
		return ValidationHigh
	case postCount >= 3:
		return ValidationMedium
	default:
		return ValidationLow
	}
}

// Cluster is a materialized aggregate of items sharing a normalized
// category. It is recomputed wholesale each run, never hand-edited.
type Cluster struct {
	ID              int64
	Name            string
	PostCount       int
	AvgScore        float64
	ValidationLevel ValidationLevel
	Industries      []string
	BestQuotes      []string
	Synthesis       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
