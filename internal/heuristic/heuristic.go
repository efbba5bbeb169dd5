// Package heuristic scores posts with keyword and pattern rules. It gates
// expensive provider calls and doubles as the deterministic fallback when
// every provider is unavailable, so nothing in here may fail.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/leadscout/leadscout/internal/lead"
)

// IntentVerdict is the outcome of the cheap intent pre-filter.
type IntentVerdict string

// Intent verdicts.
const (
	IntentActionable    IntentVerdict = "actionable"
	IntentNotActionable IntentVerdict = "not_actionable"
	IntentUnknown       IntentVerdict = "unknown"
)

// IntentResult carries the verdict plus a 0-10 confidence-weighted score.
type IntentResult struct {
	Verdict    IntentVerdict
	Score      int
	Matched    string
	Confidence float64
}

// negativePhrases short-circuit to not-actionable: advice seeking, launches,
// feedback requests.
var negativePhrases = []string{
	"any advice",
	"advice on",
	"what do you think",
	"just launched",
	"we launched",
	"show hn",
	"feedback on my",
	"looking for feedback",
	"roast my",
	"how do i learn",
	"is it worth learning",
}

// positivePhrases signal hiring or a concrete need, with a weight that maps
// to the 1-10 overall score.
var positivePhrases = []struct {
	phrase string
	weight int
}{
	{"looking for a developer", 8},
	{"looking for a freelancer", 8},
	{"looking to hire", 8},
	{"need a developer", 8},
	{"need someone to build", 8},
	{"hiring a", 7},
	{"we are hiring", 7},
	{"budget", 6},
	{"willing to pay", 7},
	{"paid project", 7},
	{"need help with", 6},
	{"struggling with", 5},
	{"is there a tool", 5},
	{"wasting hours", 6},
	{"pain point", 5},
}

// ScoreIntent scans lower-cased title+content. Negative phrases win over
// positive ones; absence of any signal defers to the provider chain.
func ScoreIntent(post lead.RawPost) IntentResult {
	text := strings.ToLower(post.Text())

	for _, phrase := range negativePhrases {
		if strings.Contains(text, phrase) {
			return IntentResult{Verdict: IntentNotActionable, Score: 1, Matched: phrase, Confidence: 0.9}
		}
	}

	best := IntentResult{Verdict: IntentUnknown, Score: 3, Confidence: 0.2}
	for _, p := range positivePhrases {
		if strings.Contains(text, p.phrase) && p.weight > best.Score {
			best = IntentResult{
				Verdict:    IntentActionable,
				Score:      p.weight,
				Matched:    p.phrase,
				Confidence: float64(p.weight) / 10,
			}
		}
	}
	return best
}

// Phrase families for the bait scorer, each worth a fixed number of points
// per hit, capped per family.
var (
	selfPromoPhrases = []string{
		"check out my", "i built", "i made", "my new app", "my startup",
		"use my code", "sign up here", "limited offer", "early access",
	}
	affiliateRe   = regexp.MustCompile(`(?i)(ref=|affiliate|utm_source=|bit\.ly/|gumroad\.com)`)
	productURLRe  = regexp.MustCompile(`https?://[^\s)]+`)
	firstPersonRe = regexp.MustCompile(`(?i)\b(i|my|me|mine|we|our)\b`)
)

// promotionalForums are subforums dominated by self-promotion; posts from
// them start with a fixed penalty.
var promotionalForums = map[string]bool{
	"sideproject":      true,
	"alphaandbetausers": true,
	"imadethis":        true,
	"promotion":        true,
}

const promotionalForumBonus = 25

// ScoreBait computes the additive 0-100 bait score and its derived flag.
// It never fails and is pure.
func ScoreBait(post lead.RawPost) (score int, isBait bool) {
	text := strings.ToLower(post.Text())

	promo := 0
	for _, phrase := range selfPromoPhrases {
		if strings.Contains(text, phrase) {
			promo += 15
		}
	}
	score += min(promo, 45)

	if affiliateRe.MatchString(text) {
		score += 20
	}

	urls := productURLRe.FindAllString(text, -1)
	if len(urls) >= 2 {
		score += 15
	} else if len(urls) == 1 {
		score += 5
	}

	words := len(strings.Fields(text))
	if words > 0 {
		pronouns := len(firstPersonRe.FindAllString(text, -1))
		if float64(pronouns)/float64(words) > 0.12 {
			score += 15
		}
	}

	if promotionalForums[strings.ToLower(post.Topic)] {
		score += promotionalForumBonus
	}

	score = lead.Clamp(score, 0, 100)
	return score, score >= lead.BaitThreshold
}

// Fallback produces a complete heuristic-tagged judgment. It is the sole
// judgment source when every provider is down, so it must always return a
// valid result.
func Fallback(post lead.RawPost) lead.Judgment {
	intent := ScoreIntent(post)

	category := lead.DefaultCategory
	summary := lead.DefaultSummary
	switch intent.Verdict {
	case IntentActionable:
		category = "hiring"
		summary = "keyword match: " + intent.Matched
	case IntentNotActionable:
		summary = "negative signal: " + intent.Matched
	}

	return lead.Judgment{
		Relevance: intent.Score,
		Severity:  intent.Score,
		Score:     intent.Score,
		Summary:   summary,
		Category:  category,
		Source:    lead.JudgmentHeuristic,
	}.Normalize()
}
