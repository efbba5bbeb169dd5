package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/lead"
	"github.com/leadscout/leadscout/internal/metrics"
)

// maxExtraAttempts is how many times a retryable failure is retried against
// the same provider before the chain moves on.
const maxExtraAttempts = 2

const promptTemplate = `You score short public posts for business opportunity.
Post source: %s
Title: %s
Content: %s

Reply with a single JSON object:
{"relevance": 1-10, "severity": 1-10, "score": 1-10, "summary": "...", "category": "..."}`

// Chain tries providers in priority order with bounded retry and returns nil
// when every provider is exhausted; the caller falls back to the heuristic.
type Chain struct {
	providers []Provider
	baseDelay time.Duration
	sleep     func(context.Context, time.Duration) error
	logger    *zap.Logger
}

// NewChain builds a chain over providers in priority order.
func NewChain(providers []Provider, baseDelay time.Duration, logger *zap.Logger) *Chain {
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		providers: providers,
		baseDelay: baseDelay,
		sleep:     sleepCtx,
		logger:    logger,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Classify runs the chain for one post. A nil judgment with a nil error
// means total exhaustion; no provider failure is ever fatal to the run.
func (c *Chain) Classify(ctx context.Context, post lead.RawPost) (*lead.Judgment, error) {
	if len(c.providers) == 0 {
		return nil, nil
	}
	prompt := BuildPrompt(post)

	for _, provider := range c.providers {
		judgment, err := c.tryProvider(ctx, provider, prompt)
		if err == nil && judgment != nil {
			return judgment, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("provider exhausted, moving to next",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	}
	return nil, nil
}

// tryProvider runs one provider with retry on retryable failures only.
// Extraction and parse failures are not retried against the same provider;
// the model is unlikely to format better on a replay.
func (c *Chain) tryProvider(ctx context.Context, provider Provider, prompt string) (*lead.Judgment, error) {
	var lastErr error
	for attempt := 0; attempt <= maxExtraAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<attempt)
			c.logger.Debug("retrying provider",
				zap.String("provider", provider.Name()),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		text, err := provider.Complete(ctx, prompt)
		if err != nil {
			metrics.ObserveProviderCall(provider.Name(), "error")
			lastErr = err
			if IsRetryable(err) {
				continue
			}
			return nil, err
		}

		judgment, err := ParseJudgment(text, provider.Name())
		if err != nil {
			// Treated as a provider failure, but never retried here.
			metrics.ObserveProviderCall(provider.Name(), "parse_error")
			return nil, err
		}
		metrics.ObserveProviderCall(provider.Name(), "success")
		return judgment, nil
	}
	return nil, lastErr
}

// BuildPrompt interpolates one post into the fixed classification template.
func BuildPrompt(post lead.RawPost) string {
	content := post.Content
	if content == "" {
		content = "(no body)"
	}
	return fmt.Sprintf(promptTemplate, post.Source, post.Title, content)
}

// flexInt tolerates the numeric sloppiness of model output: scores may
// arrive as numbers, floats, quoted strings, or garbage (which becomes zero
// and is clamped upward later).
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if i, err := strconv.Atoi(s); err == nil {
		*f = flexInt(i)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(int(v))
		return nil
	}
	*f = 0
	return nil
}

type judgmentPayload struct {
	Relevance flexInt `json:"relevance"`
	Severity  flexInt `json:"severity"`
	Score     flexInt `json:"score"`
	Summary   string  `json:"summary"`
	Category  string  `json:"category"`
}

// ParseJudgment extracts and decodes a judgment from free-form model text.
// All numeric fields are clamped and required strings defaulted before the
// judgment leaves this package.
func ParseJudgment(text, providerName string) (*lead.Judgment, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", providerName, err)
	}

	var payload judgmentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// The model may have returned an array of judgments; take the first.
		var list []judgmentPayload
		if err2 := json.Unmarshal([]byte(raw), &list); err2 != nil || len(list) == 0 {
			return nil, fmt.Errorf("provider %s: parse judgment: %w", providerName, err)
		}
		payload = list[0]
	}

	judgment := lead.Judgment{
		Relevance: int(payload.Relevance),
		Severity:  int(payload.Severity),
		Score:     int(payload.Score),
		Summary:   payload.Summary,
		Category:  payload.Category,
		Source:    lead.ProviderJudgment(providerName),
	}.Normalize()
	return &judgment, nil
}
