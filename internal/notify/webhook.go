// Package notify delivers persisted leads to an outbound webhook, splitting
// oversized payloads and throttling repeat alerts.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/clock"
	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/lead"
)

// Notifier posts rich messages to a webhook URL. The channel is rate and
// size limited: bodies over the limit are split into sequential posts with a
// short delay, capped at a fixed number of follow-ups per run.
type Notifier struct {
	cfg    config.WebhookConfig
	clk    clock.Clock
	logger *zap.Logger

	// lastAlert throttles repeat alerts per category. Process-wide state,
	// reset only by restart or explicit Reset.
	lastAlert map[string]time.Time

	post  func(ctx context.Context, url string, msg *slack.WebhookMessage) error
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Notifier.
func New(cfg config.WebhookConfig, clk clock.Clock, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyLen <= 0 {
		cfg.MaxBodyLen = 1900
	}
	if cfg.MaxFollowups < 0 {
		cfg.MaxFollowups = 0
	}
	return &Notifier{
		cfg:       cfg,
		clk:       clk,
		logger:    logger,
		lastAlert: map[string]time.Time{},
		post: func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
			return slack.PostWebhookContext(ctx, url, msg)
		},
		sleep: func(ctx context.Context, d time.Duration) error {
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

// Reset clears the alert throttle. Operator action only.
func (n *Notifier) Reset() {
	n.lastAlert = map[string]time.Time{}
}

// entry is one formatted item awaiting delivery.
type entry struct {
	id       int64
	category string
	text     string
}

// chunk is one webhook message plus the items it carries.
type chunk struct {
	body       strings.Builder
	ids        []int64
	categories []string
}

// NotifyItems formats and delivers the given items, newest first as given.
// Returns the IDs of items whose message was actually posted; anything
// dropped by the follow-up cap or cut off by a delivery failure is excluded
// so the caller leaves it in status new for the next run.
func (n *Notifier) NotifyItems(ctx context.Context, items []lead.ClassifiedItem) ([]int64, error) {
	if n.cfg.URL == "" || len(items) == 0 {
		return nil, nil
	}

	now := n.clk.Now()
	throttle := time.Duration(n.cfg.ThrottleMinutes) * time.Minute

	var entries []entry
	for _, item := range items {
		category := item.Judgment.Category
		if throttle > 0 {
			if last, ok := n.lastAlert[category]; ok && now.Sub(last) < throttle {
				continue
			}
		}
		entries = append(entries, entry{id: item.ID, category: category, text: formatItem(item)})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	chunks := packChunks(entries, n.cfg.MaxBodyLen, n.cfg.MaxFollowups+1)

	var sentIDs []int64
	for i, c := range chunks {
		if i > 0 {
			if err := n.sleep(ctx, time.Duration(n.cfg.SplitDelayMs)*time.Millisecond); err != nil {
				return sentIDs, err
			}
		}
		if err := n.post(ctx, n.cfg.URL, &slack.WebhookMessage{Text: c.body.String()}); err != nil {
			return sentIDs, fmt.Errorf("post webhook chunk %d/%d: %w", i+1, len(chunks), err)
		}
		sentIDs = append(sentIDs, c.ids...)
		for _, category := range c.categories {
			n.lastAlert[category] = now
		}
	}
	n.logger.Info("notifications delivered",
		zap.Int("items", len(sentIDs)),
		zap.Int("messages", len(chunks)),
	)
	return sentIDs, nil
}

func formatItem(item lead.ClassifiedItem) string {
	return fmt.Sprintf("*%s* [%d/10] %s\n%s\n%s",
		item.Judgment.Category,
		item.Judgment.Score,
		item.Post.Title,
		item.Judgment.Summary,
		item.Post.SourceURL,
	)
}

// packChunks packs entries into at most maxMessages bodies of at most
// maxLen characters, keeping each message's item IDs with it. Entries past
// the cap are dropped; spamming the channel is worse than deferring the
// tail to the next run.
func packChunks(entries []entry, maxLen, maxMessages int) []*chunk {
	var chunks []*chunk
	current := &chunk{}

	flush := func() {
		if current.body.Len() > 0 {
			chunks = append(chunks, current)
			current = &chunk{}
		}
	}

	for _, e := range entries {
		text := e.text
		if len(text) > maxLen {
			text = text[:maxLen]
		}
		if current.body.Len() > 0 && current.body.Len()+len(text)+2 > maxLen {
			flush()
			if len(chunks) >= maxMessages {
				return chunks
			}
		}
		if current.body.Len() > 0 {
			current.body.WriteString("\n\n")
		}
		current.body.WriteString(text)
		current.ids = append(current.ids, e.id)
		current.categories = append(current.categories, e.category)
	}
	flush()
	if len(chunks) > maxMessages {
		chunks = chunks[:maxMessages]
	}
	return chunks
}
