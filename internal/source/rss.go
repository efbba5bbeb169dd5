package source

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/lead"
)

// RSSAdapter reads one forum RSS/Atom feed.
type RSSAdapter struct {
	source lead.Source
	url    string
	parser *gofeed.Parser
}

// NewRSSAdapter builds an adapter for the configured feed.
func NewRSSAdapter(cfg config.RSSFeedConfig) *RSSAdapter {
	return &RSSAdapter{
		source: lead.Source(cfg.Source),
		url:    cfg.URL,
		parser: gofeed.NewParser(),
	}
}

// Source identifies the feed.
func (a *RSSAdapter) Source() lead.Source { return a.source }

// Fetch pulls the feed and maps entries to RawPosts. Feeds with broken
// pubdate formats fall back to dateparse before giving up on the timestamp.
func (a *RSSAdapter) Fetch(ctx context.Context) ([]lead.RawPost, error) {
	feed, err := a.parser.ParseURLWithContext(a.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.url, err)
	}

	posts := make([]lead.RawPost, 0, len(feed.Items))
	for _, item := range feed.Items {
		post := lead.RawPost{
			Source:    a.source,
			SourceID:  item.GUID,
			SourceURL: item.Link,
			Title:     item.Title,
			Content:   item.Description,
			PostedAt:  itemTime(item),
		}
		if item.Author != nil {
			post.Author = item.Author.Name
		}
		if len(item.Categories) > 0 {
			post.Topic = item.Categories[0]
		}
		if post.SourceID == "" {
			post.SourceID = item.Link
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	if item.Published != "" {
		if ts, err := dateparse.ParseAny(item.Published); err == nil {
			return &ts
		}
	}
	return nil
}
