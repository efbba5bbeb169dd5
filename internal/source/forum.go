package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/lead"
)

// ForumAdapter scrapes a forum index page with configurable selectors. It
// only reads listing metadata; thread bodies are left to the feed itself.
type ForumAdapter struct {
	cfg config.ForumFeedConfig
}

// NewForumAdapter builds a listing scraper for one forum.
func NewForumAdapter(cfg config.ForumFeedConfig) *ForumAdapter {
	return &ForumAdapter{cfg: cfg}
}

// Source identifies the forum feed.
func (a *ForumAdapter) Source() lead.Source { return lead.Source(a.cfg.Source) }

// Fetch visits the listing page and extracts one RawPost per item selector.
func (a *ForumAdapter) Fetch(ctx context.Context) ([]lead.RawPost, error) {
	var posts []lead.RawPost
	var responseErr error

	c := colly.NewCollector(colly.Async(false))

	c.OnHTML(a.cfg.ItemSelector, func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText(a.cfg.TitleSelector))
		link := e.ChildAttr(a.cfg.LinkSelector, "href")
		if title == "" || link == "" {
			return
		}
		posts = append(posts, lead.RawPost{
			Source:    lead.Source(a.cfg.Source),
			SourceID:  e.Request.AbsoluteURL(link),
			SourceURL: e.Request.AbsoluteURL(link),
			Title:     title,
		})
	})

	c.OnError(func(_ *colly.Response, err error) {
		responseErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(a.cfg.URL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("forum fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", a.cfg.URL, err)
		}
		if responseErr != nil {
			return nil, fmt.Errorf("scrape %s: %w", a.cfg.URL, responseErr)
		}
		return posts, nil
	}
}
