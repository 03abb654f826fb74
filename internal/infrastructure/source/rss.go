package source

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// RSSSource pulls release items from a set of RSS/Atom feeds.
type RSSSource struct {
	feeds  []string
	parser *gofeed.Parser
}

var _ ports.ItemSource = (*RSSSource)(nil)

// NewRSSSource builds an RSS adapter over the configured feed URLs.
func NewRSSSource(feeds []string) *RSSSource {
	return &RSSSource{feeds: feeds, parser: gofeed.NewParser()}
}

// Name identifies this source in logs and degraded-run reports.
func (s *RSSSource) Name() string { return "rss" }

// FetchItems parses every configured feed. A single unreachable feed is
// skipped; the source only errors when every feed fails.
func (s *RSSSource) FetchItems(ctx context.Context) ([]domain.ReleaseItem, error) {
	if len(s.feeds) == 0 {
		return nil, nil
	}

	var items []domain.ReleaseItem
	var failures int

	for _, url := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			failures++
			continue
		}

		for _, entry := range feed.Items {
			items = append(items, mapEntry(feed, entry, url))
		}
	}

	if failures == len(s.feeds) {
		return nil, fmt.Errorf("%w: all %d feeds failed", domain.ErrSourceUnavailable, failures)
	}
	return items, nil
}

// FetchSchedule is a no-op; RSS feeds carry no calendar data.
func (s *RSSSource) FetchSchedule(ctx context.Context) ([]domain.ReleaseSchedule, error) {
	return nil, nil
}

func mapEntry(feed *gofeed.Feed, entry *gofeed.Item, url string) domain.ReleaseItem {
	body := entry.Content
	if body == "" {
		body = entry.Description
	}

	var published time.Time
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	feedName := feed.Title
	if feedName == "" {
		feedName = url
	}

	return domain.ReleaseItem{
		Source:      "rss:" + feedName,
		Title:       entry.Title,
		Body:        body,
		URL:         entry.Link,
		PublishedAt: published,
		Impact:      domain.ImpactMedium,
	}
}
