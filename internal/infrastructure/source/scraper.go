package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MacroBrief/internal/config"
	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// PageSource scrapes release items from configured news pages
// (central-bank press pages, statistics-office headlines) using CSS
// selectors from config.
type PageSource struct {
	pages  []config.PageConfig
	client *http.Client
}

var _ ports.ItemSource = (*PageSource)(nil)

// NewPageSource wires an HTTP client; a nil client gets a 20s-timeout
// default.
func NewPageSource(pages []config.PageConfig, client *http.Client) *PageSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageSource{pages: pages, client: client}
}

// Name identifies this source in logs and degraded-run reports.
func (s *PageSource) Name() string { return "pages" }

// FetchItems scrapes every configured page. A single broken page is
// skipped; the source errors only when every page fails.
func (s *PageSource) FetchItems(ctx context.Context) ([]domain.ReleaseItem, error) {
	if len(s.pages) == 0 {
		return nil, nil
	}

	var items []domain.ReleaseItem
	var failures int

	for _, page := range s.pages {
		pageItems, err := s.scrape(ctx, page)
		if err != nil {
			failures++
			continue
		}
		items = append(items, pageItems...)
	}

	if failures == len(s.pages) {
		return nil, fmt.Errorf("%w: all %d pages failed", domain.ErrSourceUnavailable, failures)
	}
	return items, nil
}

// FetchSchedule is a no-op; scraped pages carry no calendar data.
func (s *PageSource) FetchSchedule(ctx context.Context) ([]domain.ReleaseSchedule, error) {
	return nil, nil
}

func (s *PageSource) scrape(ctx context.Context, page config.PageConfig) ([]domain.ReleaseItem, error) {
	doc, err := s.fetchDocument(ctx, page.URL)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", page.Name, err)
	}

	impact := parseImpact(page.Impact)
	var items []domain.ReleaseItem

	doc.Find(page.ItemSelector).Each(func(i int, sel *goquery.Selection) {
		title := sel.Find(page.TitleSelector).First().Text()
		body := sel.Find(page.BodySelector).First().Text()
		if title == "" {
			return
		}

		url, _ := sel.Find("a").First().Attr("href")

		items = append(items, domain.ReleaseItem{
			Source: "page:" + page.Name,
			Title:  title,
			Body:   body,
			URL:    url,
			Impact: impact,
		})
	})

	return items, nil
}

func (s *PageSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "MacroBrief/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
