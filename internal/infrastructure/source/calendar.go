package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// CalendarSource talks to an economic-calendar HTTP API for scheduled
// releases and the news items generated when they print.
type CalendarSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ ports.ItemSource = (*CalendarSource)(nil)

// NewCalendarSource wires the calendar API client; a nil client gets a
// 15s-timeout default.
func NewCalendarSource(endpoint, apiKey string, client *http.Client) *CalendarSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &CalendarSource{endpoint: endpoint, apiKey: apiKey, client: client}
}

// Name identifies this source in logs and degraded-run reports.
func (s *CalendarSource) Name() string { return "calendar" }

// calendarEvent is the API's wire format for one calendar row.
type calendarEvent struct {
	Indicator string `json:"indicator"`
	Country   string `json:"country"`
	Time      string `json:"time"`
	Impact    string `json:"impact"`
	Forecast  string `json:"forecast"`
	Previous  string `json:"previous"`
	Actual    string `json:"actual"`
	Released  bool   `json:"released"`
	Headline  string `json:"headline"`
	Note      string `json:"note"`
}

// FetchItems returns a news item for every release that has printed,
// so a CPI or NFP release enters the scoring pipeline like any other
// story.
func (s *CalendarSource) FetchItems(ctx context.Context) ([]domain.ReleaseItem, error) {
	events, err := s.fetchEvents(ctx)
	if err != nil {
		return nil, err
	}

	var items []domain.ReleaseItem
	for _, ev := range events {
		if !ev.Released {
			continue
		}

		title := ev.Headline
		if title == "" {
			title = fmt.Sprintf("%s %s released at %s", ev.Country, ev.Indicator, ev.Actual)
		}
		body := ev.Note
		if body == "" {
			body = fmt.Sprintf("%s %s: actual %s, forecast %s, previous %s.",
				ev.Country, ev.Indicator, ev.Actual, ev.Forecast, ev.Previous)
		}

		items = append(items, domain.ReleaseItem{
			Source:      "calendar",
			Title:       title,
			Body:        body,
			PublishedAt: parseEventTime(ev.Time),
			Indicator:   ev.Indicator,
			Impact:      parseImpact(ev.Impact),
		})
	}
	return items, nil
}

// FetchSchedule returns the upcoming (not yet released) calendar rows.
func (s *CalendarSource) FetchSchedule(ctx context.Context) ([]domain.ReleaseSchedule, error) {
	events, err := s.fetchEvents(ctx)
	if err != nil {
		return nil, err
	}

	var schedule []domain.ReleaseSchedule
	for _, ev := range events {
		if ev.Released {
			continue
		}
		rel := domain.ReleaseSchedule{
			Indicator:   ev.Indicator,
			Country:     ev.Country,
			ScheduledAt: parseEventTime(ev.Time),
			Impact:      parseImpact(ev.Impact),
		}
		if d, err := decimal.NewFromString(ev.Forecast); err == nil {
			rel.Forecast = decimal.NewNullDecimal(d)
		}
		if d, err := decimal.NewFromString(ev.Previous); err == nil {
			rel.Previous = decimal.NewNullDecimal(d)
		}
		schedule = append(schedule, rel)
	}
	return schedule, nil
}

func (s *CalendarSource) fetchEvents(ctx context.Context) ([]calendarEvent, error) {
	if s.endpoint == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: calendar api returned %s", domain.ErrSourceUnavailable, resp.Status)
	}

	var events []calendarEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode calendar response: %w", err)
	}
	return events, nil
}

func parseEventTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func parseImpact(value string) domain.ImpactLevel {
	switch value {
	case "high":
		return domain.ImpactHigh
	case "low":
		return domain.ImpactLow
	default:
		return domain.ImpactMedium
	}
}
