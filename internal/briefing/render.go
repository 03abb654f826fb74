package briefing

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"MacroBrief/internal/domain"
)

// Render produces the per-transport representations of a briefing:
// plain text, HTML for email, and a generic JSON payload for webhooks.
func Render(b domain.Briefing) (domain.Message, error) {
	payload, err := json.Marshal(webhookPayload(b))
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	return domain.Message{
		Subject:     b.Title,
		PlainBody:   renderPlain(b),
		HTMLBody:    renderHTML(b),
		JSONPayload: payload,
	}, nil
}

func renderPlain(b domain.Briefing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", b.Title)
	fmt.Fprintf(&sb, "**Sentiment: %s (%.2f)**\n\n", strings.ToUpper(string(b.Direction)), b.OverallSentiment)
	sb.WriteString(b.Summary)
	sb.WriteString("\n")

	if len(b.KeyPoints) > 0 {
		sb.WriteString("\n## Key Points\n")
		for _, point := range b.KeyPoints {
			fmt.Fprintf(&sb, "- %s\n", point)
		}
	}

	if len(b.Upcoming) > 0 {
		sb.WriteString("\n## Upcoming High-Impact Releases\n")
		for _, rel := range b.Upcoming {
			fmt.Fprintf(&sb, "- %s %s - %s\n", rel.Country, rel.Indicator,
				rel.ScheduledAt.UTC().Format("2006-01-02 15:04 UTC"))
			if rel.Forecast.Valid {
				fmt.Fprintf(&sb, "  Forecast: %s\n", rel.Forecast.Decimal.String())
			}
			if rel.Previous.Valid {
				fmt.Fprintf(&sb, "  Previous: %s\n", rel.Previous.Decimal.String())
			}
		}
	}

	fmt.Fprintf(&sb, "\nGenerated: %s\n", b.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	return sb.String()
}

func renderHTML(b domain.Briefing) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	fmt.Fprintf(&sb, "<h1>%s</h1>", html.EscapeString(b.Title))
	fmt.Fprintf(&sb, "<p><strong>Sentiment: %s (%.2f)</strong></p>",
		strings.ToUpper(string(b.Direction)), b.OverallSentiment)
	fmt.Fprintf(&sb, "<p>%s</p>", html.EscapeString(b.Summary))

	if len(b.KeyPoints) > 0 {
		sb.WriteString("<h2>Key Points</h2><ul>")
		for _, point := range b.KeyPoints {
			fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(point))
		}
		sb.WriteString("</ul>")
	}

	if len(b.Upcoming) > 0 {
		sb.WriteString("<h2>Upcoming High-Impact Releases</h2><ul>")
		for _, rel := range b.Upcoming {
			entry := fmt.Sprintf("%s %s - %s", rel.Country, rel.Indicator,
				rel.ScheduledAt.UTC().Format("2006-01-02 15:04 UTC"))
			if rel.Forecast.Valid {
				entry += fmt.Sprintf(" (forecast %s)", rel.Forecast.Decimal.String())
			}
			fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(entry))
		}
		sb.WriteString("</ul>")
	}

	fmt.Fprintf(&sb, "<p><em>Generated: %s</em></p>", b.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	sb.WriteString("</body></html>")
	return sb.String()
}

type webhookItem struct {
	Fingerprint string  `json:"fingerprint"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	Indicator   string  `json:"indicator,omitempty"`
	Impact      string  `json:"impact"`
	Sentiment   float64 `json:"sentiment"`
	PublishedAt string  `json:"published_at"`
}

type webhookBody struct {
	ID               string        `json:"id"`
	Type             string        `json:"type"`
	Title            string        `json:"title"`
	Summary          string        `json:"summary"`
	Sentiment        string        `json:"sentiment"`
	OverallSentiment float64       `json:"overall_sentiment"`
	KeyPoints        []string      `json:"key_points"`
	Items            []webhookItem `json:"items"`
	ExcludedCount    int           `json:"excluded_count"`
	WindowStart      string        `json:"window_start"`
	WindowEnd        string        `json:"window_end"`
	GeneratedAt      string        `json:"generated_at"`
}

func webhookPayload(b domain.Briefing) webhookBody {
	items := make([]webhookItem, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, webhookItem{
			Fingerprint: it.Item.ID,
			Title:       it.Item.Title,
			Source:      it.Item.Source,
			Indicator:   it.Item.Indicator,
			Impact:      string(it.Item.Impact),
			Sentiment:   it.SentimentScore,
			PublishedAt: it.Item.PublishedAt.Format(time.RFC3339),
		})
	}

	return webhookBody{
		ID:               b.ID,
		Type:             string(b.Type),
		Title:            b.Title,
		Summary:          b.Summary,
		Sentiment:        string(b.Direction),
		OverallSentiment: b.OverallSentiment,
		KeyPoints:        b.KeyPoints,
		Items:            items,
		ExcludedCount:    b.ExcludedCount,
		WindowStart:      b.WindowStart.Format(time.RFC3339),
		WindowEnd:        b.WindowEnd.Format(time.RFC3339),
		GeneratedAt:      b.GeneratedAt.Format(time.RFC3339),
	}
}
