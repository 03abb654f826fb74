package briefing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"MacroBrief/internal/domain"
)

// keyPointLimit caps the number of headline bullets in a briefing.
const keyPointLimit = 5

// titleTruncateAt caps key-point length.
const titleTruncateAt = 100

// Composer aggregates filtered items over a time window into a single
// ranked briefing.
type Composer struct {
	sentimentThreshold float64
}

// NewComposer builds a composer; the threshold classifies the overall
// score into a bullish/bearish/neutral direction.
func NewComposer(sentimentThreshold float64) *Composer {
	return &Composer{sentimentThreshold: sentimentThreshold}
}

// Compose selects accepted items published within [windowStart,
// windowEnd), ranks them by impact then |sentiment| descending, and
// computes the impact-weighted overall sentiment. An empty window still
// yields a valid briefing with no items and a neutral score. For
// HIGH_IMPACT briefings only HIGH-impact items are eligible.
func (c *Composer) Compose(
	typ domain.BriefingType,
	windowStart, windowEnd time.Time,
	items []domain.ScoredItem,
	upcoming []domain.ReleaseSchedule,
	now time.Time,
) domain.Briefing {
	var selected []domain.ScoredItem
	var excluded, noise, manipulative int

	for _, it := range items {
		published := it.Item.PublishedAt
		if published.Before(windowStart) || !published.Before(windowEnd) {
			continue
		}
		if it.IsNoise {
			noise++
		}
		if it.IsManipulative {
			manipulative++
		}
		if !it.Accepted() {
			excluded++
			continue
		}
		if typ == domain.BriefingHighImpact && it.Item.Impact != domain.ImpactHigh {
			continue
		}
		selected = append(selected, it)
	}

	rank(selected)

	overall := weightedSentiment(selected)
	direction := domain.ClassifySentiment(overall, c.sentimentThreshold)

	b := domain.Briefing{
		ID:               uuid.NewString(),
		Type:             typ,
		Title:            composeTitle(typ, selected, now),
		GeneratedAt:      now.UTC(),
		WindowStart:      windowStart.UTC(),
		WindowEnd:        windowEnd.UTC(),
		Items:            selected,
		OverallSentiment: overall,
		Direction:        direction,
		ExcludedCount:    excluded,
		KeyPoints:        keyPoints(selected),
		Upcoming:         upcoming,
	}
	b.Summary = composeSummary(direction, len(selected), noise, manipulative)
	return b
}

// rank orders items by impact descending, then |sentiment| descending,
// with publish time and fingerprint as deterministic tie-breakers so
// composing the same window twice yields identical ordering.
func rank(items []domain.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Item.Impact.Rank() != b.Item.Impact.Rank() {
			return a.Item.Impact.Rank() > b.Item.Impact.Rank()
		}
		am, bm := abs(a.SentimentScore), abs(b.SentimentScore)
		if am != bm {
			return am > bm
		}
		if !a.Item.PublishedAt.Equal(b.Item.PublishedAt) {
			return a.Item.PublishedAt.After(b.Item.PublishedAt)
		}
		return a.Item.ID < b.Item.ID
	})
}

func weightedSentiment(items []domain.ScoredItem) float64 {
	var weightedSum, totalWeight float64
	for _, it := range items {
		w := it.Item.Impact.Weight()
		weightedSum += it.SentimentScore * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func keyPoints(items []domain.ScoredItem) []string {
	points := make([]string, 0, keyPointLimit)
	for _, it := range items {
		if len(points) == keyPointLimit {
			break
		}
		title := it.Item.Title
		if len(title) > titleTruncateAt {
			title = title[:titleTruncateAt] + "..."
		}
		points = append(points, title)
	}
	return points
}

func composeTitle(typ domain.BriefingType, items []domain.ScoredItem, now time.Time) string {
	if typ == domain.BriefingHighImpact {
		name := "Economic Release"
		if len(items) > 0 && items[0].Item.Indicator != "" {
			name = items[0].Item.Indicator
		}
		return fmt.Sprintf("High-Impact Alert: %s", name)
	}
	return fmt.Sprintf("Daily Macro Briefing - %s", now.UTC().Format("2006-01-02"))
}

func composeSummary(direction domain.Sentiment, accepted, noise, manipulative int) string {
	descriptions := map[domain.Sentiment]string{
		domain.SentimentBullish: "bullish with positive market sentiment",
		domain.SentimentBearish: "bearish with cautious market sentiment",
		domain.SentimentNeutral: "neutral with mixed market signals",
	}

	summary := fmt.Sprintf("Market sentiment is %s. Analyzed %d relevant news items.",
		descriptions[direction], accepted)
	if noise > 0 {
		summary += fmt.Sprintf(" Filtered %d low-quality noise items.", noise)
	}
	if manipulative > 0 {
		summary += fmt.Sprintf(" Flagged %d items for potential manipulation.", manipulative)
	}
	return summary
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
