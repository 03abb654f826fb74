package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImpactLevel is the source-assigned severity of a release's expected
// market effect.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Weight returns the aggregation weight used when averaging sentiment
// across a briefing (LOW=1, MEDIUM=2, HIGH=3).
func (l ImpactLevel) Weight() float64 {
	switch l {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	default:
		return 1
	}
}

// Rank orders impact levels for briefing composition; higher is more
// impactful.
func (l ImpactLevel) Rank() int {
	switch l {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	default:
		return 1
	}
}

// ReleaseItem is a canonical news/data item produced by the normalizer.
// Immutable once normalized.
type ReleaseItem struct {
	ID          string
	Source      string
	Title       string
	Body        string
	URL         string
	PublishedAt time.Time
	Indicator   string
	Impact      ImpactLevel
	RawMetadata map[string]string
}

// ScoredItem annotates a ReleaseItem with analysis results. Derived,
// never mutated after creation; recomputed if re-scored.
type ScoredItem struct {
	Item              ReleaseItem
	SentimentScore    float64
	ManipulationScore float64
	IsNoise           bool
	IsManipulative    bool
	LowSignificance   bool
}

// Accepted reports whether the item survives all filter policies and is
// eligible for briefings.
func (s ScoredItem) Accepted() bool {
	return !s.IsNoise && !s.IsManipulative && !s.LowSignificance
}

// BriefingType distinguishes the scheduled daily digest from per-release
// high-impact alerts.
type BriefingType string

const (
	BriefingDaily      BriefingType = "daily"
	BriefingHighImpact BriefingType = "high_impact"
)

// Sentiment is the classified direction of a score.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// ClassifySentiment maps a raw score to a direction given the configured
// significance threshold.
func ClassifySentiment(score, threshold float64) Sentiment {
	switch {
	case score > threshold:
		return SentimentBullish
	case score < -threshold:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// Briefing is a composed, ranked summary of accepted items over a time
// window, or a single high-impact event. Immutable once composed.
type Briefing struct {
	ID               string
	Type             BriefingType
	Title            string
	GeneratedAt      time.Time
	WindowStart      time.Time
	WindowEnd        time.Time
	Items            []ScoredItem
	OverallSentiment float64
	Direction        Sentiment
	ExcludedCount    int
	KeyPoints        []string
	Summary          string
	Upcoming         []ReleaseSchedule
}

// NotificationRecord is the deduplication ledger's unit of state.
// Append-only.
type NotificationRecord struct {
	Fingerprint string
	Channel     string
	SentAt      time.Time
	BriefingID  string
}

// ReleaseSchedule is a calendar entry for an upcoming economic release.
type ReleaseSchedule struct {
	Indicator   string
	Country     string
	ScheduledAt time.Time
	Impact      ImpactLevel
	Forecast    decimal.NullDecimal
	Previous    decimal.NullDecimal
	Released    bool
	Notified    bool
}

// Message is rendered notification content handed to a transport.
// Rendering is a core responsibility; delivery is not.
type Message struct {
	Subject     string
	PlainBody   string
	HTMLBody    string
	JSONPayload []byte
}
