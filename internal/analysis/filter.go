package analysis

import (
	"regexp"
	"strings"

	"MacroBrief/internal/config"
	"MacroBrief/internal/domain"
)

// extremeSentiment is the |score| above which an item is treated as
// manipulative regardless of keyword hits.
const extremeSentiment = 0.8

// maxPunctuation is the number of ! or ? marks tolerated before an item
// counts as clickbait noise.
const maxPunctuation = 3

// maxCapsWords is the number of ALL-CAPS words tolerated before an item
// counts as manipulative.
const maxCapsWords = 2

var capsExpr = regexp.MustCompile(`\b[A-Z]{4,}\b`)

// Filter classifies scored items as accepted, noise, manipulative, or
// low-significance. Policies combine with OR semantics: any match
// excludes the item from briefings. The filter never mutates the
// underlying item; it annotates the ScoredItem record.
type Filter struct {
	noiseKeywords         []string
	manipulationThreshold float64
	sentimentThreshold    float64
	minBodyLength         int
}

// NewFilter builds a filter from the analysis configuration.
func NewFilter(cfg config.AnalysisConfig) *Filter {
	keywords := make([]string, 0, len(cfg.NoiseKeywords))
	for _, kw := range cfg.NoiseKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Filter{
		noiseKeywords:         keywords,
		manipulationThreshold: cfg.ManipulationThreshold,
		sentimentThreshold:    cfg.SentimentThreshold,
		minBodyLength:         cfg.MinBodyLength,
	}
}

// Classify annotates an item with its scores and exclusion flags.
func (f *Filter) Classify(item domain.ReleaseItem, sentiment, manipulation float64) domain.ScoredItem {
	scored := domain.ScoredItem{
		Item:              item,
		SentimentScore:    sentiment,
		ManipulationScore: manipulation,
	}

	scored.IsNoise = f.isNoise(item)
	scored.IsManipulative = f.isManipulative(item, sentiment, manipulation)

	// Low-significance is a distinct exclusion class, not a noise or
	// manipulation flag. HIGH impact is never excluded on sentiment
	// magnitude: the source's impact classification outranks sentiment
	// ambiguity.
	if item.Impact == domain.ImpactLow && abs(sentiment) < f.sentimentThreshold {
		scored.LowSignificance = true
	}

	return scored
}

func (f *Filter) isNoise(item domain.ReleaseItem) bool {
	if len(item.Body) < f.minBodyLength {
		return true
	}

	combined := strings.ToLower(item.Title + " " + item.Body)
	for _, kw := range f.noiseKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}

	// Excessive punctuation is a clickbait indicator.
	if strings.Count(combined, "!") > maxPunctuation || strings.Count(combined, "?") > maxPunctuation {
		return true
	}

	return false
}

func (f *Filter) isManipulative(item domain.ReleaseItem, sentiment, manipulation float64) bool {
	if manipulation >= f.manipulationThreshold {
		return true
	}

	// Shouting sections and extreme polarity are both red flags even
	// when the hype lexicon misses.
	if len(capsExpr.FindAllString(item.Title+" "+item.Body, -1)) > maxCapsWords {
		return true
	}

	return abs(sentiment) > extremeSentiment
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
