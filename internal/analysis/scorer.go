package analysis

import (
	"regexp"
	"strings"

	"MacroBrief/internal/config"
)

// sentimentGain scales lexicon-hit density into the [-1, 1] range so a
// single loaded word in a long release does not saturate the score.
const sentimentGain = 5.0

// manipulationGain scales manipulation-term density; with the default
// threshold of 0.4 two hype terms in a ~50-token body cross it.
const manipulationGain = 10.0

var tokenExpr = regexp.MustCompile(`[a-z0-9]+(?:\.[0-9]+)?`)

// Scorer computes polarity and manipulation-risk scores from item text.
// Deterministic for identical text and lexicon; empty or malformed text
// scores neutral rather than failing.
type Scorer struct {
	positive     map[string]struct{}
	negative     map[string]struct{}
	manipulative map[string]struct{}
}

// NewScorer builds a scorer from the configured lexicon.
func NewScorer(cfg config.AnalysisConfig) *Scorer {
	return &Scorer{
		positive:     toSet(cfg.PositiveWords),
		negative:     toSet(cfg.NegativeWords),
		manipulative: toSet(cfg.ManipulationKeywords),
	}
}

// Score analyzes the combined title and body. The sentiment score is in
// [-1, 1]; the manipulation score is manipulation-term frequency
// normalized by text length, capped at 1.
func (s *Scorer) Score(title, body string) (sentiment, manipulation float64) {
	tokens := tokenize(title + " " + body)
	if len(tokens) == 0 {
		return 0, 0
	}

	var positive, negative, manipulative int
	for _, tok := range tokens {
		if _, ok := s.positive[tok]; ok {
			positive++
		}
		if _, ok := s.negative[tok]; ok {
			negative++
		}
		if _, ok := s.manipulative[tok]; ok {
			manipulative++
		}
	}

	total := float64(len(tokens))
	sentiment = clamp(float64(positive-negative)/total*sentimentGain, -1, 1)
	manipulation = clamp(float64(manipulative)/total*manipulationGain, 0, 1)
	return sentiment, manipulation
}

func tokenize(text string) []string {
	return tokenExpr.FindAllString(strings.ToLower(text), -1)
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
