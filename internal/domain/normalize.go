package domain

import (
	"strings"
	"time"
)

// indicatorTags maps title keywords to canonical indicator tags. Matching
// is case-insensitive against the whole title.
var indicatorTags = []struct {
	keyword string
	tag     string
}{
	{"consumer price index", "CPI"},
	{"cpi", "CPI"},
	{"nonfarm payrolls", "NFP"},
	{"non-farm payrolls", "NFP"},
	{"nfp", "NFP"},
	{"producer price index", "PPI"},
	{"ppi", "PPI"},
	{"gross domestic product", "GDP"},
	{"gdp", "GDP"},
	{"rate decision", "RATE_DECISION"},
	{"interest rate", "RATE_DECISION"},
	{"fomc", "RATE_DECISION"},
	{"unemployment", "UNEMPLOYMENT"},
	{"pmi", "PMI"},
	{"retail sales", "RETAIL_SALES"},
}

// Normalize converts a raw adapter payload into the canonical item:
// trims text, fills in publish time and impact defaults, tags the
// indicator when the title names one, and assigns the stable
// fingerprint as the item ID. The result is immutable by convention.
func Normalize(item ReleaseItem, now time.Time) ReleaseItem {
	item.Title = strings.TrimSpace(item.Title)
	item.Body = strings.TrimSpace(item.Body)
	item.Source = strings.TrimSpace(item.Source)

	if item.PublishedAt.IsZero() {
		item.PublishedAt = now.UTC()
	} else {
		item.PublishedAt = item.PublishedAt.UTC()
	}

	if item.Impact == "" {
		item.Impact = ImpactMedium
	}

	if item.Indicator == "" {
		item.Indicator = DetectIndicator(item.Title)
	}

	item.ID = Fingerprint(item)
	return item
}

// DetectIndicator returns the canonical tag for the first indicator the
// title mentions, or "" when none match.
func DetectIndicator(title string) string {
	lower := " " + strings.ToLower(title) + " "
	for _, entry := range indicatorTags {
		if len(entry.keyword) <= 4 {
			// Short tags match on word boundaries only, so "cpi" does
			// not fire inside unrelated words.
			if strings.Contains(lower, " "+entry.keyword+" ") {
				return entry.tag
			}
			continue
		}
		if strings.Contains(lower, entry.keyword) {
			return entry.tag
		}
	}
	return ""
}
