package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	nonWordExpr = regexp.MustCompile(`[^a-z0-9. ]+`)
	numberExpr  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	spaceExpr   = regexp.MustCompile(`\s+`)
)

// Fingerprint derives the stable content fingerprint used by the
// deduplication ledger. Items tagged with an indicator collapse on
// source, indicator, and the numeric tokens of the title, so minor
// rewordings of the same wire print ("CPI rises 0.3%" vs "CPI up 0.3%
// on the month") share one fingerprint. Untagged items collapse on the
// full normalized title.
func Fingerprint(item ReleaseItem) string {
	var basis string
	if item.Indicator != "" {
		numbers := numberExpr.FindAllString(item.Title, -1)
		basis = item.Source + "|" + strings.ToLower(item.Indicator) + "|" + strings.Join(numbers, ",")
	} else {
		basis = item.Source + "|" + NormalizeTitle(item.Title)
	}

	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeTitle lowercases, strips punctuation, and collapses
// whitespace. Exact normalized matching only; fuzzy similarity is a
// possible future refinement.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = nonWordExpr.ReplaceAllString(t, "")
	t = spaceExpr.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
