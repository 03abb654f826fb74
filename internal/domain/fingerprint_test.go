package domain

import (
	"testing"
	"time"
)

func TestFingerprintCollapsesRewordedRelease(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)

	a := Normalize(ReleaseItem{
		Source: "calendar",
		Title:  "US CPI rises 0.3%",
		Body:   "Consumer prices increased in line with expectations last month.",
	}, now)
	b := Normalize(ReleaseItem{
		Source: "calendar",
		Title:  "US CPI up 0.3% on the month",
		Body:   "Headline inflation matched the consensus forecast.",
	}, now)

	if a.Indicator != "CPI" || b.Indicator != "CPI" {
		t.Fatalf("expected CPI indicator on both, got %q and %q", a.Indicator, b.Indicator)
	}
	if a.ID != b.ID {
		t.Fatalf("reworded release got different fingerprints: %s vs %s", a.ID, b.ID)
	}
}

func TestFingerprintSeparatesDistinctReleases(t *testing.T) {
	t.Parallel()

	base := ReleaseItem{Source: "calendar", Title: "US CPI rises 0.3%", Indicator: "CPI"}

	differentNumber := base
	differentNumber.Title = "US CPI rises 0.4%"
	if Fingerprint(base) == Fingerprint(differentNumber) {
		t.Fatal("different readings must not share a fingerprint")
	}

	differentSource := base
	differentSource.Source = "rss:reuters"
	if Fingerprint(base) == Fingerprint(differentSource) {
		t.Fatal("different sources must not share a fingerprint")
	}
}

func TestFingerprintUntaggedUsesNormalizedTitle(t *testing.T) {
	t.Parallel()

	a := ReleaseItem{Source: "rss:feed", Title: "Treasury auction sees  solid demand!"}
	b := ReleaseItem{Source: "rss:feed", Title: "Treasury auction sees solid demand"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("punctuation and spacing must not change the fingerprint")
	}

	c := ReleaseItem{Source: "rss:feed", Title: "Treasury auction sees weak demand"}
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("different titles must not share a fingerprint")
	}
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	got := NormalizeTitle("  BREAKING:  Fed    Holds Rates!!! ")
	want := "breaking fed holds rates"
	if got != want {
		t.Fatalf("NormalizeTitle = %q, want %q", got, want)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 9, 30, 0, 0, time.UTC)
	item := Normalize(ReleaseItem{
		Source: " rss:feed ",
		Title:  " Retail sales beat forecasts ",
		Body:   " Consumers kept spending. ",
	}, now)

	if item.PublishedAt != now {
		t.Fatalf("expected publish time defaulted to now, got %v", item.PublishedAt)
	}
	if item.Impact != ImpactMedium {
		t.Fatalf("expected medium impact default, got %s", item.Impact)
	}
	if item.Indicator != "RETAIL_SALES" {
		t.Fatalf("expected RETAIL_SALES indicator, got %q", item.Indicator)
	}
	if item.ID == "" || len(item.ID) != 16 {
		t.Fatalf("expected 16-char fingerprint id, got %q", item.ID)
	}
	if item.Source != "rss:feed" || item.Title != "Retail sales beat forecasts" {
		t.Fatalf("expected trimmed fields, got %q / %q", item.Source, item.Title)
	}
}

func TestDetectIndicator(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  string
	}{
		{"US CPI rises 0.3%", "CPI"},
		{"Consumer Price Index accelerates", "CPI"},
		{"Nonfarm payrolls surge", "NFP"},
		{"FOMC statement due", "RATE_DECISION"},
		{"Unemployment falls to 3.9%", "UNEMPLOYMENT"},
		{"Aid recipient list published", ""},
		{"Quiet session ahead of data", ""},
	}

	for _, tc := range cases {
		if got := DetectIndicator(tc.title); got != tc.want {
			t.Fatalf("DetectIndicator(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestImpactWeightAndRank(t *testing.T) {
	t.Parallel()

	if ImpactHigh.Weight() != 3 || ImpactMedium.Weight() != 2 || ImpactLow.Weight() != 1 {
		t.Fatal("unexpected impact weights")
	}
	if ImpactHigh.Rank() <= ImpactMedium.Rank() || ImpactMedium.Rank() <= ImpactLow.Rank() {
		t.Fatal("impact ranks must be strictly ordered")
	}
}

func TestClassifySentiment(t *testing.T) {
	t.Parallel()

	if got := ClassifySentiment(0.25, 0.1); got != SentimentBullish {
		t.Fatalf("expected bullish, got %s", got)
	}
	if got := ClassifySentiment(-0.25, 0.1); got != SentimentBearish {
		t.Fatalf("expected bearish, got %s", got)
	}
	if got := ClassifySentiment(0.1, 0.1); got != SentimentNeutral {
		t.Fatalf("expected neutral at the threshold, got %s", got)
	}
}
