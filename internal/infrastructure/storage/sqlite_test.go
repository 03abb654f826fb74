package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"MacroBrief/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "macrobrief.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetLastSentReturnsLatestRecord(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetLastSent(ctx, "fp1", "email"); err != nil || found {
		t.Fatalf("empty ledger: found=%v err=%v", found, err)
	}

	first := time.Date(2026, time.August, 19, 8, 0, 0, 0, time.UTC)
	second := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)

	for _, sentAt := range []time.Time{first, second} {
		err := store.AppendRecord(ctx, domain.NotificationRecord{
			Fingerprint: "fp1",
			Channel:     "email",
			SentAt:      sentAt,
			BriefingID:  "b1",
		})
		if err != nil {
			t.Fatalf("append record: %v", err)
		}
	}

	last, found, err := store.GetLastSent(ctx, "fp1", "email")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if !last.Equal(second) {
		t.Fatalf("last sent = %v, want %v", last, second)
	}

	// Records are keyed per channel.
	if _, found, _ := store.GetLastSent(ctx, "fp1", "webhook"); found {
		t.Fatal("other channel must have no record")
	}
}

func TestScheduleUpsertListAndNotify(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	cpi := domain.ReleaseSchedule{
		Indicator:   "CPI",
		Country:     "US",
		ScheduledAt: now.Add(24 * time.Hour),
		Impact:      domain.ImpactHigh,
		Forecast:    decimal.NewNullDecimal(decimal.RequireFromString("3.2")),
		Previous:    decimal.NewNullDecimal(decimal.RequireFromString("3.4")),
	}
	pmi := domain.ReleaseSchedule{
		Indicator:   "PMI",
		Country:     "DE",
		ScheduledAt: now.Add(12 * time.Hour),
		Impact:      domain.ImpactLow,
	}

	for _, rel := range []domain.ReleaseSchedule{cpi, pmi} {
		if err := store.UpsertRelease(ctx, rel); err != nil {
			t.Fatalf("upsert %s: %v", rel.Indicator, err)
		}
	}

	all, err := store.ListUpcoming(ctx, now, 48*time.Hour, false)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(all) != 2 || all[0].Indicator != "PMI" || all[1].Indicator != "CPI" {
		t.Fatalf("unexpected schedule order: %+v", all)
	}
	if !all[1].Forecast.Valid || all[1].Forecast.Decimal.String() != "3.2" {
		t.Fatalf("forecast not round-tripped: %+v", all[1].Forecast)
	}
	if all[1].Previous.Decimal.String() != "3.4" {
		t.Fatalf("previous not round-tripped: %+v", all[1].Previous)
	}

	high, err := store.ListUpcoming(ctx, now, 48*time.Hour, true)
	if err != nil {
		t.Fatalf("list high impact: %v", err)
	}
	if len(high) != 1 || high[0].Indicator != "CPI" {
		t.Fatalf("unexpected high-impact list: %+v", high)
	}

	// Window is (from, from+window]: a release outside the window is
	// invisible.
	near, err := store.ListUpcoming(ctx, now, 12*time.Hour, false)
	if err != nil {
		t.Fatalf("list near: %v", err)
	}
	if len(near) != 1 || near[0].Indicator != "PMI" {
		t.Fatalf("unexpected near list: %+v", near)
	}

	if err := store.MarkReleaseNotified(ctx, "CPI", cpi.ScheduledAt); err != nil {
		t.Fatalf("mark notified: %v", err)
	}

	// A calendar refresh must not reset the notified flag.
	refreshed := cpi
	refreshed.Forecast = decimal.NewNullDecimal(decimal.RequireFromString("3.3"))
	if err := store.UpsertRelease(ctx, refreshed); err != nil {
		t.Fatalf("refresh upsert: %v", err)
	}

	high, err = store.ListUpcoming(ctx, now, 48*time.Hour, true)
	if err != nil {
		t.Fatalf("list after refresh: %v", err)
	}
	if len(high) != 1 || !high[0].Notified {
		t.Fatalf("notified flag lost on refresh: %+v", high)
	}
	if high[0].Forecast.Decimal.String() != "3.3" {
		t.Fatalf("refresh did not update forecast: %+v", high[0].Forecast)
	}
}

func TestSaveAndGetBriefing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	b := domain.Briefing{
		ID:               "briefing-1",
		Type:             domain.BriefingDaily,
		Title:            "Daily Macro Briefing - 2026-08-20",
		GeneratedAt:      time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC),
		WindowStart:      time.Date(2026, time.August, 19, 8, 0, 0, 0, time.UTC),
		WindowEnd:        time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC),
		OverallSentiment: 0.25,
		Direction:        domain.SentimentBullish,
		Summary:          "Market sentiment is bullish with positive market sentiment. Analyzed 1 relevant news items.",
		ExcludedCount:    2,
		Items: []domain.ScoredItem{
			{
				Item: domain.ReleaseItem{
					ID:     "fp-cpi",
					Source: "calendar",
					Title:  "CPI rises 0.3%",
					Impact: domain.ImpactHigh,
				},
				SentimentScore: 0.25,
			},
		},
	}

	if err := store.SaveBriefing(ctx, b); err != nil {
		t.Fatalf("save briefing: %v", err)
	}

	got, err := store.GetBriefing(ctx, "briefing-1")
	if err != nil {
		t.Fatalf("get briefing: %v", err)
	}
	if got.ID != b.ID || got.Type != b.Type || got.Title != b.Title {
		t.Fatalf("briefing header mismatch: %+v", got)
	}
	if got.OverallSentiment != b.OverallSentiment || got.ExcludedCount != b.ExcludedCount {
		t.Fatalf("briefing scores mismatch: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Item.ID != "fp-cpi" {
		t.Fatalf("briefing items mismatch: %+v", got.Items)
	}
}

func TestLogNotification(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.LogNotification(ctx, "briefing-1", "email", true, ""); err != nil {
		t.Fatalf("log success: %v", err)
	}
	if err := store.LogNotification(ctx, "briefing-1", "webhook", false, "connection refused"); err != nil {
		t.Fatalf("log failure: %v", err)
	}
}
