package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"MacroBrief/internal/config"
	"MacroBrief/internal/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	t.Setenv("MACROBRIEF_CONFIG", "")
	t.Setenv("MACROBRIEF_STORAGE_PATH", filepath.Join(t.TempDir(), "macrobrief.db"))
	return config.Load()
}

func TestNewWiresApplication(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer application.Close()

	if application.Pipeline() == nil {
		t.Fatal("pipeline not wired")
	}

	// Generating a briefing against an empty world must still produce a
	// valid, persisted result.
	now := time.Now()
	b, report, err := application.Pipeline().GenerateBriefing(context.Background(),
		domain.BriefingDaily, now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("GenerateBriefing error: %v", err)
	}
	if len(report.DegradedSources) != 0 {
		t.Fatalf("no sources configured, none should degrade: %v", report.DegradedSources)
	}
	if b.ID == "" || b.Direction != domain.SentimentNeutral {
		t.Fatalf("unexpected empty-world briefing: %+v", b)
	}
}

func TestRunRequiresAChannel(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer application.Close()

	err = application.Run(context.Background())
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration with no channels enabled, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.HighImpactPollMinutes = 0

	if _, err := New(cfg, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
