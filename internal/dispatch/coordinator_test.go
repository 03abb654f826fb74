package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MacroBrief/internal/domain"
	"MacroBrief/internal/ledger"
)

type memLedgerStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{last: map[string]time.Time{}}
}

func (m *memLedgerStore) GetLastSent(ctx context.Context, fingerprint, channel string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.last[fingerprint+"|"+channel]
	return last, ok, nil
}

func (m *memLedgerStore) AppendRecord(ctx context.Context, rec domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[rec.Fingerprint+"|"+rec.Channel] = rec.SentAt
	return nil
}

type memBriefingStore struct {
	mu       sync.Mutex
	attempts []string
}

func (m *memBriefingStore) SaveBriefing(ctx context.Context, b domain.Briefing) error { return nil }

func (m *memBriefingStore) LogNotification(ctx context.Context, briefingID, channel string, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, channel)
	return nil
}

type fakeTransport struct {
	name string
	err  error

	mu    sync.Mutex
	sends int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(ctx context.Context, msg domain.Message) error {
	f.mu.Lock()
	f.sends++
	f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func testBriefing(id string, fingerprints ...string) domain.Briefing {
	b := domain.Briefing{
		ID:        id,
		Type:      domain.BriefingDaily,
		Title:     "Daily Macro Briefing - 2026-08-20",
		Direction: domain.SentimentNeutral,
	}
	for _, fp := range fingerprints {
		b.Items = append(b.Items, domain.ScoredItem{
			Item: domain.ReleaseItem{ID: fp, Source: "calendar", Title: "item " + fp},
		})
	}
	return b
}

func newTestCoordinator(channels []Channel, clock *time.Time) (*Coordinator, *memLedgerStore) {
	store := newMemLedgerStore()
	led := ledger.New(store, 24*time.Hour, nil)
	c := NewCoordinator(led, &memBriefingStore{}, channels, 30*time.Minute, 5*time.Second, nil)
	c.now = func() time.Time { return *clock }
	return c, store
}

func TestDispatchDeduplicatesAcrossRuns(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	tr := &fakeTransport{name: "webhook"}
	c, _ := newTestCoordinator([]Channel{{Transport: tr, Enabled: true}}, &now)

	ctx := context.Background()

	results := c.Dispatch(ctx, testBriefing("b1", "fp-cpi"))
	if results[0].Outcome != OutcomeSent {
		t.Fatalf("first dispatch = %s, want sent", results[0].Outcome)
	}

	// A later run containing the same story, past the rate-limit window
	// but within the dedup cool-down.
	now = now.Add(31 * time.Minute)
	results = c.Dispatch(ctx, testBriefing("b2", "fp-cpi"))
	if results[0].Outcome != OutcomeSkipped {
		t.Fatalf("duplicate dispatch = %s, want skipped", results[0].Outcome)
	}
	if tr.sendCount() != 1 {
		t.Fatalf("transport called %d times, want 1", tr.sendCount())
	}
}

func TestDispatchSendsWhenAnyItemIsEligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	tr := &fakeTransport{name: "webhook"}
	c, store := newTestCoordinator([]Channel{{Transport: tr, Enabled: true}}, &now)

	ctx := context.Background()

	if res := c.Dispatch(ctx, testBriefing("b1", "fp-old")); res[0].Outcome != OutcomeSent {
		t.Fatalf("first dispatch = %s, want sent", res[0].Outcome)
	}

	now = now.Add(31 * time.Minute)
	if res := c.Dispatch(ctx, testBriefing("b2", "fp-old", "fp-new")); res[0].Outcome != OutcomeSent {
		t.Fatalf("mixed dispatch = %s, want sent", res[0].Outcome)
	}

	// Only the eligible fingerprint gets a fresh ledger record.
	last, _, _ := store.GetLastSent(ctx, "fp-old", "webhook")
	if !last.Equal(time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("suppressed fingerprint was re-recorded at %v", last)
	}
	if _, found, _ := store.GetLastSent(ctx, "fp-new", "webhook"); !found {
		t.Fatal("new fingerprint missing a ledger record")
	}
}

func TestDispatchEmptyBriefingIsAlwaysEligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	tr := &fakeTransport{name: "webhook"}
	c, _ := newTestCoordinator([]Channel{{Transport: tr, Enabled: true}}, &now)

	results := c.Dispatch(context.Background(), testBriefing("b1"))
	if results[0].Outcome != OutcomeSent {
		t.Fatalf("empty briefing dispatch = %s, want sent", results[0].Outcome)
	}
}

func TestDispatchRateLimitDefersAndTickDrains(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	tr := &fakeTransport{name: "webhook"}
	c, _ := newTestCoordinator([]Channel{{Transport: tr, Enabled: true}}, &now)

	ctx := context.Background()

	if res := c.Dispatch(ctx, testBriefing("b1", "fp1")); res[0].Outcome != OutcomeSent {
		t.Fatalf("first dispatch = %s, want sent", res[0].Outcome)
	}

	// A genuinely new story five minutes later is deferred, not dropped.
	now = now.Add(5 * time.Minute)
	if res := c.Dispatch(ctx, testBriefing("b2", "fp2")); res[0].Outcome != OutcomeDeferred {
		t.Fatalf("rate-limited dispatch = %s, want deferred", res[0].Outcome)
	}
	if tr.sendCount() != 1 {
		t.Fatalf("transport called %d times before tick, want 1", tr.sendCount())
	}

	// Too early: still deferred.
	now = now.Add(5 * time.Minute)
	results := c.Tick(ctx)
	if len(results) != 1 || results[0].Outcome != OutcomeDeferred {
		t.Fatalf("early tick results = %+v, want one deferred", results)
	}

	// Past the interval the queue drains.
	now = time.Date(2026, time.August, 20, 8, 31, 0, 0, time.UTC)
	results = c.Tick(ctx)
	if len(results) != 1 || results[0].Outcome != OutcomeSent {
		t.Fatalf("tick results = %+v, want one sent", results)
	}
	if tr.sendCount() != 2 {
		t.Fatalf("transport called %d times, want 2", tr.sendCount())
	}

	// Queue is empty afterwards.
	if results = c.Tick(ctx); len(results) != 0 {
		t.Fatalf("drained queue produced results: %+v", results)
	}
}

func TestDispatchSkipsDisabledChannel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	tr := &fakeTransport{name: "email"}
	c, _ := newTestCoordinator([]Channel{{Transport: tr, Enabled: false}}, &now)

	results := c.Dispatch(context.Background(), testBriefing("b1", "fp1"))
	if results[0].Outcome != OutcomeSkipped {
		t.Fatalf("disabled channel = %s, want skipped", results[0].Outcome)
	}
	if tr.sendCount() != 0 {
		t.Fatal("disabled channel must not be called")
	}
}

func TestDispatchChannelFailureIsIsolated(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	broken := &fakeTransport{name: "email", err: errors.New("connection refused")}
	healthy := &fakeTransport{name: "webhook"}
	c, store := newTestCoordinator([]Channel{
		{Transport: broken, Enabled: true},
		{Transport: healthy, Enabled: true},
	}, &now)

	results := c.Dispatch(context.Background(), testBriefing("b1", "fp1"))

	byChannel := map[string]ChannelResult{}
	for _, res := range results {
		byChannel[res.Channel] = res
	}

	if byChannel["email"].Outcome != OutcomeFailed {
		t.Fatalf("broken channel = %s, want failed", byChannel["email"].Outcome)
	}
	if !errors.Is(byChannel["email"].Err, domain.ErrTransportFailure) {
		t.Fatalf("expected ErrTransportFailure, got %v", byChannel["email"].Err)
	}
	if byChannel["webhook"].Outcome != OutcomeSent {
		t.Fatalf("healthy channel = %s, want sent", byChannel["webhook"].Outcome)
	}

	// No ledger record for the failed channel, so the story is retried
	// there next run.
	if _, found, _ := store.GetLastSent(context.Background(), "fp1", "email"); found {
		t.Fatal("failed send must not be recorded")
	}
	if _, found, _ := store.GetLastSent(context.Background(), "fp1", "webhook"); !found {
		t.Fatal("successful send must be recorded")
	}
}
