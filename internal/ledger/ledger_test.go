package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MacroBrief/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	last    map[string]time.Time
	records []domain.NotificationRecord
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{last: map[string]time.Time{}}
}

func (f *fakeStore) GetLastSent(ctx context.Context, fingerprint, channel string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	last, ok := f.last[fingerprint+"|"+channel]
	return last, ok, nil
}

func (f *fakeStore) AppendRecord(ctx context.Context, rec domain.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	f.last[rec.Fingerprint+"|"+rec.Channel] = rec.SentAt
	return nil
}

func TestShouldNotifyCooldown(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	led := New(store, 24*time.Hour, nil)
	ctx := context.Background()

	sent := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)

	if !led.ShouldNotify(ctx, "fp1", "email", sent) {
		t.Fatal("unseen fingerprint must be notifiable")
	}

	if err := led.Record(ctx, "fp1", "email", "briefing-1", sent); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if led.ShouldNotify(ctx, "fp1", "email", sent.Add(23*time.Hour)) {
		t.Fatal("fingerprint within cool-down must be suppressed")
	}
	if !led.ShouldNotify(ctx, "fp1", "email", sent.Add(24*time.Hour)) {
		t.Fatal("fingerprint at the cool-down boundary must be notifiable again")
	}
}

func TestShouldNotifyIsPerChannel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	led := New(store, 24*time.Hour, nil)
	ctx := context.Background()

	sent := time.Date(2026, time.August, 20, 8, 0, 0, 0, time.UTC)
	if err := led.Record(ctx, "fp1", "email", "briefing-1", sent); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if led.ShouldNotify(ctx, "fp1", "email", sent.Add(time.Hour)) {
		t.Fatal("notified channel must be suppressed")
	}
	if !led.ShouldNotify(ctx, "fp1", "webhook", sent.Add(time.Hour)) {
		t.Fatal("other channels must not be suppressed")
	}
}

func TestShouldNotifyFailsOpen(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.err = errors.New("disk gone")
	led := New(store, 24*time.Hour, nil)

	if !led.ShouldNotify(context.Background(), "fp1", "email", time.Now()) {
		t.Fatal("a ledger lookup failure must allow the notification")
	}
}

func TestRecordWrapsLedgerError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.err = errors.New("disk gone")
	led := New(store, 24*time.Hour, nil)

	err := led.Record(context.Background(), "fp1", "email", "briefing-1", time.Now())
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestAcquireKeySerializesSameKey(t *testing.T) {
	t.Parallel()

	led := New(newFakeStore(), time.Hour, nil)

	var counter, peak int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := led.AcquireKey("fp1", "email")
			defer release()

			mu.Lock()
			counter++
			if counter > peak {
				peak = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("expected at most one holder of the key, saw %d", peak)
	}
}
