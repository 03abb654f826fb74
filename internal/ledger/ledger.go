package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// Ledger prevents repeated notification of the same or materially
// similar story across pipeline runs. All reads and writes for one
// (fingerprint, channel) key serialize through a per-key mutex, so
// overlapping daily and high-impact runs cannot race into a double
// notification.
type Ledger struct {
	store    ports.LedgerStore
	cooldown time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// New builds a ledger over the given store with the configured
// cool-down window.
func New(store ports.LedgerStore, cooldown time.Duration, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		cooldown: cooldown,
		logger:   logger,
		keys:     map[string]*sync.Mutex{},
	}
}

// AcquireKey locks the (fingerprint, channel) key and returns its
// release func. Callers hold the acquisition across the
// should-notify → send → record sequence so dedup decisions stay
// consistent within one run.
func (l *Ledger) AcquireKey(fingerprint, channel string) func() {
	l.mu.Lock()
	key := fingerprint + "|" + channel
	m, ok := l.keys[key]
	if !ok {
		m = &sync.Mutex{}
		l.keys[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// ShouldNotify reports whether the fingerprint may be notified on the
// channel at the given time. A record with sent_at within the cool-down
// of now suppresses notification. Store failures fail open: missing a
// high-impact print is worse than an occasional duplicate, so a lookup
// error allows the notification and is logged as a degraded-mode event.
func (l *Ledger) ShouldNotify(ctx context.Context, fingerprint, channel string, now time.Time) bool {
	last, found, err := l.store.GetLastSent(ctx, fingerprint, channel)
	if err != nil {
		l.warn("ledger lookup failed, failing open",
			"fingerprint", fingerprint, "channel", channel,
			"error", fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err))
		return true
	}
	if !found {
		return true
	}
	return now.Sub(last) >= l.cooldown
}

// Record appends a notification record. Called only after a successful
// send; a write failure here is reported but never rolls back the
// already-sent notification (at-least-once delivery).
func (l *Ledger) Record(ctx context.Context, fingerprint, channel, briefingID string, now time.Time) error {
	err := l.store.AppendRecord(ctx, domain.NotificationRecord{
		Fingerprint: fingerprint,
		Channel:     channel,
		SentAt:      now,
		BriefingID:  briefingID,
	})
	if err != nil {
		return fmt.Errorf("%w: append record: %v", domain.ErrLedgerUnavailable, err)
	}
	return nil
}

func (l *Ledger) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
