package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"MacroBrief/internal/briefing"
	"MacroBrief/internal/domain"
	"MacroBrief/internal/ledger"
	"MacroBrief/internal/ports"
)

// Outcome is the terminal state of one (briefing, channel) dispatch
// attempt.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomeDeferred Outcome = "deferred"
)

// ChannelResult reports the outcome of a dispatch attempt on one channel.
type ChannelResult struct {
	Channel string
	Outcome Outcome
	Err     error
}

// Channel pairs a transport with its configuration switch. Disabled
// channels are skipped, not removed, so outcomes stay visible per
// configured channel.
type Channel struct {
	Transport ports.Transport
	Enabled   bool
}

// Coordinator decides, per notification channel, whether and how to send
// a briefing: dedup check through the ledger, per-channel rate limiting
// with deferral, bounded concurrent transport calls, and
// record-after-send ledger writes.
type Coordinator struct {
	ledger      *ledger.Ledger
	store       ports.BriefingStore
	channels    []Channel
	minInterval time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.Mutex
	channelLock map[string]*sync.Mutex
	lastSent    map[string]time.Time
	deferred    map[string][]domain.Briefing
}

// NewCoordinator wires the dispatch coordinator.
func NewCoordinator(
	led *ledger.Ledger,
	store ports.BriefingStore,
	channels []Channel,
	minInterval, sendTimeout time.Duration,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		ledger:      led,
		store:       store,
		channels:    channels,
		minInterval: minInterval,
		sendTimeout: sendTimeout,
		logger:      logger,
		now:         time.Now,
		channelLock: map[string]*sync.Mutex{},
		lastSent:    map[string]time.Time{},
		deferred:    map[string][]domain.Briefing{},
	}
}

// Dispatch runs the per-channel state machine for a composed briefing.
// Channels send concurrently; each call is bounded by the configured
// timeout. Failures on one channel never affect the others.
func (c *Coordinator) Dispatch(ctx context.Context, b domain.Briefing) []ChannelResult {
	results := make([]ChannelResult, len(c.channels))

	var wg sync.WaitGroup
	for i, ch := range c.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = c.dispatchChannel(ctx, b, ch)
		}(i, ch)
	}
	wg.Wait()

	return results
}

// Tick retries deferred briefings whose rate-limit interval has elapsed.
// Called on every scheduler tick; deferred briefings are never dropped.
func (c *Coordinator) Tick(ctx context.Context) []ChannelResult {
	var results []ChannelResult

	for _, ch := range c.channels {
		name := ch.Transport.Name()

		c.mu.Lock()
		queue := c.deferred[name]
		c.deferred[name] = nil
		c.mu.Unlock()

		for _, b := range queue {
			res := c.dispatchChannel(ctx, b, ch)
			results = append(results, res)
		}
	}

	return results
}

func (c *Coordinator) dispatchChannel(ctx context.Context, b domain.Briefing, ch Channel) ChannelResult {
	name := ch.Transport.Name()

	if !ch.Enabled {
		return ChannelResult{Channel: name, Outcome: OutcomeSkipped}
	}

	// One in-flight attempt per channel; other channels proceed
	// concurrently.
	unlock := c.lockChannel(name)
	defer unlock()

	now := c.now()

	// Rate limiting applies independently of deduplication: genuinely
	// new items are deferred, not dropped, when the previous send on
	// this channel was too recent.
	c.mu.Lock()
	last, sentBefore := c.lastSent[name]
	if sentBefore && now.Sub(last) < c.minInterval {
		c.deferred[name] = append(c.deferred[name], b)
		c.mu.Unlock()
		c.info("briefing deferred by rate limit", "channel", name, "briefing", b.ID)
		return ChannelResult{Channel: name, Outcome: OutcomeDeferred}
	}
	c.mu.Unlock()

	// Dedup check: hold every item's key acquisition across the
	// check → send → record sequence. Keys are sorted so overlapping
	// runs acquire in the same order.
	fingerprints := itemFingerprints(b)
	for _, fp := range fingerprints {
		release := c.ledger.AcquireKey(fp, name)
		defer release()
	}

	eligible := make([]string, 0, len(fingerprints))
	for _, fp := range fingerprints {
		if c.ledger.ShouldNotify(ctx, fp, name, now) {
			eligible = append(eligible, fp)
		}
	}

	// A multi-item briefing goes out once if at least one item is
	// notify-eligible. An empty briefing is a valid report and is
	// always eligible.
	if len(fingerprints) > 0 && len(eligible) == 0 {
		c.info("briefing skipped, all items within cool-down", "channel", name, "briefing", b.ID)
		return ChannelResult{Channel: name, Outcome: OutcomeSkipped}
	}

	msg, err := briefing.Render(b)
	if err != nil {
		return ChannelResult{Channel: name, Outcome: OutcomeFailed, Err: err}
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	if err := ch.Transport.Send(sendCtx, msg); err != nil {
		wrapped := fmt.Errorf("%w: channel %s: %v", domain.ErrTransportFailure, name, err)
		c.warn("transport send failed", "channel", name, "briefing", b.ID, "error", err)
		c.logAttempt(ctx, b.ID, name, false, err.Error())
		return ChannelResult{Channel: name, Outcome: OutcomeFailed, Err: wrapped}
	}

	// Record after send, never before: a crash between the two yields a
	// duplicate on the next run, not a silently suppressed notification.
	sentAt := c.now()
	for _, fp := range eligible {
		if err := c.ledger.Record(ctx, fp, name, b.ID, sentAt); err != nil {
			c.warn("ledger record failed after send", "channel", name, "fingerprint", fp, "error", err)
		}
	}

	c.mu.Lock()
	c.lastSent[name] = sentAt
	c.mu.Unlock()

	c.logAttempt(ctx, b.ID, name, true, "")
	c.info("briefing sent", "channel", name, "briefing", b.ID, "items", len(eligible))
	return ChannelResult{Channel: name, Outcome: OutcomeSent}
}

func (c *Coordinator) lockChannel(name string) func() {
	c.mu.Lock()
	m, ok := c.channelLock[name]
	if !ok {
		m = &sync.Mutex{}
		c.channelLock[name] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (c *Coordinator) logAttempt(ctx context.Context, briefingID, channel string, success bool, errMsg string) {
	if c.store == nil {
		return
	}
	if err := c.store.LogNotification(ctx, briefingID, channel, success, errMsg); err != nil {
		c.warn("notification log write failed", "channel", channel, "error", err)
	}
}

func itemFingerprints(b domain.Briefing) []string {
	seen := map[string]struct{}{}
	fps := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		if _, ok := seen[it.Item.ID]; ok {
			continue
		}
		seen[it.Item.ID] = struct{}{}
		fps = append(fps, it.Item.ID)
	}
	sort.Strings(fps)
	return fps
}

func (c *Coordinator) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
