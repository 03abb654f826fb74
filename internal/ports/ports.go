package ports

import (
	"context"
	"time"

	"MacroBrief/internal/domain"
)

// ItemSource pulls raw release items (and optionally calendar entries)
// from one upstream provider. Implementations own their connectivity
// failures: a broken source returns an error that the registry turns
// into an empty result, never a halted run.
type ItemSource interface {
	Name() string
	FetchItems(ctx context.Context) ([]domain.ReleaseItem, error)
	// FetchSchedule returns upcoming release calendar entries, or nil if
	// the source carries no calendar data.
	FetchSchedule(ctx context.Context) ([]domain.ReleaseSchedule, error)
}

// Transport delivers a rendered briefing to one notification channel.
// Send must honor ctx cancellation; the coordinator bounds every call
// with a timeout.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg domain.Message) error
}

// LedgerStore persists notification records for the deduplication ledger.
type LedgerStore interface {
	// GetLastSent returns the most recent sent time for the key and
	// whether any record exists.
	GetLastSent(ctx context.Context, fingerprint, channel string) (time.Time, bool, error)
	AppendRecord(ctx context.Context, rec domain.NotificationRecord) error
}

// BriefingStore persists composed briefings and the per-attempt
// notification log.
type BriefingStore interface {
	SaveBriefing(ctx context.Context, b domain.Briefing) error
	LogNotification(ctx context.Context, briefingID, channel string, success bool, errMsg string) error
}

// ScheduleStore tracks upcoming economic releases.
type ScheduleStore interface {
	UpsertRelease(ctx context.Context, rel domain.ReleaseSchedule) error
	ListUpcoming(ctx context.Context, from time.Time, window time.Duration, highImpactOnly bool) ([]domain.ReleaseSchedule, error)
	MarkReleaseNotified(ctx context.Context, indicator string, scheduledAt time.Time) error
}

// Scheduler drives the periodic pipeline jobs.
type Scheduler interface {
	AddJob(name, spec string, job func(ctx context.Context)) error
	Start()
	Stop(ctx context.Context) error
}
