package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"MacroBrief/internal/analysis"
	"MacroBrief/internal/briefing"
	"MacroBrief/internal/dispatch"
	"MacroBrief/internal/domain"
	"MacroBrief/internal/infrastructure/source"
	"MacroBrief/internal/ports"
)

// PipelineDeps wires all collaborators into the analysis pipeline.
type PipelineDeps struct {
	Sources     *source.Registry
	Scorer      *analysis.Scorer
	Filter      *analysis.Filter
	Composer    *briefing.Composer
	Coordinator *dispatch.Coordinator
	Briefings   ports.BriefingStore
	Schedule    ports.ScheduleStore
	Logger      *slog.Logger

	// HighImpactHorizon is how far ahead the high-impact poll looks for
	// due releases; Lookahead is the upcoming-release window attached
	// to briefings.
	HighImpactHorizon time.Duration
	Lookahead         time.Duration
}

// Pipeline implements the analysis and notification workflow: fetch,
// score, filter, compose, dispatch.
type Pipeline struct {
	sources     *source.Registry
	scorer      *analysis.Scorer
	filter      *analysis.Filter
	composer    *briefing.Composer
	coordinator *dispatch.Coordinator
	briefings   ports.BriefingStore
	schedule    ports.ScheduleStore
	logger      *slog.Logger
	horizon     time.Duration
	lookahead   time.Duration
	now         func() time.Time
}

// RunReport captures best-effort degradation for a run: the run itself
// still produces a briefing when sources or channels fail.
type RunReport struct {
	DegradedSources  []string
	DegradedChannels []string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		sources:     deps.Sources,
		scorer:      deps.Scorer,
		filter:      deps.Filter,
		composer:    deps.Composer,
		coordinator: deps.Coordinator,
		briefings:   deps.Briefings,
		schedule:    deps.Schedule,
		logger:      deps.Logger,
		horizon:     deps.HighImpactHorizon,
		lookahead:   deps.Lookahead,
		now:         time.Now,
	}
}

// GenerateBriefing is the first top-level operation: ingest, score,
// filter, and compose a briefing over [windowStart, windowEnd). Partial
// source failures degrade the run, never abort it; the report names the
// degraded sources.
func (p *Pipeline) GenerateBriefing(
	ctx context.Context,
	typ domain.BriefingType,
	windowStart, windowEnd time.Time,
) (domain.Briefing, RunReport, error) {
	now := p.now()
	report := RunReport{}

	fetched := p.sources.FetchAll(ctx, now)
	report.DegradedSources = fetched.Degraded

	p.updateSchedule(ctx, fetched.Schedule, now)

	scored := make([]domain.ScoredItem, 0, len(fetched.Items))
	for _, item := range fetched.Items {
		sentiment, manipulation := p.scorer.Score(item.Title, item.Body)
		scored = append(scored, p.filter.Classify(item, sentiment, manipulation))
	}

	upcoming := p.upcomingReleases(ctx, now)

	b := p.composer.Compose(typ, windowStart, windowEnd, scored, upcoming, now)

	if err := p.briefings.SaveBriefing(ctx, b); err != nil {
		// Persistence failure does not invalidate the composed
		// briefing; the caller still gets a dispatchable result.
		p.warn("briefing save failed", "briefing", b.ID, "error", err)
	}

	p.info("briefing composed",
		"briefing", b.ID, "type", string(typ),
		"items", len(b.Items), "excluded", b.ExcludedCount,
		"sentiment", fmt.Sprintf("%.3f", b.OverallSentiment),
		"degraded_sources", len(report.DegradedSources))

	return b, report, nil
}

// Dispatch is the second top-level operation: per-channel dedup, rate
// limiting, and delivery for a composed briefing.
func (p *Pipeline) Dispatch(ctx context.Context, b domain.Briefing) []dispatch.ChannelResult {
	results := p.coordinator.Dispatch(ctx, b)
	for _, res := range results {
		if res.Outcome == dispatch.OutcomeFailed {
			p.warn("channel dispatch failed", "channel", res.Channel, "error", res.Err)
		}
	}
	return results
}

// RunDaily generates and dispatches the daily briefing over the last 24
// hours.
func (p *Pipeline) RunDaily(ctx context.Context) (domain.Briefing, []dispatch.ChannelResult, error) {
	now := p.now()
	b, report, err := p.GenerateBriefing(ctx, domain.BriefingDaily, now.Add(-24*time.Hour), now)
	if err != nil {
		return domain.Briefing{}, nil, err
	}
	if len(report.DegradedSources) > 0 {
		p.warn("daily run degraded", "sources", report.DegradedSources)
	}
	return b, p.Dispatch(ctx, b), nil
}

// CheckHighImpact finds un-notified HIGH releases due within the poll
// horizon and composes one briefing per qualifying release. Deferred
// briefings from earlier ticks are retried first.
func (p *Pipeline) CheckHighImpact(ctx context.Context) ([]domain.Briefing, error) {
	p.coordinator.Tick(ctx)

	now := p.now()
	due, err := p.schedule.ListUpcoming(ctx, now, p.horizon, true)
	if err != nil {
		return nil, fmt.Errorf("list upcoming releases: %w", err)
	}

	var generated []domain.Briefing
	for _, rel := range due {
		if rel.Notified {
			continue
		}

		b, _, err := p.GenerateBriefing(ctx, domain.BriefingHighImpact, now.Add(-p.horizon), now)
		if err != nil {
			p.warn("high-impact briefing failed", "indicator", rel.Indicator, "error", err)
			continue
		}

		p.Dispatch(ctx, b)
		generated = append(generated, b)

		if err := p.schedule.MarkReleaseNotified(ctx, rel.Indicator, rel.ScheduledAt); err != nil {
			p.warn("mark release notified failed", "indicator", rel.Indicator, "error", err)
		}
	}

	return generated, nil
}

// UpcomingSchedule exposes the release calendar for the CLI.
func (p *Pipeline) UpcomingSchedule(ctx context.Context, window time.Duration, highImpactOnly bool) ([]domain.ReleaseSchedule, error) {
	return p.schedule.ListUpcoming(ctx, p.now(), window, highImpactOnly)
}

func (p *Pipeline) updateSchedule(ctx context.Context, entries []domain.ReleaseSchedule, now time.Time) {
	for _, rel := range entries {
		if !rel.ScheduledAt.After(now) {
			continue
		}
		if err := p.schedule.UpsertRelease(ctx, rel); err != nil {
			p.warn("schedule upsert failed", "indicator", rel.Indicator, "error", err)
		}
	}
}

func (p *Pipeline) upcomingReleases(ctx context.Context, now time.Time) []domain.ReleaseSchedule {
	upcoming, err := p.schedule.ListUpcoming(ctx, now, p.lookahead, true)
	if err != nil {
		p.warn("upcoming release lookup failed", "error", err)
		return nil
	}
	return upcoming
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
