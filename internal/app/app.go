package app

import (
	"context"
	"log/slog"

	"MacroBrief/internal/analysis"
	"MacroBrief/internal/briefing"
	"MacroBrief/internal/config"
	"MacroBrief/internal/dispatch"
	"MacroBrief/internal/infrastructure/scheduler"
	"MacroBrief/internal/infrastructure/source"
	"MacroBrief/internal/infrastructure/storage"
	"MacroBrief/internal/infrastructure/transport"
	"MacroBrief/internal/ledger"
	"MacroBrief/internal/logging"
	"MacroBrief/internal/usecase"
)

// Application wires config into the pipeline and owns resource
// lifecycle.
type Application struct {
	cfg       config.Config
	store     *storage.Store
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	logger    *slog.Logger
}

// New builds a fully wired application instance. Configuration errors
// are the only fatal failure mode here.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	registry := source.NewRegistry(baseLogger.With("component", "sources"),
		source.NewRSSSource(cfg.Sources.RSSFeeds),
		source.NewCalendarSource(cfg.Sources.Calendar.Endpoint, cfg.Sources.Calendar.APIKey, nil),
		source.NewPageSource(cfg.Sources.Pages, nil),
	)

	led := ledger.New(store, cfg.Dedup.Cooldown(), baseLogger.With("component", "ledger"))

	channels := []dispatch.Channel{
		{Transport: transport.NewEmailTransport(cfg.Channels.Email), Enabled: cfg.Channels.Email.Enabled},
		{Transport: transport.NewWebhookTransport(cfg.Channels.Webhook, nil), Enabled: cfg.Channels.Webhook.Enabled},
	}

	coordinator := dispatch.NewCoordinator(led, store, channels,
		cfg.Dispatch.MinInterval(), cfg.Dispatch.SendTimeout(),
		baseLogger.With("component", "dispatch"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:           registry,
		Scorer:            analysis.NewScorer(cfg.Analysis),
		Filter:            analysis.NewFilter(cfg.Analysis),
		Composer:          briefing.NewComposer(cfg.Analysis.SentimentThreshold),
		Coordinator:       coordinator,
		Briefings:         store,
		Schedule:          store,
		Logger:            baseLogger.With("component", "pipeline"),
		HighImpactHorizon: cfg.Dispatch.Horizon(),
		Lookahead:         cfg.Dispatch.Lookahead(),
	})

	driver := scheduler.New(cfg.Scheduler.Location(), baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		store:     store,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline),
		logger:    baseLogger,
	}, nil
}

// Pipeline exposes the two top-level operations to the CLI.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Run starts the scheduler and blocks until ctx is cancelled, then
// shuts down letting in-flight dispatches finish.
func (a *Application) Run(ctx context.Context) error {
	if err := a.cfg.ValidateDispatch(); err != nil {
		return err
	}

	err := a.scheduler.Start(a.cfg.Scheduler.DailyBriefingTime, a.cfg.Scheduler.HighImpactPollMinutes)
	if err != nil {
		return err
	}

	a.logger.Info("scheduler running",
		"daily_at", a.cfg.Scheduler.DailyBriefingTime,
		"poll_minutes", a.cfg.Scheduler.HighImpactPollMinutes)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Dispatch.SendTimeout())
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Close releases application resources.
func (a *Application) Close() error {
	return a.store.Close()
}
