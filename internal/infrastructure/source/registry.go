package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// Registry fans ingestion out across all configured sources. Sources
// fetch concurrently; a failing source degrades to an empty result and
// is reported in the degraded list, never halting the run.
type Registry struct {
	sources []ports.ItemSource
	logger  *slog.Logger
}

// NewRegistry wires the configured source adapters.
func NewRegistry(logger *slog.Logger, sources ...ports.ItemSource) *Registry {
	return &Registry{sources: sources, logger: logger}
}

// FetchResult aggregates one ingestion pass across all sources.
type FetchResult struct {
	Items    []domain.ReleaseItem
	Schedule []domain.ReleaseSchedule
	Degraded []string
}

// FetchAll runs every source concurrently and normalizes the items it
// returns. Per-source failures are collected as degraded sources.
func (r *Registry) FetchAll(ctx context.Context, now time.Time) FetchResult {
	var (
		mu     sync.Mutex
		result FetchResult
		wg     sync.WaitGroup
	)

	for _, src := range r.sources {
		wg.Add(1)
		go func(src ports.ItemSource) {
			defer wg.Done()

			items, err := src.FetchItems(ctx)
			if err != nil {
				r.warn("source fetch failed, skipping for this run",
					"source", src.Name(), "error", err)
				mu.Lock()
				result.Degraded = append(result.Degraded, src.Name())
				mu.Unlock()
				return
			}

			schedule, err := src.FetchSchedule(ctx)
			if err != nil {
				r.warn("source schedule fetch failed",
					"source", src.Name(), "error", err)
				schedule = nil
			}

			normalized := make([]domain.ReleaseItem, 0, len(items))
			for _, item := range items {
				normalized = append(normalized, domain.Normalize(item, now))
			}

			mu.Lock()
			result.Items = append(result.Items, normalized...)
			result.Schedule = append(result.Schedule, schedule...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return result
}

func (r *Registry) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
