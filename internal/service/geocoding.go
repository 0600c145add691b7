package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/atlas-batch/internal/batch"
	"github.com/UnknownOlympus/atlas-batch/internal/repository"
)

// ReasonUnresolved is recorded for tasks whose address got neither coordinates nor a
// provider verdict, typically after a transport error.
const ReasonUnresolved = "unresolved"

// Resolver resolves a batch of addresses and waits for the run to finish.
type Resolver interface {
	Resolve(ctx context.Context, addresses []string) (batch.Report, error)
}

// GeocodingService periodically pulls tasks without coordinates from the repository,
// resolves their addresses as one batch and writes the results back.
type GeocodingService struct {
	log           *slog.Logger         // Logger for logging service activities
	repo          repository.Interface // Task store
	resolver      Resolver             // Batch geocoder
	pollInterval  time.Duration        // Interval between polls of the task store
	addressPrefix string               // Prefix prepended to each address (country, city, ...)
	taskLimit     int                  // Maximum number of tasks fetched per poll
}

// NewGeocodingService creates a new instance of GeocodingService.
func NewGeocodingService(
	log *slog.Logger,
	repo repository.Interface,
	resolver Resolver,
	pollInterval time.Duration,
	addressPrefix string,
	taskLimit int,
) *GeocodingService {
	return &GeocodingService{
		log:           log,
		repo:          repo,
		resolver:      resolver,
		pollInterval:  pollInterval,
		addressPrefix: addressPrefix,
		taskLimit:     taskLimit,
	}
}

// Run polls for new tasks every interval until ctx is canceled.
func (gs *GeocodingService) Run(ctx context.Context) {
	ticker := time.NewTicker(gs.pollInterval)
	defer ticker.Stop()

	gs.log.InfoContext(ctx, "Geocoding service started", "interval", gs.pollInterval)

	for {
		select {
		case <-ctx.Done():
			gs.log.InfoContext(ctx, "Geocoding service stopped")
			return
		case <-ticker.C:
			gs.log.InfoContext(ctx, "Polling for new tasks to geocode")
			gs.processTasks(ctx)
		}
	}
}

// processTasks resolves one page of tasks. Tasks sharing an address are resolved once.
func (gs *GeocodingService) processTasks(ctx context.Context) {
	tasks, err := gs.repo.FetchTasksForGeocoding(ctx, gs.taskLimit)
	if err != nil {
		gs.log.ErrorContext(ctx, "Failed to fetch tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		gs.log.InfoContext(ctx, "No tasks to process")
		return
	}

	addresses := make([]string, 0, len(tasks))
	for _, task := range tasks {
		addresses = append(addresses, gs.addressPrefix+task.Address)
	}

	gs.log.InfoContext(ctx, "Found tasks to process", "tasks", len(tasks))

	report, err := gs.resolver.Resolve(ctx, addresses)
	if err != nil {
		gs.log.ErrorContext(ctx, "Batch was not resolved", "error", err)
		return
	}

	updated, failed := 0, 0
	for i, task := range tasks {
		address := addresses[i]

		if coords, ok := report.Results[address]; ok {
			if err = gs.repo.UpdateTaskCoordinates(ctx, task.ID, coords); err != nil {
				gs.log.ErrorContext(ctx, "Failed to update coordinates for task", "task", task.ID, "error", err)
				continue
			}
			updated++
			continue
		}

		reason, ok := report.Failures[address]
		if !ok {
			reason = ReasonUnresolved
		}
		if err = gs.repo.IncrementFailureCount(ctx, task.ID, reason); err != nil {
			gs.log.ErrorContext(ctx, "Could not update failure count for task", "task", task.ID, "error", err)
			continue
		}
		failed++
	}

	gs.log.InfoContext(ctx, "Processing batch finished", "updated", updated, "failed", failed)
}
