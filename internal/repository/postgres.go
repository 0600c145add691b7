package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/atlas-batch/internal/models"
	"github.com/jackc/pgx/v5"
)

// maxAttempts is how many failed geocoding attempts a task gets before it is no longer fetched.
const maxAttempts = 5

// ErrTaskNotFound is returned when an update matched no task row.
var ErrTaskNotFound = errors.New("task not found")

const (
	selectPendingTasks = `
		SELECT task_id, address
		FROM public.tasks
		WHERE
			latitude IS NULL
			AND is_closed = false
			AND geocoding_attempts < $2
			AND address IS NOT NULL AND address <> ''
		ORDER BY created_at ASC
		LIMIT $1;
	`
	updateCoordinates = `
		UPDATE public.tasks
		SET latitude = $1, longitude = $2, geocoding_error = NULL
		WHERE task_id = $3;
	`
	recordFailure = `
		UPDATE public.tasks
		SET geocoding_attempts = geocoding_attempts + 1, geocoding_error = $1
		WHERE task_id = $2;
	`
)

// FetchTasksForGeocoding returns up to limit open tasks that still have no coordinates,
// oldest first. Tasks that already failed maxAttempts times are skipped.
func (r *Repository) FetchTasksForGeocoding(ctx context.Context, limit int) ([]models.Task, error) {
	rows, err := r.db.Query(ctx, selectPendingTasks, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Task, error) {
		var task models.Task
		scanErr := row.Scan(&task.ID, &task.Address)
		return task, scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect pending tasks: %w", err)
	}

	r.log.DebugContext(ctx, "Fetched tasks without coordinates", "count", len(tasks))

	return tasks, nil
}

// UpdateTaskCoordinates stores the resolved coordinates of a task and clears its last error.
func (r *Repository) UpdateTaskCoordinates(ctx context.Context, taskID int, coords models.Coordinates) error {
	tag, err := r.db.Exec(ctx, updateCoordinates, coords.Latitude, coords.Longitude, taskID)
	if err != nil {
		return fmt.Errorf("failed to update coordinates of task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update coordinates of task %d: %w", taskID, ErrTaskNotFound)
	}

	return nil
}

// IncrementFailureCount counts one more failed geocoding attempt of a task and records reason,
// a provider status or one of the batch failure reasons.
func (r *Repository) IncrementFailureCount(ctx context.Context, taskID int, reason string) error {
	tag, err := r.db.Exec(ctx, recordFailure, reason, taskID)
	if err != nil {
		return fmt.Errorf("failed to record geocoding failure of task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to record geocoding failure of task %d: %w", taskID, ErrTaskNotFound)
	}

	return nil
}
