package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pricescout/pricescout/internal/models"
)

// ExecutionRepository records every trigger firing, including skipped
// ones, so the job history answers "did last night's run happen".
type ExecutionRepository struct {
	db *DB
}

func NewExecutionRepository(db *DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// RecordJobExecution inserts a new execution row.
func (r *ExecutionRepository) RecordJobExecution(ctx context.Context, exec *models.JobExecution) error {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}

	query := `
		INSERT INTO job_executions (
			id, trigger, status, started_at, finished_at,
			attempted, succeeded, failed, error_detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.pool.Exec(ctx, query,
		exec.ID, exec.Trigger, string(exec.Status), exec.StartedAt, exec.FinishedAt,
		exec.Attempted, exec.Succeeded, exec.Failed, nullable(exec.ErrorDetail),
	)
	if err != nil {
		return fmt.Errorf("failed to record job execution: %w", err)
	}

	return nil
}

// FinishJobExecution updates an execution with its terminal state.
func (r *ExecutionRepository) FinishJobExecution(ctx context.Context, exec *models.JobExecution) error {
	query := `
		UPDATE job_executions
		SET status = $1, finished_at = $2, attempted = $3, succeeded = $4, failed = $5, error_detail = $6
		WHERE id = $7`

	result, err := r.db.pool.Exec(ctx, query,
		string(exec.Status), exec.FinishedAt, exec.Attempted, exec.Succeeded, exec.Failed,
		nullable(exec.ErrorDetail), exec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job execution not found: %s", exec.ID)
	}

	return nil
}

// ListJobExecutions returns the most recent executions, newest first.
func (r *ExecutionRepository) ListJobExecutions(ctx context.Context, limit int) ([]models.JobExecution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, trigger, status, started_at, finished_at,
			attempted, succeeded, failed, COALESCE(error_detail, '')
		FROM job_executions
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job executions: %w", err)
	}
	defer rows.Close()

	var execs []models.JobExecution
	for rows.Next() {
		var e models.JobExecution
		var status string
		if err := rows.Scan(
			&e.ID, &e.Trigger, &status, &e.StartedAt, &e.FinishedAt,
			&e.Attempted, &e.Succeeded, &e.Failed, &e.ErrorDetail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job execution: %w", err)
		}
		e.Status = models.ExecutionStatus(status)
		execs = append(execs, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job executions: %w", err)
	}

	return execs, nil
}
