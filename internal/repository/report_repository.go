package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Gopika0263/donation-api/internal/models"
)

// ReportRepository persists asynchronous export job metadata.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a queued report job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_jobs (id, params, status, result_path, created_by, created_at, finished_at, error_message)
	VALUES (:id, :params, :status, :result_path, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID fetches a report job.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, params, status, result_path, created_by, created_at, finished_at, error_message
	FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing flips a queued job to processing.
func (r *ReportRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = $2 WHERE id = $1 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, id, models.ReportStatusProcessing, models.ReportStatusQueued)
	if err != nil {
		return fmt.Errorf("mark report processing: %w", err)
	}
	return requireRowAffected(result)
}

// MarkFinished records the result path and completion time.
func (r *ReportRepository) MarkFinished(ctx context.Context, id, resultPath string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, result_path = $3, finished_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFinished, resultPath, at)
	if err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	return requireRowAffected(result)
}

// MarkFailed records a terminal failure.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message, at)
	if err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	return requireRowAffected(result)
}
