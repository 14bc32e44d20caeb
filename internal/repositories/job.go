package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songzip/internal/models"
)

// JobRepository implements models.Repository[*models.JobRecord] for job history.
//
// Handles job CRUD operations with soft delete support, status-based queries and per-item results.
type JobRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.JobRecord] = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, sequence, source, status, tracks_total, tracks_succeeded,
	tracks_failed, message, error_message, archive_path, started_at,
	completed_at, created_at, updated_at, deleted_at
`

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a job record and its items. The record keeps its ID when it has one.
func (r *JobRepository) Create(job *models.JobRecord) error {
	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	job.SetSequence(sequence)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (
			id, sequence, source, status, tracks_total, tracks_succeeded,
			tracks_failed, message, error_message, archive_path, started_at,
			completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		job.ID(),
		sequence,
		job.Source(),
		job.Status(),
		job.Total(),
		job.Succeeded(),
		job.Failed(),
		job.Message(),
		nullable(job.ErrorMessage()),
		nullable(job.ArchivePath()),
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	if err := insertItems(tx, job.ID(), job.Items()); err != nil {
		return err
	}

	return tx.Commit()
}

// Get retrieves a job record with its items by ID, excluding soft-deleted jobs
func (r *JobRepository) Get(id string) (*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ? AND deleted_at IS NULL`

	job, err := scanJob(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.items(id)
	if err != nil {
		return nil, err
	}
	job.SetItems(items)
	return job, nil
}

// Update overwrites the stored state of a job and replaces its items
func (r *JobRepository) Update(job *models.JobRecord) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE jobs
		SET status = ?, tracks_total = ?, tracks_succeeded = ?, tracks_failed = ?,
			message = ?, error_message = ?, archive_path = ?, started_at = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := tx.Exec(query,
		job.Status(),
		job.Total(),
		job.Succeeded(),
		job.Failed(),
		job.Message(),
		nullable(job.ErrorMessage()),
		nullable(job.ArchivePath()),
		job.StartedAt(),
		job.CompletedAt(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found or already deleted: %s", job.ID())
	}

	if _, err := tx.Exec(`DELETE FROM job_items WHERE job_id = ?`, job.ID()); err != nil {
		return fmt.Errorf("failed to clear job items: %w", err)
	}
	if err := insertItems(tx, job.ID(), job.Items()); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete soft-deletes a job by ID
func (r *JobRepository) Delete(id string) error {
	query := `
		UPDATE jobs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves job records newest first, excluding soft-deleted jobs.
//
// Supported criteria: "status" (string or [models.Status]), "source" (string) and "limit" (int).
// Items are not loaded; use [JobRepository.Get] for a full record.
func (r *JobRepository) List(criteria map[string]any) ([]*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.Status:
		if status != "" {
			query += " AND status = ?"
			args = append(args, string(status))
		}
	}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// Record stores the latest state of a job, creating the record on first sight and updating it afterwards.
func (r *JobRepository) Record(ctx context.Context, job models.Job, items []models.ItemResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record := models.NewJobRecord(job, items)

	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = ? AND deleted_at IS NULL)`, job.ID).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up job: %w", err)
	}

	if exists {
		return r.Update(record)
	}
	return r.Create(record)
}

func (r *JobRepository) items(jobID string) ([]models.ItemResult, error) {
	query := `
		SELECT position, name, artist, file, reason, error_message
		FROM job_items
		WHERE job_id = ?
		ORDER BY position
	`

	rows, err := r.db.Query(query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job items: %w", err)
	}
	defer rows.Close()

	var items []models.ItemResult
	for rows.Next() {
		var (
			item   models.ItemResult
			file   sql.NullString
			reason string
			errMsg sql.NullString
		)
		if err := rows.Scan(&item.Index, &item.Song.Name, &item.Song.Artist, &file, &reason, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan job item: %w", err)
		}
		item.File = file.String
		item.Reason = models.Reason(reason)
		item.Error = errMsg.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func insertItems(tx *sql.Tx, jobID string, items []models.ItemResult) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO job_items (job_id, position, name, artist, file, reason, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.Exec(jobID, item.Index, item.Song.Name, item.Song.Artist,
			nullable(item.File), string(item.Reason), nullable(item.Error))
		if err != nil {
			return fmt.Errorf("failed to insert job item %d: %w", item.Index, err)
		}
	}
	return nil
}

// scanJob scans a single jobs row into a [models.JobRecord] without items
func scanJob(row scanner) (*models.JobRecord, error) {
	var (
		id          string
		sequence    int
		source      string
		status      string
		total       int
		succeeded   int
		failed      int
		message     string
		errMessage  sql.NullString
		archivePath sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &source, &status, &total, &succeeded,
		&failed, &message, &errMessage, &archivePath, &startedAt,
		&completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return models.RestoreJobRecord(
		id, sequence, source, models.Status(status),
		total, succeeded, failed, message, errMessage.String, archivePath.String,
		timePtr(startedAt), timePtr(completedAt), createdAt, updatedAt, timePtr(deletedAt),
	), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
