package models

import (
	"fmt"
	"time"
)

// JobRecord is the persisted history entry for a finished or running job.
//
// Records mirror the in-memory [Job] snapshot plus the per-item results, so past jobs can be inspected after a restart.
type JobRecord struct {
	id          string
	sequence    int
	source      string
	status      Status
	total       int
	succeeded   int
	failed      int
	message     string
	errMessage  string
	archivePath string
	items       []ItemResult
	startedAt   *time.Time
	completedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

var _ Model = (*JobRecord)(nil)

// NewJobRecord builds a record from a job snapshot; the record keeps the snapshot's ID.
func NewJobRecord(job Job, items []ItemResult) *JobRecord {
	now := time.Now()
	created := job.CreatedAt
	if created.IsZero() {
		created = now
	}
	return &JobRecord{
		id:          job.ID,
		source:      job.Source,
		status:      job.Status,
		total:       job.Total,
		succeeded:   job.Succeeded,
		failed:      job.Failed,
		message:     job.Message,
		errMessage:  job.Error,
		archivePath: job.Archive,
		items:       items,
		startedAt:   job.StartedAt,
		completedAt: job.CompletedAt,
		createdAt:   created,
		updatedAt:   now,
	}
}

// RestoreJobRecord rebuilds a record read from storage.
func RestoreJobRecord(
	id string, sequence int, source string, status Status,
	total, succeeded, failed int, message, errMessage, archivePath string,
	startedAt, completedAt *time.Time, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *JobRecord {
	return &JobRecord{
		id:          id,
		sequence:    sequence,
		source:      source,
		status:      status,
		total:       total,
		succeeded:   succeeded,
		failed:      failed,
		message:     message,
		errMessage:  errMessage,
		archivePath: archivePath,
		startedAt:   startedAt,
		completedAt: completedAt,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		deletedAt:   deletedAt,
	}
}

func (r *JobRecord) ID() string               { return r.id }
func (r *JobRecord) Sequence() int            { return r.sequence }
func (r *JobRecord) Source() string           { return r.source }
func (r *JobRecord) Status() Status           { return r.status }
func (r *JobRecord) Total() int               { return r.total }
func (r *JobRecord) Succeeded() int           { return r.succeeded }
func (r *JobRecord) Failed() int              { return r.failed }
func (r *JobRecord) Message() string          { return r.message }
func (r *JobRecord) ErrorMessage() string     { return r.errMessage }
func (r *JobRecord) ArchivePath() string      { return r.archivePath }
func (r *JobRecord) Items() []ItemResult      { return r.items }
func (r *JobRecord) StartedAt() *time.Time    { return r.startedAt }
func (r *JobRecord) CompletedAt() *time.Time  { return r.completedAt }
func (r *JobRecord) CreatedAt() time.Time     { return r.createdAt }
func (r *JobRecord) UpdatedAt() time.Time     { return r.updatedAt }
func (r *JobRecord) DeletedAt() *time.Time    { return r.deletedAt }
func (r *JobRecord) SetID(id string)          { r.id = id }
func (r *JobRecord) SetSequence(seq int)      { r.sequence = seq }
func (r *JobRecord) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *JobRecord) SetItems(items []ItemResult) {
	r.items = items
}

// Validate checks required fields and the counter invariants.
func (r *JobRecord) Validate() error {
	if r.id == "" {
		return fmt.Errorf("job record id is required")
	}
	switch r.status {
	case StatusIdle, StatusDownloading, StatusDone, StatusError:
	default:
		return fmt.Errorf("invalid job status: %q", r.status)
	}
	if r.total < 0 || r.succeeded < 0 || r.failed < 0 {
		return fmt.Errorf("job counters must not be negative")
	}
	if r.succeeded+r.failed > r.total {
		return fmt.Errorf("processed items (%d) exceed total (%d)", r.succeeded+r.failed, r.total)
	}
	return nil
}

// Snapshot converts the record back to a [Job] view.
func (r *JobRecord) Snapshot() Job {
	return Job{
		ID:          r.id,
		Status:      r.status,
		Current:     r.succeeded + r.failed,
		Total:       r.total,
		Message:     r.message,
		Source:      r.source,
		Succeeded:   r.succeeded,
		Failed:      r.failed,
		Error:       r.errMessage,
		CreatedAt:   r.createdAt,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
		Archive:     r.archivePath,
	}
}

// Report assembles the stored per-item results.
func (r *JobRecord) Report() Report {
	return Report{JobID: r.id, Status: r.status, Items: r.items, Succeeded: r.succeeded, Failed: r.failed}
}
