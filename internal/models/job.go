package models

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
)

// Status is the lifecycle state of a download job.
//
// Transitions only go idle → downloading → {done, error}.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusDownloading Status = "downloading"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsActive returns true while the job is still working
func (s Status) IsActive() bool {
	return s == StatusDownloading
}

// IsFinished returns true once the job reached a terminal state (done or error)
func (s Status) IsFinished() bool {
	return s == StatusDone || s == StatusError
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusIdle:
		return next == StatusDownloading || next == StatusError
	case StatusDownloading:
		return next == StatusDownloading || next.IsFinished()
	default:
		return false
	}
}

// Job is an immutable snapshot of a job's progress.
//
// Snapshots are copies: mutating one never affects the job it was taken from.
type Job struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Current     int        `json:"current"`
	Total       int        `json:"total"`
	Message     string     `json:"message"`
	Source      string     `json:"source,omitempty"` // link, or "selection" for explicit song lists
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Archive     string     `json:"-"` // archive path on disk
}

// Progress is the four-field view served to legacy polling clients.
type Progress struct {
	Status  Status `json:"status"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Progress returns the legacy four-field view of the snapshot.
func (j Job) Progress() Progress {
	return Progress{Status: j.Status, Current: j.Current, Total: j.Total, Message: j.Message}
}

// Reason classifies the outcome of fetching a single song.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonNotFound    Reason = "not_found"
	ReasonFetchFailed Reason = "fetch_failed"
	ReasonCancelled   Reason = "cancelled"
)

// ItemResult is the typed outcome of one fetch within a job.
type ItemResult struct {
	Index  int    `json:"index"` // 1-based position in the job
	Song   Song   `json:"song"`
	File   string `json:"file,omitempty"` // base name of the downloaded file
	Reason Reason `json:"reason"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// OK reports whether the fetch produced a file.
func (r ItemResult) OK() bool {
	return r.Reason == ReasonOK
}

// NewItemResult classifies err using the sentinel passed in notFound.
func NewItemResult(index int, song Song, file string, err error, notFound error) ItemResult {
	res := ItemResult{Index: index, Song: song, File: file, Reason: ReasonOK}
	if err == nil {
		return res
	}

	res.Err = err
	res.Error = err.Error()
	res.File = ""
	switch {
	case errors.Is(err, context.Canceled):
		res.Reason = ReasonCancelled
	case notFound != nil && errors.Is(err, notFound):
		res.Reason = ReasonNotFound
	default:
		res.Reason = ReasonFetchFailed
	}
	return res
}

// Report aggregates every item result of a job, in order.
type Report struct {
	JobID     string       `json:"job_id"`
	Status    Status       `json:"status"`
	Items     []ItemResult `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Failures returns only the items that did not produce a file.
func (r Report) Failures() []ItemResult {
	return lo.Filter(r.Items, func(item ItemResult, _ int) bool { return !item.OK() })
}
