package tasks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/songzip/internal/models"
)

// Input is what a job works on: either a link to resolve or an explicit song list.
type Input struct {
	Link  string        `json:"link,omitempty"`
	Songs []models.Song `json:"songs,omitempty"`
}

// Source describes the input for snapshots and history.
func (in Input) Source() string {
	if in.Link != "" {
		return in.Link
	}
	return "selection"
}

// jobState is the live, mutable state of one job. All access goes through its methods.
type jobState struct {
	mu      sync.RWMutex
	job     models.Job
	items   []models.ItemResult
	input   Input
	workDir string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newJobState(id string, in Input, workDir, archivePath string, cancel context.CancelFunc, now time.Time) *jobState {
	return &jobState{
		job: models.Job{
			ID:        id,
			Status:    models.StatusIdle,
			Message:   msgQueued,
			Source:    in.Source(),
			CreatedAt: now,
			Archive:   archivePath,
		},
		input:   in,
		workDir: workDir,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// snapshot returns a copy that shares nothing with the live state.
func (s *jobState) snapshot() models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyJob(s.job)
}

func (s *jobState) report() models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Report{
		JobID:     s.job.ID,
		Status:    s.job.Status,
		Items:     slices.Clone(s.items),
		Succeeded: s.job.Succeeded,
		Failed:    s.job.Failed,
	}
}

func (s *jobState) status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job.Status
}

// begin moves an idle job to downloading. It returns false if the job already finished (cancelled while queued).
func (s *jobState) begin(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.job.Status.CanTransition(models.StatusDownloading) {
		return false
	}
	s.job.Status = models.StatusDownloading
	s.job.Current = 0
	s.job.Total = 0
	s.job.Message = msgStarting
	s.job.StartedAt = &now
	s.items = nil
	return true
}

func (s *jobState) setMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status.IsFinished() {
		return
	}
	s.job.Message = msg
}

func (s *jobState) setTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.Total = total
}

// step advances current to i; current never decreases and never passes total.
func (s *jobState) step(i int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status.IsFinished() {
		return
	}
	if i > s.job.Total {
		i = s.job.Total
	}
	if i > s.job.Current {
		s.job.Current = i
	}
	s.job.Message = msg
}

func (s *jobState) record(item models.ItemResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	if item.OK() {
		s.job.Succeeded++
	} else {
		s.job.Failed++
	}
}

// finish moves the job to a terminal state once; later calls are ignored and return false.
func (s *jobState) finish(status models.Status, msg, errMsg, archive string, now time.Time) bool {
	s.mu.Lock()
	if !s.job.Status.CanTransition(status) || !status.IsFinished() {
		s.mu.Unlock()
		return false
	}
	s.job.Status = status
	s.job.Message = msg
	s.job.Error = errMsg
	s.job.CompletedAt = &now
	if archive != "" {
		s.job.Archive = archive
	}
	s.mu.Unlock()
	return true
}

// cancelQueued ends a job that has not begun. It returns false once the worker called begin,
// in which case the running pipeline observes the cancelled context itself.
func (s *jobState) cancelQueued(msg, errMsg string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.Status != models.StatusIdle {
		return false
	}
	s.job.Status = models.StatusError
	s.job.Message = msg
	s.job.Error = errMsg
	s.job.CompletedAt = &now
	return true
}

// release unblocks waiters. Called once the job's goroutine has nothing left to do.
func (s *jobState) release() {
	s.once.Do(func() { close(s.done) })
}

// results returns a copy of the recorded results.
func (s *jobState) results() []models.ItemResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func copyJob(j models.Job) models.Job {
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
