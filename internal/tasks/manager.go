package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/services"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// HistoryRecorder persists finished jobs. Implemented by repositories.JobRepository.
type HistoryRecorder interface {
	Record(ctx context.Context, job models.Job, items []models.ItemResult) error
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	WorkDir    string                // Parent of per-job working directories
	ArchiveDir string                // Where finished archives are kept
	MaxJobs    int                   // Jobs running at once (default: 1)
	TTL        time.Duration         // Retention of finished jobs; zero keeps them forever
	Logger     *log.Logger           // Defaults to a stderr logger
	History    HistoryRecorder       // Optional
	Progress   chan<- ProgressUpdate // Optional, written without blocking
}

// Manager is the job controller: it owns every job's state, runs jobs on a bounded pool and hands out snapshots.
type Manager struct {
	engine *Engine
	opts   ManagerOpts
	logger *log.Logger
	now    func() time.Time

	mu     sync.RWMutex
	jobs   map[string]*jobState
	order  []string
	latest string
	closed bool

	pending    []queuedJob
	wake       chan struct{}
	dispatched chan struct{}

	group *errgroup.Group
	ctx   context.Context
	stop  context.CancelFunc
}

// queuedJob is a job waiting for the dispatcher.
type queuedJob struct {
	ctx context.Context
	st  *jobState
}

// NewManager creates a job controller that runs jobs with engine.
func NewManager(engine *Engine, opts ManagerOpts) *Manager {
	if opts.MaxJobs < 1 {
		opts.MaxJobs = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	group := &errgroup.Group{}
	group.SetLimit(opts.MaxJobs)

	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		engine:     engine,
		opts:       opts,
		logger:     opts.Logger,
		now:        time.Now,
		jobs:       make(map[string]*jobState),
		wake:       make(chan struct{}, 1),
		dispatched: make(chan struct{}),
		group:      group,
		ctx:        ctx,
		stop:       stop,
	}
	go m.dispatch()
	return m
}

// Start validates in, registers a new job and schedules it. It returns the queued job immediately.
//
// Links must carry a track, playlist or album marker ([shared.ErrInvalidLink]);
// song lists must be non-empty ([shared.ErrEmptySelection]).
func (m *Manager) Start(ctx context.Context, in Input) (models.Job, error) {
	if err := ctx.Err(); err != nil {
		return models.Job{}, err
	}
	if err := validateInput(&in); err != nil {
		return models.Job{}, err
	}

	id := shared.GenerateID()
	jobCtx, cancel := context.WithCancel(m.ctx)
	st := newJobState(
		id,
		in,
		filepath.Join(m.opts.WorkDir, id),
		filepath.Join(m.opts.ArchiveDir, id+".zip"),
		cancel,
		m.now(),
	)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return models.Job{}, shared.ErrShutdown
	}
	m.jobs[id] = st
	m.order = append(m.order, id)
	m.latest = id
	m.pending = append(m.pending, queuedJob{ctx: jobCtx, st: st})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}

	m.logger.Info("job queued", "job", id, "source", in.Source())
	return st.snapshot(), nil
}

// dispatch hands queued jobs to the pool in submission order.
// It blocks on the pool limit, so a later job never overtakes an earlier one.
// After shutdown it drains what is left (those jobs end cancelled) and exits.
func (m *Manager) dispatch() {
	defer close(m.dispatched)

	for {
		q, ok := m.next()
		if !ok {
			select {
			case <-m.wake:
				continue
			case <-m.ctx.Done():
				if q, ok = m.next(); !ok {
					return
				}
			}
		}

		m.group.Go(func() error {
			defer q.st.cancel()
			m.runJob(q.ctx, q.st)
			return nil
		})
	}
}

func (m *Manager) next() (queuedJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return queuedJob{}, false
	}
	q := m.pending[0]
	m.pending[0] = queuedJob{}
	m.pending = m.pending[1:]
	return q, true
}

func validateInput(in *Input) error {
	if in.Link != "" && len(in.Songs) > 0 {
		return fmt.Errorf("%w: supply either a link or songs, not both", shared.ErrInvalidInput)
	}
	if in.Link != "" {
		if !services.HasMarker(in.Link) {
			return fmt.Errorf("%w: %s", shared.ErrInvalidLink, in.Link)
		}
		return nil
	}

	in.Songs = lo.Filter(in.Songs, func(s models.Song, _ int) bool { return s.Valid() })
	if len(in.Songs) == 0 {
		return shared.ErrEmptySelection
	}
	return nil
}

func (m *Manager) runJob(ctx context.Context, st *jobState) {
	defer st.release()

	if ctx.Err() != nil {
		m.engine.cancelled(st, m.opts.Progress)
	}
	if err := m.engine.run(ctx, st, m.opts.Progress); err != nil {
		m.logger.Error("job failed", "job", st.job.ID, "err", err)
	}

	if m.opts.History != nil {
		if err := m.opts.History.Record(context.Background(), st.snapshot(), st.results()); err != nil {
			m.logger.Warn("failed to record job history", "job", st.job.ID, "err", err)
		}
	}
}

func (m *Manager) get(id string) (*jobState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return st, nil
}

// Status returns a snapshot of one job.
func (m *Manager) Status(id string) (models.Job, error) {
	st, err := m.get(id)
	if err != nil {
		return models.Job{}, err
	}
	return st.snapshot(), nil
}

// Latest returns the most recently started job, or an idle snapshot when no job has been started.
func (m *Manager) Latest() models.Job {
	m.mu.RLock()
	st, ok := m.jobs[m.latest]
	m.mu.RUnlock()
	if !ok {
		return models.Job{Status: models.StatusIdle}
	}
	return st.snapshot()
}

// List returns snapshots of every retained job, oldest first.
func (m *Manager) List() []models.Job {
	m.mu.RLock()
	states := lo.Map(m.order, func(id string, _ int) *jobState { return m.jobs[id] })
	m.mu.RUnlock()
	return lo.Map(states, func(st *jobState, _ int) models.Job { return st.snapshot() })
}

// Report returns the per-song results recorded so far.
func (m *Manager) Report(id string) (models.Report, error) {
	st, err := m.get(id)
	if err != nil {
		return models.Report{}, err
	}
	return st.report(), nil
}

// Artifact returns the archive path of a finished job.
//
// Returns [shared.ErrNotReady] unless the job is done and its archive exists on disk.
func (m *Manager) Artifact(id string) (string, error) {
	st, err := m.get(id)
	if err != nil {
		return "", err
	}

	job := st.snapshot()
	if job.Status != models.StatusDone || job.Archive == "" {
		return "", shared.ErrNotReady
	}
	if _, err := os.Stat(job.Archive); err != nil {
		return "", shared.ErrNotReady
	}
	return job.Archive, nil
}

// Wait blocks until the job finishes or ctx ends, and returns the latest snapshot either way.
func (m *Manager) Wait(ctx context.Context, id string) (models.Job, error) {
	st, err := m.get(id)
	if err != nil {
		return models.Job{}, err
	}

	select {
	case <-st.done:
		return st.snapshot(), nil
	case <-ctx.Done():
		return st.snapshot(), ctx.Err()
	}
}

// Cancel stops a queued or running job. The job ends in error with "Job cancelled.".
func (m *Manager) Cancel(id string) error {
	st, err := m.get(id)
	if err != nil {
		return err
	}

	if st.status().IsFinished() {
		return fmt.Errorf("%w: %s", shared.ErrJobFinished, id)
	}
	if m.engine.cancelQueued(st, m.opts.Progress) {
		st.release()
	}

	st.cancel()
	m.logger.Info("job cancelled", "job", id)
	return nil
}

// Shutdown cancels every job and waits for the pool to drain or ctx to end. No jobs are accepted afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.stop()

	done := make(chan struct{})
	go func() {
		<-m.dispatched
		m.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", shared.ErrShutdown, ctx.Err())
	}
}

// Prune forgets finished jobs that completed more than TTL before now and deletes their archives.
// Active and queued jobs are never pruned. Returns the number of jobs removed.
func (m *Manager) Prune(now time.Time) int {
	if m.opts.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.opts.TTL)

	m.mu.Lock()
	var expired []models.Job
	kept := m.order[:0]
	for _, id := range m.order {
		job := m.jobs[id].snapshot()
		if job.Status.IsFinished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			expired = append(expired, job)
			delete(m.jobs, id)
			if m.latest == id {
				m.latest = ""
			}
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.mu.Unlock()

	for _, job := range expired {
		if err := os.Remove(job.Archive); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("failed to remove archive", "job", job.ID, "err", err)
		}
	}
	if len(expired) > 0 {
		m.logger.Debug("pruned jobs", "count", len(expired))
	}
	return len(expired)
}

// RunPruner calls [Manager.Prune] every interval until ctx ends.
func (m *Manager) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.opts.TTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.Prune(t)
		}
	}
}
