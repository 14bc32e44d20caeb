// package tasks implements the download job pipeline and the controller that runs jobs in the background.
//
// The [Engine] runs one job: resolve, fetch each song, archive. The [Manager] owns every job's state,
// schedules engines on a bounded worker pool and serves snapshots to pollers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songzip/internal/archive"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/services"
	"github.com/desertthunder/songzip/internal/shared"
	"golang.org/x/time/rate"
)

// Engine runs the resolve → fetch → archive pipeline for a single job.
type Engine struct {
	resolver services.Resolver
	fetcher  services.Fetcher
	limiter  *rate.Limiter
	logger   *log.Logger
	now      func() time.Time
}

// NewEngine creates an engine. fetchRate caps fetches per second; zero or less means unlimited.
//
// resolver may be nil when every job supplies its own songs.
func NewEngine(resolver services.Resolver, fetcher services.Fetcher, fetchRate float64, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if fetchRate > 0 {
		limit = rate.Limit(fetchRate)
	}

	return &Engine{
		resolver: resolver,
		fetcher:  fetcher,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		now:      time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// run executes the pipeline against st. Every exit path leaves st in a terminal state.
//
// The returned error describes orchestration faults only; per-song failures are recorded on st.
func (e *Engine) run(ctx context.Context, st *jobState, progress chan<- ProgressUpdate) (err error) {
	id := st.job.ID
	logger := e.logger.With("job", id)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error("job panicked", "panic", r)
			os.RemoveAll(st.workDir)
			e.fail(st, progress, err)
		}
	}()

	if !st.begin(e.now()) {
		return nil
	}
	archivePath := st.snapshot().Archive

	if err := prepare(st.workDir, archivePath); err != nil {
		e.fail(st, progress, err)
		return err
	}

	songs := st.input.Songs
	if len(songs) == 0 {
		songs, err = e.resolve(ctx, st, progress)
		if err != nil {
			os.RemoveAll(st.workDir)
			if ctx.Err() != nil {
				e.cancelled(st, progress)
				return nil
			}
			e.fail(st, progress, err)
			return err
		}
		if len(songs) == 0 {
			os.RemoveAll(st.workDir)
			e.finish(st, progress, models.StatusError, msgNoTracks, msgNoTracks, "")
			return nil
		}
	}

	total := len(songs)
	st.setTotal(total)
	logger.Info("job started", "songs", total, "source", st.input.Source())

	succeeded := 0
	for i, song := range songs {
		index := i + 1
		st.step(index, downloadingMessage(song))
		sendProgress(progress, fetchUpdate(id, index, total, song))

		item := e.fetch(ctx, index, song, st.workDir)
		st.record(item)
		sendProgress(progress, fetchedUpdate(id, total, item))

		if item.Reason == models.ReasonCancelled || ctx.Err() != nil {
			for j := index; j < total; j++ {
				st.record(models.NewItemResult(j+1, songs[j], "", context.Canceled, nil))
			}
			os.RemoveAll(st.workDir)
			e.cancelled(st, progress)
			return nil
		}

		if item.OK() {
			succeeded++
		} else {
			logger.Warn("fetch failed", "song", song.String(), "reason", item.Reason, "err", item.Err)
		}
	}

	if succeeded == 0 {
		os.RemoveAll(st.workDir)
		e.finish(st, progress, models.StatusError, msgNoneFetched, msgNoneFetched, "")
		return nil
	}

	st.setMessage(msgArchiving)
	sendProgress(progress, archiveUpdate(id))

	entries, err := archive.Zip(st.workDir, archivePath)
	os.RemoveAll(st.workDir)
	if err != nil {
		e.fail(st, progress, err)
		return err
	}

	logger.Info("job complete", "entries", entries, "failed", total-succeeded, "archive", archivePath)
	e.finish(st, progress, models.StatusDone, msgComplete, "", archivePath)
	return nil
}

func (e *Engine) resolve(ctx context.Context, st *jobState, progress chan<- ProgressUpdate) ([]models.Song, error) {
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver configured", shared.ErrServiceUnavailable)
	}

	st.setMessage(msgResolving)
	sendProgress(progress, resolveUpdate(st.job.ID))

	songs, err := e.resolver.Resolve(ctx, st.input.Link)
	if err != nil {
		return nil, err
	}

	valid := make([]models.Song, 0, len(songs))
	for _, s := range songs {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	sendProgress(progress, resolvedUpdate(st.job.ID, len(valid)))
	return valid, nil
}

// fetch runs one rate-limited fetch and classifies the outcome.
func (e *Engine) fetch(ctx context.Context, index int, song models.Song, dir string) models.ItemResult {
	if err := e.limiter.Wait(ctx); err != nil {
		return models.NewItemResult(index, song, "", context.Canceled, nil)
	}

	file, err := e.fetcher.Fetch(ctx, song, dir)
	if err != nil && ctx.Err() != nil && !errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w: %v", context.Canceled, err)
	}
	if file != "" {
		file = filepath.Base(file)
	}
	return models.NewItemResult(index, song, file, err, shared.ErrTrackNotFound)
}

func (e *Engine) fail(st *jobState, progress chan<- ProgressUpdate, err error) {
	msg := failedMessage(err)
	e.finish(st, progress, models.StatusError, msg, err.Error(), "")
}

func (e *Engine) cancelled(st *jobState, progress chan<- ProgressUpdate) {
	e.finish(st, progress, models.StatusError, msgCancelled, shared.ErrCancelled.Error(), "")
}

// cancelQueued ends st only if it is still idle; the check and the transition happen under one lock.
func (e *Engine) cancelQueued(st *jobState, progress chan<- ProgressUpdate) bool {
	if !st.cancelQueued(msgCancelled, shared.ErrCancelled.Error(), e.now()) {
		return false
	}
	sendProgress(progress, finishedUpdate(st.snapshot()))
	return true
}

func (e *Engine) finish(st *jobState, progress chan<- ProgressUpdate, status models.Status, msg, errMsg, archivePath string) {
	if st.finish(status, msg, errMsg, archivePath, e.now()) {
		sendProgress(progress, finishedUpdate(st.snapshot()))
	}
}

// prepare recreates the job's working directory and removes any archive left from an earlier run.
func prepare(workDir, archivePath string) error {
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("failed to clear work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove old archive: %w", err)
	}
	return nil
}
