package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/desertthunder/songzip/internal/formatter"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/desertthunder/songzip/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Tracks resolves a link and prints its songs without downloading anything.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link", shared.ErrMissingArgument)
	}
	if err := r.requireResolver(); err != nil {
		return err
	}

	r.logger.Debug("resolving link", "link", link)
	songs, err := r.resolver.Resolve(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to resolve link: %w", err)
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(map[string]any{"tracks": songs}, cmd.Bool("pretty"))
	case cmd.Bool("csv"):
		data, err := formatter.SongsToCSV(songs)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	if len(songs) == 0 {
		return r.writePlain("No tracks found for this link.\n")
	}
	r.writePlain("%s", formatter.SongsToText(songs))
	return r.writePlainln("%d tracks", len(songs))
}

// Download runs one job in-process, printing progress as it goes.
//
// Ctrl-C cancels the job; the partial work directory is removed.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link", shared.ErrMissingArgument)
	}
	if err := r.requireResolver(); err != nil {
		return err
	}

	var reportFormat formatter.Format
	if f := cmd.String("report"); f != "" {
		parsed, err := formatter.ParseFormat(f)
		if err != nil {
			return err
		}
		reportFormat = parsed
	}

	var history tasks.HistoryRecorder
	if !cmd.Bool("no-history") {
		db, repo, err := r.openHistory()
		if err != nil {
			r.logger.Warn("job history disabled", "error", err)
		} else {
			defer db.Close()
			history = repo
		}
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	manager, err := r.newManager(history, updates)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	job, err := manager.Start(ctx, tasks.Input{Link: link})
	if err != nil {
		return err
	}

	stopPrinting := r.printUpdates(updates)
	job, err = manager.Wait(ctx, job.ID)
	if err != nil {
		r.logger.Info("cancelling job", "job", job.ID)
		if cerr := manager.Cancel(job.ID); cerr != nil {
			r.logger.Debug("cancel", "job", job.ID, "error", cerr)
		}
		job, _ = manager.Wait(context.Background(), job.ID)
	}
	stopPrinting()

	report, err := manager.Report(job.ID)
	if err != nil {
		return err
	}
	r.printSummary(job, report)

	if reportFormat != "" {
		path, err := formatter.WriteReport(reportFormat, formatter.JobReport{Job: job, Report: report}, "")
		if err != nil {
			return err
		}
		r.writePlain("Report: %s\n", path)
	}

	if job.Status != models.StatusDone {
		return fmt.Errorf("job %s: %s", job.ID, job.Message)
	}

	if out := cmd.String("out"); out != "" {
		if err := copyFile(job.Archive, out); err != nil {
			return fmt.Errorf("failed to copy archive: %w", err)
		}
		r.writePlain("Saved to: %s\n", out)
	}
	return nil
}

// printUpdates prints updates until the returned func is called, which drains what is left.
func (r *Runner) printUpdates(updates <-chan tasks.ProgressUpdate) func() {
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case u := <-updates:
				r.printUpdate(u)
			case <-quit:
				for {
					select {
					case u := <-updates:
						r.printUpdate(u)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}

func (r *Runner) printUpdate(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.Resolve:
		r.writePlain("📥 %s\n", u.Message)
	case tasks.Fetch:
		if u.Data == nil {
			r.logger.Debug(u.Message)
			return
		}
		r.writePlain("   %s\n", u.Message)
	case tasks.Archive:
		r.writePlain("\n📦 %s\n", u.Message)
	}
}

func (r *Runner) printSummary(job models.Job, report models.Report) {
	r.writePlain("\n")
	if job.Status == models.StatusDone {
		r.writePlainHeader("Download Complete!")
	} else {
		r.writePlainHeader("Download Failed")
	}
	r.writePlain("Job: %s\n", job.ID)
	r.writePlain("Status: %s\n", job.Message)
	r.writePlain("Downloaded: %d/%d\n", report.Succeeded, job.Total)
	if d := formatter.Duration(job); d != "" {
		r.writePlain("Duration: %s\n", d)
	}
	if job.Status == models.StatusDone {
		r.writePlain("Archive: %s\n", job.Archive)
	}

	if failures := report.Failures(); len(failures) > 0 {
		r.writePlain("\nFailed to download %d tracks:\n", len(failures))
		for _, item := range failures {
			r.writePlain("  - %s (%s)\n", item.Song, item.Reason)
		}
	}
}

func copyFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
