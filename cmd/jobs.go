package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/songzip/internal/formatter"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// JobsList prints recorded jobs, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = models.Status(status)
	}

	records, err := repo.List(criteria)
	if err != nil {
		return err
	}

	jobs := lo.Map(records, func(rec *models.JobRecord, _ int) models.Job { return rec.Snapshot() })
	if cmd.Bool("json") {
		return r.writeJSON(jobs, cmd.Bool("pretty"))
	}

	if len(jobs) == 0 {
		return r.writePlain("No jobs recorded yet.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Jobs (%d)", len(jobs)))
	for _, job := range jobs {
		r.writePlain("%s  %-11s %3d/%-3d  %s\n", job.ID, job.Status, job.Succeeded, job.Total, job.CreatedAt.Local().Format("2006-01-02 15:04"))
		if job.Source != "" {
			r.writePlain("    %s\n", job.Source)
		}
	}
	return nil
}

// JobsShow renders one recorded job with its per-song results.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	record, err := repo.Get(id)
	if err != nil {
		return err
	}
	report := formatter.JobReport{Job: record.Snapshot(), Report: record.Report()}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteReport(format, report, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written)
		return r.writePlain("Report saved to: %s\n", written)
	}

	data, err := formatter.Render(format, report)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// JobsDelete removes a job from the history. The archive on disk is left alone.
func (r *Runner) JobsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.Delete(id); err != nil {
		return err
	}
	return r.writePlain("Deleted job %s\n", id)
}
