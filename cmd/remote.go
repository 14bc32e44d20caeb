package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/songzip/internal/formatter"
	"github.com/desertthunder/songzip/internal/models"
	"github.com/desertthunder/songzip/internal/services"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/urfave/cli/v3"
)

// remote returns an API client for --url, or the runner's default client.
func (r *Runner) remote(cmd *cli.Command) *services.APIService {
	if url := cmd.String("url"); url != "" {
		return services.NewAPIService(url, r.httpClient)
	}
	return r.api
}

// RemoteProgress prints the progress of the server's latest job, or of --job.
func (r *Runner) RemoteProgress(ctx context.Context, cmd *cli.Command) error {
	api := r.remote(cmd)

	if id := cmd.String("job"); id != "" {
		job, err := api.Job(ctx, id)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(job, true)
		}
		r.writePlain("%s: %s (%d/%d) %s\n", job.ID, job.Status, job.Current, job.Total, job.Message)
		return nil
	}

	progress, err := api.Progress(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(progress, false)
	}
	return r.writePlain("%s (%d/%d) %s\n", progress.Status, progress.Current, progress.Total, progress.Message)
}

// RemoteTracks resolves a link on the server.
func (r *Runner) RemoteTracks(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link", shared.ErrMissingArgument)
	}

	songs, err := r.remote(cmd).ListTracks(ctx, link)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"tracks": songs}, true)
	}
	return r.writePlain("%s", formatter.SongsToText(songs))
}

// RemoteFetch resolves a link on the server, starts a job for its songs,
// polls until the job finishes and saves the archive.
func (r *Runner) RemoteFetch(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link", shared.ErrMissingArgument)
	}
	api := r.remote(cmd)

	songs, err := api.ListTracks(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}
	r.writePlain("📥 Found %d tracks\n", len(songs))

	id, err := api.DownloadSelected(ctx, songs)
	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}
	r.logger.Info("remote job started", "job", id)

	job, err := r.pollJob(ctx, api, id, cmd.Duration("interval"))
	if err != nil {
		return err
	}
	if job.Status != models.StatusDone {
		return fmt.Errorf("job %s: %s", job.ID, job.Message)
	}

	out := cmd.String("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	n, err := api.DownloadArchive(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return fmt.Errorf("failed to download archive: %w", err)
	}

	r.writePlain("\nDownloaded %d/%d tracks (%d bytes)\n", job.Succeeded, job.Total, n)
	return r.writePlain("Saved to: %s\n", out)
}

// pollJob polls a job until it finishes, printing each new message.
func (r *Runner) pollJob(ctx context.Context, api *services.APIService, id string, interval time.Duration) (models.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		job, err := api.Job(ctx, id)
		if err != nil {
			return job, err
		}
		if job.Message != last {
			last = job.Message
			r.writePlain("   [%d/%d] %s\n", job.Current, job.Total, job.Message)
		}
		if job.Status.IsFinished() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RemoteCancel cancels a job on the server.
func (r *Runner) RemoteCancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.remote(cmd).Cancel(ctx, id); err != nil {
		return err
	}
	return r.writePlain("Cancelled job %s\n", id)
}
