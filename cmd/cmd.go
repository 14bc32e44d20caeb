// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// serveCommand runs the web server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (defaults to config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (defaults to config)",
			},
			&cli.StringSliceFlag{
				Name:  "origin",
				Usage: "Allowed CORS origin (repeatable, default any)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the web page in a browser once listening",
			},
			&cli.DurationFlag{
				Name:  "grace",
				Usage: "How long shutdown waits for requests and jobs",
				Value: 10 * time.Second,
			},
		},
		Action: r.Serve,
	}
}

// tracksCommand resolves a link and prints its songs
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List the songs behind a Spotify track, playlist or album link",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "link",
				UsageText: "Spotify link or URI",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
		},
		Action: r.Tracks,
	}
}

// downloadCommand runs one job in-process
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download every song behind a link into a zip archive",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "link",
				UsageText: "Spotify link or URI",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Copy the finished archive to this path",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a job report in this format (text, markdown, csv, json)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the job in the history database",
			},
		},
		Action: r.Download,
	}
}

// jobsCommand reads the job history
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect the job history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded jobs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs with this status (idle, downloading, done, error)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show one job and its per-song report",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "id",
						UsageText: "Job ID",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, markdown, csv, json)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
				},
				Action: r.JobsShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a job from the history",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "id",
						UsageText: "Job ID",
					},
				},
				Action: r.JobsDelete,
			},
		},
	}
}

// remoteCommand talks to a running server
func remoteCommand(r *Runner) *cli.Command {
	urlFlag := &cli.StringFlag{
		Name:    "url",
		Aliases: []string{"u"},
		Usage:   "Base URL of a running songzip server",
		Sources: cli.EnvVars("SONGZIP_URL"),
	}

	return &cli.Command{
		Name:  "remote",
		Usage: "Drive a running songzip server through its HTTP API",
		Flags: []cli.Flag{urlFlag},
		Commands: []*cli.Command{
			{
				Name:  "progress",
				Usage: "Show the progress of the server's latest job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "job",
						Usage: "Show a specific job instead of the latest",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RemoteProgress,
			},
			{
				Name:  "tracks",
				Usage: "Resolve a link on the server",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "link",
						UsageText: "Spotify link or URI",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RemoteTracks,
			},
			{
				Name:  "fetch",
				Usage: "Start a job on the server, wait for it and download the archive",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "link",
						UsageText: "Spotify link or URI",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Where to save the archive",
						Value:   "spotify_songs.zip",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval",
						Value: time.Second,
					},
				},
				Action: r.RemoteFetch,
			},
			{
				Name:  "cancel",
				Usage: "Cancel a job on the server",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "id",
						UsageText: "Job ID",
					},
				},
				Action: r.RemoteCancel,
			},
		},
	}
}

// setupCommand prepares config and storage
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and the history database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand launches the interactive terminal UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Pick songs from a link and watch them download",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "link",
				UsageText: "Spotify link or URI",
			},
		},
		Action: r.TUI,
	}
}
