package main

import (
	"context"
	"os"
	"strings"

	"github.com/desertthunder/songzip/internal/services"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadDotEnv(); err != nil {
		logger.Warn("ignoring .env", "error", err)
	}

	configPath := configPathFromArgs(os.Args)
	config, err := shared.ResolveConfig(configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	shared.SetLogLevel(logger, config.Log.Level)

	var resolver services.Resolver
	if config.HasSpotifyCredentials() {
		svc, err := services.NewSpotifyService(config.Credentials.Spotify, services.WithSpotifyLogger(logger))
		if err != nil {
			logger.Warn("spotify unavailable", "error", err)
		} else {
			resolver = svc
		}
	} else {
		logger.Debug("spotify credentials not set, link resolution disabled")
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Resolver:   resolver,
		Fetcher:    services.NewYouTubeService(config.Fetcher, logger),
		Logger:     logger,
	})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command with every subcommand registered.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "songzip",
		Usage:   "Download Spotify tracks and playlists from YouTube as a zip of audio files",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Commands: runner.register(),
	}
}

// configPathFromArgs finds --config/-c before the command tree is parsed,
// since services are built from the config before the app runs.
func configPathFromArgs(args []string) string {
	path := "config.toml"
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "--config" || arg == "-c") && i+1 < len(args):
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		}
	}
	return path
}
