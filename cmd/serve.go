package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/desertthunder/songzip/internal/server"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/desertthunder/songzip/internal/tasks"
	"github.com/urfave/cli/v3"
)

const pruneInterval = 10 * time.Minute

// Serve runs the HTTP server until SIGINT or SIGTERM, then drains requests and jobs.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	if r.resolver == nil {
		r.logger.Warn("spotify credentials missing: link submissions will fail until SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are set")
	}

	var history tasks.HistoryRecorder
	db, repo, err := r.openHistory()
	if err != nil {
		r.logger.Warn("job history disabled", "error", err)
	} else {
		defer db.Close()
		history = repo
	}

	manager, err := r.newManager(history, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go manager.RunPruner(ctx, pruneInterval)

	handlers, err := server.NewHandlers(manager, r.resolver, r.config.Storage.ArchiveName, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build handlers: %w", err)
	}

	srv := server.New(cfg, server.NewRouter(handlers, cmd.StringSlice("origin"), r.logger), r.logger)

	if cmd.Bool("open") {
		go r.openWhenListening(ctx, cfg)
	}

	grace := cmd.Duration("grace")
	runErr := srv.Run(ctx, grace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("jobs still running at exit", "error", err)
	}

	return runErr
}

// openWhenListening opens the index page once the port accepts connections.
func (r *Runner) openWhenListening(ctx context.Context, cfg shared.ServerConfig) {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range 50 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err != nil {
			continue
		}
		conn.Close()

		url := "http://" + addr + "/"
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("could not open browser", "url", url, "error", err)
			r.writePlain("Open %s in your browser\n", url)
		}
		return
	}
}
