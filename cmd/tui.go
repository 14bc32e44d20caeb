package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songzip/internal/shared"
	"github.com/desertthunder/songzip/internal/tasks"
	"github.com/desertthunder/songzip/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for picking and downloading songs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link", shared.ErrMissingArgument)
	}
	if err := r.requireResolver(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/songzip-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	var history tasks.HistoryRecorder
	if db, repo, err := r.openHistory(); err != nil {
		r.logger.Warn("job history disabled", "error", err)
	} else {
		defer db.Close()
		history = repo
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

	model := ui.NewModel(ctx, link, r.resolver, manager, updates)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
