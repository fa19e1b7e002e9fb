package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive discovery dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering. The
	// redirect happens before buildEngine so the whole stack logs there.
	fileLogger, err := shared.NewFileLogger("./tmp/scout-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	eng, err := r.buildEngine()
	if err != nil {
		return err
	}

	req := models.SessionRequest{
		Query:       cmd.String("query"),
		TargetCount: cmd.Int("target"),
	}

	model := ui.NewModel(ctx, eng, req)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiCommand launches the live discovery dashboard
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive discovery dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Start discovering this query immediately",
			},
			&cli.IntFlag{
				Name:    "target",
				Aliases: []string{"n"},
				Usage:   "Number of artists to discover (0 uses the configured default)",
			},
		},
		Action: r.TUI,
	}
}
