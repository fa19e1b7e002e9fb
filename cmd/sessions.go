package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/scout/internal/formatter"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/urfave/cli/v3"
)

// SessionsList prints the most recently started sessions.
func (r *Runner) SessionsList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}

	sessions, err := st.ListSessions(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessions, cmd.Bool("pretty"))
	}

	if len(sessions) == 0 {
		r.writePlain("No sessions recorded yet. Run 'scout discover --query ...' to start one.\n")
		return nil
	}

	for _, sess := range sessions {
		r.writePlain("%s  %-9s  %3d stored  %s  %s\n",
			shared.ShortID(sess.ID),
			sess.State,
			sess.Counters.ArtistsStored,
			sess.StartedAt.Format(time.RFC3339),
			sess.Request.Query)
	}

	return nil
}

// SessionsShow prints one session snapshot as text, Markdown, or JSON.
func (r *Runner) SessionsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id argument required", shared.ErrInvalidInput)
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}

	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(sess, cmd.Bool("pretty"))
	}
	if cmd.Bool("markdown") {
		return r.writePlain("%s", formatter.SessionMarkdown(sess))
	}

	return r.writePlain("%s", formatter.SessionText(sess))
}

// SessionsEvents prints a session's journal in append order, NDJSON by
// default to match the discover stream.
func (r *Runner) SessionsEvents(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id argument required", shared.ErrInvalidInput)
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}

	events, err := st.SessionEvents(ctx, id, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to load session events: %w", err)
	}

	if cmd.Bool("pretty") {
		for _, event := range events {
			if line := formatter.EventText(*event); line != "" {
				r.writePlain("%s\n", line)
			}
		}
		return nil
	}

	stream := formatter.NewEventWriter(r.output)
	for _, event := range events {
		if err := stream.Write(*event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}

	return nil
}

// sessionsCommand inspects persisted discovery sessions
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect persisted discovery sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent sessions",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SessionsList,
			},
			{
				Name:  "show",
				Usage: "Show one session's snapshot",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
					&cli.BoolFlag{
						Name:    "markdown",
						Aliases: []string{"md"},
						Usage:   "Render as Markdown",
					},
				},
				Action: r.SessionsShow,
			},
			{
				Name:  "events",
				Usage: "Print one session's event journal",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of events to return (0 uses the default)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Human-readable lines instead of NDJSON",
					},
				},
				Action: r.SessionsEvents,
			},
		},
	}
}
