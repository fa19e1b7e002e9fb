package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/scout/internal/formatter"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/urfave/cli/v3"
)

// Discover runs one discovery session in the foreground and streams its
// progress events to stdout, NDJSON by default or human-readable with
// --pretty. Ctrl-C cancels the session and waits for it to wind down.
func (r *Runner) Discover(ctx context.Context, cmd *cli.Command) error {
	filters, err := parseFilters(cmd.StringSlice("filter"))
	if err != nil {
		return err
	}

	req := models.SessionRequest{
		Query:        cmd.String("query"),
		TargetCount:  cmd.Int("target"),
		Filters:      filters,
		MaxCostUnits: cmd.Int("max-cost"),
	}

	eng, err := r.buildEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, sub, err := eng.StartStream(ctx, req)
	if err != nil {
		return err
	}
	defer eng.Unsubscribe(id, sub.ID)

	r.logger.Info("session started", "session_id", shared.ShortID(id), "query", req.Query)

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			r.logger.Info("interrupt received, cancelling session", "session_id", shared.ShortID(id))
			if err := eng.Cancel(context.Background(), id); err != nil {
				r.logger.Warn("cancel failed", "error", err)
			}
		case <-watchDone:
		}
	}()

	pretty := cmd.Bool("pretty")
	stream := formatter.NewEventWriter(r.output)

	var terminal *models.ProgressEvent
	var stored []*models.ArtistProfile

	for event := range sub.Events {
		if pretty {
			if line := formatter.EventText(event); line != "" {
				r.writePlain("%s\n", line)
			}
		} else if err := stream.Write(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}

		if event.Kind == models.EventArtistStored && event.Artist != nil {
			stored = append(stored, event.Artist)
		}
		if event.Kind.Terminal() {
			ev := event
			terminal = &ev
		}
	}

	summary, failed, errKind, errMsg := r.resolveOutcome(eng, id, terminal)

	if pretty {
		r.writeRunSummary(req.Query, summary, failed, errKind, errMsg)
	}

	if base := cmd.String("export"); base != "" && len(stored) > 0 {
		result, err := formatter.WriteArtistExport(stored, base)
		if err != nil {
			return fmt.Errorf("failed to export artists: %w", err)
		}
		r.writePlain("✓ Artists exported to %s and %s\n", result.CSVFile, result.JSONFile)
	}

	if failed {
		if errKind == "" {
			errKind = "unknown"
		}
		return fmt.Errorf("session %s failed [%s]: %s", shared.ShortID(id), errKind, errMsg)
	}

	return nil
}

// resolveOutcome extracts the run's result from the terminal event. When the
// bus dropped this subscriber before the terminal event arrived, the session
// is still running, so poll its state until it settles.
func (r *Runner) resolveOutcome(eng engine, id string, terminal *models.ProgressEvent) (*models.SessionSummary, bool, string, string) {
	if terminal != nil {
		return terminal.Summary, terminal.Kind == models.EventSessionFailed, terminal.ErrorKind, terminal.Message
	}

	r.logger.Warn("event stream dropped, polling session state", "session_id", shared.ShortID(id))

	deadline := time.Now().Add(30 * time.Second)
	for {
		sess, err := eng.Status(context.Background(), id)
		if err != nil {
			return nil, true, shared.ErrorKind(err), err.Error()
		}
		if sess.State.Terminal() {
			summary := &models.SessionSummary{
				SessionCounters: sess.Counters,
				BudgetExhausted: sess.BudgetExhausted,
				DurationMS:      sess.EndedAt.Sub(sess.StartedAt).Milliseconds(),
			}
			return summary, sess.State != models.StateCompleted, "", sess.LastError
		}
		if time.Now().After(deadline) {
			return nil, true, "", fmt.Sprintf("session %s still running after stream drop", shared.ShortID(id))
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// writeRunSummary prints the end-of-run banner for --pretty mode.
func (r *Runner) writeRunSummary(query string, summary *models.SessionSummary, failed bool, kind, message string) {
	title := "Discovery Complete!"
	if failed {
		title = "Discovery Failed"
	}

	r.writePlain("\n")
	r.writePlainHeader(title)
	r.writePlain("Query: %s\n", query)

	if summary == nil {
		return
	}

	r.writePlain("Videos seen: %d\n", summary.VideosSeen)
	r.writePlain("Videos accepted: %d\n", summary.VideosAccepted)
	r.writePlain("Artists enriched: %d\n", summary.ArtistsEnriched)
	r.writePlain("Artists stored: %d\n", summary.ArtistsStored)
	r.writePlain("Below threshold: %d\n", summary.BelowThreshold)
	r.writePlain("Cost spent: %d units\n", summary.CostSpent)
	r.writePlain("Duration: %s\n", shared.FormatDuration(summary.DurationMS))

	if summary.BudgetExhausted {
		r.writePlain("Budget exhausted before target count\n")
	}
	if failed {
		r.writePlain("Error [%s]: %s\n", kind, message)
	}
}

// parseFilters turns repeated KEY=VALUE flags into a filter map.
func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	filters := make(map[string]string, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter must be KEY=VALUE, got %q", shared.ErrInvalidFlag, pair)
		}
		filters[key] = value
	}

	return filters, nil
}

// discoverCommand runs a discovery session in the foreground
func discoverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Run a discovery session and stream progress events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Search query seeding the session (required)",
			},
			&cli.IntFlag{
				Name:    "target",
				Aliases: []string{"n"},
				Usage:   "Number of artists to discover (0 uses the configured default)",
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Candidate filter as KEY=VALUE (repeatable)",
			},
			&cli.IntFlag{
				Name:  "max-cost",
				Usage: "Per-session cost ceiling in quota units (0 means no ceiling)",
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Human-readable progress instead of NDJSON",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write stored artists to BASE_artists.csv and BASE_artists.json",
			},
		},
		Action: r.Discover,
	}
}
