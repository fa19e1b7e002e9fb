package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
	"github.com/desertthunder/scout/internal/quota"
	"github.com/desertthunder/scout/internal/shared"
	tu "github.com/desertthunder/scout/internal/testing"
	"github.com/urfave/cli/v3"
)

// fakeEngine scripts a session: StartStream publishes the configured events
// over a real bus and closes it, with or without a terminal event.
type fakeEngine struct {
	id       string
	startErr error
	events   []models.ProgressEvent
	finished *models.Session

	cancelled []string
	unsubbed  int
	active    int
	closed    bool
}

func (f *fakeEngine) Start(ctx context.Context, req models.SessionRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%v: %w", err, shared.ErrInvalidRequest)
	}
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.id, nil
}

func (f *fakeEngine) StartStream(ctx context.Context, req models.SessionRequest) (string, *progress.Subscription, error) {
	if err := req.Validate(); err != nil {
		return "", nil, fmt.Errorf("%v: %w", err, shared.ErrInvalidRequest)
	}
	if f.startErr != nil {
		return "", nil, f.startErr
	}

	bus := progress.NewBus(f.id, len(f.events)+2, shared.NewLogger(io.Discard))
	sub := bus.Subscribe()

	terminal := false
	for _, event := range f.events {
		if event.Kind.Terminal() {
			bus.CloseWith(event)
			terminal = true
			break
		}
		bus.Publish(event)
	}
	if !terminal {
		bus.Close()
	}

	return f.id, sub, nil
}

func (f *fakeEngine) Cancel(ctx context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeEngine) Status(ctx context.Context, id string) (*models.Session, error) {
	if f.finished == nil {
		return nil, fmt.Errorf("status %s: %w", shared.ShortID(id), shared.ErrSessionNotFound)
	}
	return f.finished, nil
}

func (f *fakeEngine) Subscribe(id string) (*progress.Subscription, error) {
	return nil, fmt.Errorf("subscribe %s: %w", shared.ShortID(id), shared.ErrSessionNotFound)
}

func (f *fakeEngine) Unsubscribe(id string, subscriber int) {
	f.unsubbed++
}

func (f *fakeEngine) ActiveCount() int { return f.active }

func (f *fakeEngine) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

const fakeSessionID = "11111111-2222-4333-8444-555555555555"

func completedRun() []models.ProgressEvent {
	return []models.ProgressEvent{
		{Kind: models.EventSessionStarted, Phase: "harvest", Message: "synthwave"},
		{Kind: models.EventCandidateFound, Video: &models.CandidateVideo{VideoID: "v1", Title: "Mara Vox - Neon Static"}},
		{Kind: models.EventArtistStored, Artist: &models.ArtistProfile{Name: "Mara Vox", EnrichmentScore: 0.74}},
		{Kind: models.EventSessionCompleted, Summary: &models.SessionSummary{
			SessionCounters: models.SessionCounters{VideosSeen: 1, VideosAccepted: 1, ArtistsEnriched: 1, ArtistsStored: 1, CostSpent: 130},
			DurationMS:      4200,
		}},
	}
}

func runApp(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "scout", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"scout"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			st := tu.NewMockStore()
			eng := &fakeEngine{id: fakeSessionID}

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
				Store:  st,
				Engine: eng,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.store != st {
				t.Error("expected store to be set")
			}
			if runner.engine != eng {
				t.Error("expected engine to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("injected engine short-circuits buildEngine", func(t *testing.T) {
			eng := &fakeEngine{id: fakeSessionID}
			runner := NewRunner(RunnerOpts{Engine: eng})

			built, err := runner.buildEngine()
			if err != nil {
				t.Fatalf("buildEngine() error: %v", err)
			}
			if built != eng {
				t.Error("expected injected engine to be returned")
			}
		})
	})

	t.Run("Close", func(t *testing.T) {
		t.Run("winds down the injected engine", func(t *testing.T) {
			eng := &fakeEngine{id: fakeSessionID}
			runner := NewRunner(RunnerOpts{Engine: eng})

			if err := runner.Close(context.Background()); err != nil {
				t.Fatalf("Close() error: %v", err)
			}
			if !eng.closed {
				t.Error("expected engine to be closed")
			}
		})

		t.Run("with nothing built is a no-op", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if err := runner.Close(context.Background()); err != nil {
				t.Fatalf("Close() error: %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"discover", "serve", "sessions", "cache", "setup", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d = %s, want %s", i, commands[i].Name, name)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if result := output.String(); result != `{"key":"value"}`+"\n" {
				t.Errorf("expected compact JSON, got %q", result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})
}

func TestDiscoverCommand(t *testing.T) {
	t.Run("streams NDJSON for a completed session", func(t *testing.T) {
		output := &bytes.Buffer{}
		eng := &fakeEngine{id: fakeSessionID, events: completedRun()}
		runner := NewRunner(RunnerOpts{Output: output, Engine: eng})

		if err := runApp(t, runner, "discover", "--query", "synthwave"); err != nil {
			t.Fatalf("discover failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected 4 NDJSON lines, got %d:\n%s", len(lines), output.String())
		}

		var first models.ProgressEvent
		if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
			t.Fatalf("first line is not valid JSON: %v", err)
		}
		if first.Kind != models.EventSessionStarted {
			t.Errorf("expected session_started first, got %s", first.Kind)
		}
		if first.SessionID != fakeSessionID {
			t.Errorf("expected stamped session id, got %q", first.SessionID)
		}

		var last models.ProgressEvent
		if err := json.Unmarshal([]byte(lines[3]), &last); err != nil {
			t.Fatalf("last line is not valid JSON: %v", err)
		}
		if last.Kind != models.EventSessionCompleted || last.Summary == nil {
			t.Errorf("expected terminal summary event, got %+v", last)
		}

		if eng.unsubbed != 1 {
			t.Errorf("expected one unsubscribe, got %d", eng.unsubbed)
		}
	})

	t.Run("pretty mode renders text and a summary banner", func(t *testing.T) {
		output := &bytes.Buffer{}
		eng := &fakeEngine{id: fakeSessionID, events: completedRun()}
		runner := NewRunner(RunnerOpts{Output: output, Engine: eng})

		if err := runApp(t, runner, "discover", "--query", "synthwave", "--pretty"); err != nil {
			t.Fatalf("discover failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{
			"✓ stored Mara Vox (score 0.74)",
			"Discovery Complete!",
			"Artists stored: 1",
			"Cost spent: 130 units",
			"Duration: 4.2s",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("failed session returns an error carrying the kind", func(t *testing.T) {
		events := []models.ProgressEvent{
			{Kind: models.EventSessionStarted, Phase: "harvest", Message: "synthwave"},
			{Kind: models.EventSessionFailed, ErrorKind: "Blocked", Message: "all fetch strategies exhausted", Summary: &models.SessionSummary{ErrorKind: "Blocked"}},
		}
		eng := &fakeEngine{id: fakeSessionID, events: events}
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Engine: eng})

		err := runApp(t, runner, "discover", "--query", "synthwave")
		if err == nil {
			t.Fatal("expected error for failed session")
		}
		if !strings.Contains(err.Error(), "Blocked") || !strings.Contains(err.Error(), "all fetch strategies exhausted") {
			t.Errorf("expected kind and message in error, got %v", err)
		}
	})

	t.Run("engine start failure propagates", func(t *testing.T) {
		eng := &fakeEngine{id: fakeSessionID, startErr: fmt.Errorf("start: %w", shared.ErrBusy)}
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Engine: eng})

		err := runApp(t, runner, "discover", "--query", "synthwave")
		if err == nil {
			t.Fatal("expected error when the engine refuses the session")
		}
		if kind := shared.ErrorKind(err); kind != "Busy" {
			t.Errorf("expected Busy kind, got %s (%v)", kind, err)
		}
	})

	t.Run("empty query is an invalid request", func(t *testing.T) {
		eng := &fakeEngine{id: fakeSessionID}
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Engine: eng})

		err := runApp(t, runner, "discover")
		if err == nil {
			t.Fatal("expected error for missing query")
		}
		if kind := shared.ErrorKind(err); kind != "InvalidRequest" {
			t.Errorf("expected InvalidRequest kind, got %s (%v)", kind, err)
		}
	})

	t.Run("malformed filter is an invalid request", func(t *testing.T) {
		eng := &fakeEngine{id: fakeSessionID}
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Engine: eng})

		err := runApp(t, runner, "discover", "--query", "synthwave", "--filter", "nonsense")
		if err == nil {
			t.Fatal("expected error for malformed filter")
		}
		if kind := shared.ErrorKind(err); kind != "InvalidRequest" {
			t.Errorf("expected InvalidRequest kind, got %s (%v)", kind, err)
		}
	})

	t.Run("export writes the artist file pair", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "run1")
		eng := &fakeEngine{id: fakeSessionID, events: completedRun()}
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Engine: eng})

		if err := runApp(t, runner, "discover", "--query", "synthwave", "--export", base); err != nil {
			t.Fatalf("discover failed: %v", err)
		}

		tu.AssertFileExists(t, base+"_artists.csv")
		tu.AssertFileExists(t, base+"_artists.json")

		csv := tu.MustReadFile(t, base+"_artists.csv")
		if !strings.Contains(csv, "Mara Vox") {
			t.Errorf("expected artist in CSV, got:\n%s", csv)
		}
	})

	t.Run("dropped stream falls back to session state", func(t *testing.T) {
		events := []models.ProgressEvent{
			{Kind: models.EventSessionStarted, Phase: "harvest", Message: "synthwave"},
		}
		finished := &models.Session{
			ID:        fakeSessionID,
			Request:   models.SessionRequest{Query: "synthwave", TargetCount: 3},
			State:     models.StateCompleted,
			Counters:  models.SessionCounters{ArtistsStored: 3},
			StartedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
			EndedAt:   time.Date(2026, 8, 1, 9, 1, 0, 0, time.UTC),
		}
		eng := &fakeEngine{id: fakeSessionID, events: events, finished: finished}
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Engine: eng})

		if err := runApp(t, runner, "discover", "--query", "synthwave", "--pretty"); err != nil {
			t.Fatalf("expected clean fallback, got %v", err)
		}
		if !strings.Contains(output.String(), "Artists stored: 3") {
			t.Errorf("expected counters from stored session, got:\n%s", output.String())
		}
	})
}

func TestSessionsCommand(t *testing.T) {
	seedStore := func(t *testing.T) *tu.MockStore {
		t.Helper()
		st := tu.NewMockStore()

		ctx := context.Background()
		first := &models.Session{
			ID:        "aaaabbbb-cccc-4ddd-8eee-ffff00001111",
			Request:   models.SessionRequest{Query: "midwest emo revival", TargetCount: 5},
			State:     models.StateCompleted,
			Counters:  models.SessionCounters{VideosSeen: 12, VideosAccepted: 6, ArtistsStored: 3, CostSpent: 240},
			StartedAt: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
			EndedAt:   time.Date(2026, 7, 1, 10, 2, 0, 0, time.UTC),
		}
		second := &models.Session{
			ID:        "bbbbcccc-dddd-4eee-8fff-000011112222",
			Request:   models.SessionRequest{Query: "hyperpop 2026"},
			State:     models.StateFailed,
			LastError: "harvest: blocked by upstream",
			StartedAt: time.Date(2026, 7, 2, 11, 0, 0, 0, time.UTC),
			EndedAt:   time.Date(2026, 7, 2, 11, 1, 0, 0, time.UTC),
		}
		if err := st.RecordSession(ctx, first); err != nil {
			t.Fatalf("seed session: %v", err)
		}
		if err := st.RecordSession(ctx, second); err != nil {
			t.Fatalf("seed session: %v", err)
		}

		for _, event := range []models.ProgressEvent{
			{Kind: models.EventSessionStarted, SessionID: first.ID, Message: "midwest emo revival"},
			{Kind: models.EventArtistStored, SessionID: first.ID, Artist: &models.ArtistProfile{Name: "Iva North", EnrichmentScore: 0.61}},
			{Kind: models.EventSessionCompleted, SessionID: first.ID, Summary: &models.SessionSummary{SessionCounters: first.Counters, DurationMS: 120000}},
		} {
			ev := event
			if err := st.AppendSessionEvent(ctx, first.ID, &ev); err != nil {
				t.Fatalf("seed event: %v", err)
			}
		}

		return st
	}

	t.Run("list prints one line per session", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: seedStore(t)})

		if err := runApp(t, runner, "sessions", "list"); err != nil {
			t.Fatalf("sessions list failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{"aaaabbbb", "midwest emo revival", "bbbbcccc", "failed"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got:\n%s", want, out)
			}
		}
	})

	t.Run("list with empty store points at discover", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: tu.NewMockStore()})

		if err := runApp(t, runner, "sessions", "list"); err != nil {
			t.Fatalf("sessions list failed: %v", err)
		}
		if !strings.Contains(output.String(), "No sessions recorded yet") {
			t.Errorf("expected empty-store hint, got %q", output.String())
		}
	})

	t.Run("list emits JSON when asked", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: seedStore(t)})

		if err := runApp(t, runner, "sessions", "list", "--json"); err != nil {
			t.Fatalf("sessions list failed: %v", err)
		}

		var sessions []*models.Session
		if err := json.Unmarshal(output.Bytes(), &sessions); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(sessions))
		}
	})

	t.Run("show renders the text snapshot", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: seedStore(t)})

		if err := runApp(t, runner, "sessions", "show", "aaaabbbb-cccc-4ddd-8eee-ffff00001111"); err != nil {
			t.Fatalf("sessions show failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{"Query: midwest emo revival", "State: completed", "Artists stored: 3", "Cost spent: 240"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got:\n%s", want, out)
			}
		}
	})

	t.Run("show renders Markdown when asked", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: seedStore(t)})

		if err := runApp(t, runner, "sessions", "show", "aaaabbbb-cccc-4ddd-8eee-ffff00001111", "--markdown"); err != nil {
			t.Fatalf("sessions show failed: %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "# Discovery Session aaaabbbb") {
			t.Errorf("expected Markdown heading, got:\n%s", out)
		}
		if !strings.Contains(out, "| Artists stored | 3 |") {
			t.Errorf("expected counters table, got:\n%s", out)
		}
	})

	t.Run("show without id is an invalid request", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Store: seedStore(t)})

		err := runApp(t, runner, "sessions", "show")
		if err == nil {
			t.Fatal("expected error for missing id")
		}
		if kind := shared.ErrorKind(err); kind != "InvalidRequest" {
			t.Errorf("expected InvalidRequest kind, got %s (%v)", kind, err)
		}
	})

	t.Run("show unknown id reports not found", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Store: seedStore(t)})

		err := runApp(t, runner, "sessions", "show", "99999999-0000-4000-8000-000000000000")
		if err == nil {
			t.Fatal("expected error for unknown id")
		}
		if kind := shared.ErrorKind(err); kind != "NotFound" {
			t.Errorf("expected NotFound kind, got %s (%v)", kind, err)
		}
	})

	t.Run("events streams the journal as NDJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: seedStore(t)})

		if err := runApp(t, runner, "sessions", "events", "aaaabbbb-cccc-4ddd-8eee-ffff00001111"); err != nil {
			t.Fatalf("sessions events failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 journal lines, got %d:\n%s", len(lines), output.String())
		}
		var last models.ProgressEvent
		if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
			t.Fatalf("last line is not valid JSON: %v", err)
		}
		if last.Kind != models.EventSessionCompleted {
			t.Errorf("expected terminal event last, got %s", last.Kind)
		}
	})

	t.Run("events pretty mode renders text lines", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Store: seedStore(t)})

		if err := runApp(t, runner, "sessions", "events", "aaaabbbb-cccc-4ddd-8eee-ffff00001111", "--pretty"); err != nil {
			t.Fatalf("sessions events failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ stored Iva North (score 0.61)") {
			t.Errorf("expected rendered store line, got:\n%s", output.String())
		}
	})
}

func TestCacheCommand(t *testing.T) {
	t.Run("stats reports configured budget and empty cache", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Quota.DailyBudget = 500
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output})

		if err := runApp(t, runner, "cache", "stats"); err != nil {
			t.Fatalf("cache stats failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{"Quota budget: 500 units/day", "Remaining: 500 units", "Cache entries: 0"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got:\n%s", want, out)
			}
		}
	})

	t.Run("stats emits JSON when asked", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Quota.DailyBudget = 500
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output})

		if err := runApp(t, runner, "cache", "stats", "--json"); err != nil {
			t.Fatalf("cache stats failed: %v", err)
		}

		var stats struct {
			Quota quota.Stats      `json:"quota"`
			Cache quota.CacheStats `json:"cache"`
		}
		if err := json.Unmarshal(output.Bytes(), &stats); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if stats.Quota.DailyBudget != 500 || stats.Quota.Remaining != 500 {
			t.Errorf("unexpected quota stats: %+v", stats.Quota)
		}
	})

	t.Run("clear drops cached entries", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		_, cache := runner.ensureQuota()
		cache.Set("fetch.page", map[string]string{"url": "https://example.com/a"}, "<html>a</html>")
		cache.Set("fetch.page", map[string]string{"url": "https://example.com/b"}, "<html>b</html>")

		if err := runApp(t, runner, "cache", "clear"); err != nil {
			t.Fatalf("cache clear failed: %v", err)
		}

		if !strings.Contains(output.String(), "2 entries dropped") {
			t.Errorf("expected drop count, got %q", output.String())
		}
		if got := cache.Stats().Entries; got != 0 {
			t.Errorf("expected empty cache, got %d entries", got)
		}
	})

	t.Run("prune reports removed entries", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runApp(t, runner, "cache", "prune"); err != nil {
			t.Fatalf("cache prune failed: %v", err)
		}
		if !strings.Contains(output.String(), "Pruned 0 expired cache entries") {
			t.Errorf("expected prune count, got %q", output.String())
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Run("creates config and database", func(t *testing.T) {
		tmpDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tmpDir)
		defer tu.MustChdir(t, originalDir)

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runApp(t, runner, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(tmpDir, "config.toml"))
		tu.AssertFileExists(t, filepath.Join(tmpDir, "scout.db"))

		out := output.String()
		if !strings.Contains(out, "✓ Configuration ready") || !strings.Contains(out, "✓ Database ready") {
			t.Errorf("expected setup confirmation, got:\n%s", out)
		}
	})

	t.Run("reuses an existing config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tmpDir)
		defer tu.MustChdir(t, originalDir)

		configPath := filepath.Join(tmpDir, "config.toml")
		if err := shared.CreateConfigFile(configPath); err != nil {
			t.Fatalf("seed config: %v", err)
		}
		before := tu.MustReadFile(t, configPath)

		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		if err := runApp(t, runner, "setup", "--config", configPath); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if after := tu.MustReadFile(t, configPath); after != before {
			t.Error("expected existing config to be left untouched")
		}
	})
}
