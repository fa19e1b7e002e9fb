package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scout/internal/analyze"
	"github.com/desertthunder/scout/internal/discovery"
	"github.com/desertthunder/scout/internal/enrich"
	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
	"github.com/desertthunder/scout/internal/quota"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/store"
	"github.com/urfave/cli/v3"
)

// engine is the slice of the discovery orchestrator the commands depend on.
// *discovery.Orchestrator satisfies it.
type engine interface {
	Start(ctx context.Context, req models.SessionRequest) (string, error)
	StartStream(ctx context.Context, req models.SessionRequest) (string, *progress.Subscription, error)
	Cancel(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (*models.Session, error)
	Subscribe(id string) (*progress.Subscription, error)
	Unsubscribe(id string, subscriber int)
	ActiveCount() int
	Close(ctx context.Context) error
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The discovery stack is built lazily: commands that only read the store
// never pay for a headless browser, and `setup` works before any stack
// exists at all.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	db      *sql.DB
	store   store.Store
	cache   *quota.Cache
	limiter *quota.Limiter
	fetcher *fetch.Client
	engine  engine
}

// RunnerOpts contains configuration options for creating a Runner. Store and
// Engine are seams for tests; left nil, the Runner assembles the production
// stack on first use.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	Store  store.Store
	Engine engine
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		store:  opts.Store,
		engine: opts.Engine,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		discoverCommand, serveCommand, sessionsCommand, cacheCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the runner's logger. The TUI uses this to redirect logs to
// a file so they do not interfere with rendering.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// openStore opens the SQLite database, runs migrations, and memoizes the
// store across commands.
func (r *Runner) openStore() (store.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.store = store.New(db, r.logger)
	return r.store, nil
}

// ensureQuota builds the limiter and response cache on first use. Shared by
// buildEngine and the cache command, which reads them without paying for
// the rest of the stack.
func (r *Runner) ensureQuota() (*quota.Limiter, *quota.Cache) {
	if r.cache == nil {
		r.cache = quota.NewCache(0)
	}
	if r.limiter == nil {
		r.limiter = quota.NewLimiter(quota.Options{
			DailyBudget: r.config.Quota.DailyBudget,
			YouTubeRPM:  r.config.Quota.YouTubeRPM,
			SpotifyRPM:  r.config.Quota.SpotifyRPM,
			Logger:      r.logger,
		})
	}
	return r.limiter, r.cache
}

// buildEngine assembles the production discovery stack: quota limiter and
// response cache, the fetch client with its escalation ladder, the
// enrichment coordinator factory, and the orchestrator on top.
func (r *Runner) buildEngine() (engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	st, err := r.openStore()
	if err != nil {
		return nil, err
	}

	cfg := r.config
	limiter, cache := r.ensureQuota()
	if err := limiter.StartResetSchedule(func() { cache.PruneExpired() }); err != nil {
		return nil, fmt.Errorf("failed to start quota reset schedule: %w", err)
	}

	r.fetcher = fetch.NewClient(fetch.ClientOptions{
		HeadlessLimit: cfg.Fetch.HeadlessLimit,
		PlainLimit:    cfg.Fetch.PlainLimit,
		Logger:        r.logger,
	})
	pages := fetch.NewStrategyFetcher(fetch.StrategyOptions{
		Fetcher: r.fetcher,
		Cache:   cache,
		Logger:  r.logger,
	})

	var analyzer analyze.Analyzer = analyze.NewKeywordAnalyzer()
	if cfg.Credentials.Analyzer.APIKey != "" {
		remote, err := analyze.NewRemoteAnalyzer(cfg.Credentials.Analyzer.Endpoint, cfg.Credentials.Analyzer.APIKey)
		if err != nil {
			r.logger.Warn("remote analyzer unavailable, falling back to keyword analyzer", "error", err)
		} else {
			analyzer = remote
		}
	}

	enricher := func(budget *quota.Budget) discovery.Enricher {
		deps := enrich.Deps{Fetcher: pages, Cache: cache, Budget: budget, Logger: r.logger}

		sources := []enrich.Source{}
		if cfg.Credentials.Spotify.ClientID != "" && cfg.Credentials.Spotify.ClientSecret != "" {
			spotify, err := enrich.NewSpotifySource(cfg.Credentials.Spotify.ClientID, cfg.Credentials.Spotify.ClientSecret, deps)
			if err != nil {
				r.logger.Warn("spotify source unavailable", "error", err)
			} else {
				sources = append(sources, spotify)
			}
		}
		sources = append(sources,
			enrich.NewYouTubeChannelSource(deps),
			enrich.NewInstagramSource(deps),
			enrich.NewTikTokSource(deps),
		)

		return enrich.NewCoordinator(enrich.CoordinatorOptions{
			Sources: sources,
			Lyrics:  enrich.NewLyricsSource(analyzer, cfg.Fetch.LyricsHost, deps),
			Logger:  r.logger,
		})
	}

	r.engine = discovery.NewOrchestrator(discovery.Options{
		Store:            st,
		Fetcher:          r.fetcher,
		Limiter:          limiter,
		Enricher:         enricher,
		Logger:           r.logger,
		SearchHost:       cfg.Fetch.SearchHost,
		MaxConcurrent:    cfg.Sessions.MaxConcurrent,
		DefaultTarget:    cfg.Sessions.DefaultTarget,
		WorkerPool:       cfg.Sessions.WorkerPool,
		OverFetch:        cfg.Sessions.OverFetch,
		QualityThreshold: cfg.Sessions.QualityThreshold,
	})
	return r.engine, nil
}

// Close winds down everything buildEngine and openStore created, in
// dependency order: sessions first, then the fetch browser, then the
// database.
func (r *Runner) Close(ctx context.Context) error {
	var first error

	if r.engine != nil {
		if err := r.engine.Close(ctx); err != nil {
			r.logger.Warn("error closing engine", "error", err)
			first = err
		}
	}
	if r.limiter != nil {
		r.limiter.StopResetSchedule()
	}
	if r.fetcher != nil {
		if err := r.fetcher.Close(); err != nil {
			r.logger.Warn("error closing fetcher", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("error closing database", "error", err)
			if first == nil {
				first = err
			}
		}
	}

	return first
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
