package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/quota"
	"github.com/desertthunder/scout/internal/shared"
)

// ladder is the escalation order. Each rung is heavier and slower than the
// one before it.
var ladder = []Strategy{
	StrategyPlain,
	StrategyHeadless,
	StrategyHeadlessScroll,
	StrategyHeadlessStealth,
}

// renderOptionsFor returns the render tuning for a ladder rung.
func renderOptionsFor(s Strategy) RenderOptions {
	switch s {
	case StrategyHeadlessScroll:
		return RenderOptions{ScrollSteps: 3, SettleMS: DefaultSettleMS}
	case StrategyHeadlessStealth:
		return RenderOptions{Stealth: true, SettleMS: 800}
	default:
		return RenderOptions{SettleMS: DefaultSettleMS}
	}
}

// StrategyOptions configure a [StrategyFetcher].
type StrategyOptions struct {
	Fetcher Fetcher
	Cache   *quota.Cache
	Logger  *log.Logger

	// Cooldown between attempts against the same URL. Zero means the
	// standard one second.
	Cooldown time.Duration
}

// StrategyFetcher walks the escalation ladder for one URL: plain HTTP
// first, then default headless, headless with scrolling, and finally
// stealth headless. Each rung gets its own timeout, attempts are separated
// by a cooldown, and successes land in the page cache.
type StrategyFetcher struct {
	fetcher  Fetcher
	cache    *quota.Cache
	logger   *log.Logger
	cooldown time.Duration
}

// NewStrategyFetcher builds the ladder on top of any [Fetcher].
func NewStrategyFetcher(opts StrategyOptions) *StrategyFetcher {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = StrategyCooldown
	}
	return &StrategyFetcher{
		fetcher:  opts.Fetcher,
		cache:    opts.Cache,
		logger:   opts.Logger.With("component", "strategy"),
		cooldown: opts.Cooldown,
	}
}

// Fetch retrieves a page, escalating through the ladder until a rung
// succeeds. NotFound fails fast: a page that does not exist will not appear
// under a heavier browser. The last rung's error is returned when the whole
// ladder fails.
func (f *StrategyFetcher) Fetch(ctx context.Context, pageURL string, hints Hints) (*Result, error) {
	cacheParams := map[string]string{"url": pageURL}
	if f.cache != nil {
		if cached, ok := f.cache.Get("fetch.page", cacheParams); ok {
			if result, ok := cached.(*Result); ok {
				return result, nil
			}
		}
	}

	start := hints.StartAt
	if hints.RequireJS && start == StrategyPlain {
		start = StrategyHeadless
	}
	if start > StrategyHeadlessStealth {
		start = StrategyHeadlessStealth
	}

	var lastErr error
	for _, strategy := range ladder {
		if strategy < start {
			continue
		}
		if lastErr != nil {
			if err := sleepCtx(ctx, f.cooldown); err != nil {
				return nil, fmt.Errorf("fetch %s: %w", pageURL, shared.ErrCancelled)
			}
			f.logger.Debug("escalating fetch strategy",
				"url", pageURL, "strategy", strategy.String(), "previous_error", lastErr)
		}

		result, err := f.attempt(ctx, strategy, pageURL)
		if err == nil {
			if f.cache != nil {
				f.cache.Set("fetch.page", cacheParams, result)
			}
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, shared.ErrCancelled)
		}
		if errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}

		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("fetch %s: no strategy available: %w", pageURL, shared.ErrUpstream)
	}
	return nil, lastErr
}

// attempt runs one rung under its own timeout.
func (f *StrategyFetcher) attempt(ctx context.Context, strategy Strategy, pageURL string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, strategy.Timeout())
	defer cancel()

	if strategy == StrategyPlain {
		return f.fetcher.FetchPlain(attemptCtx, pageURL)
	}
	return f.fetcher.FetchRendered(attemptCtx, pageURL, renderOptionsFor(strategy))
}
