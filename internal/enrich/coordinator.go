package enrich

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// Retry policy for transient source failures.
const (
	DefaultMaxRetries  = 2
	DefaultBackoffBase = time.Second
)

// CoordinatorOptions configure source fan-out and retry behavior.
type CoordinatorOptions struct {
	// Sources are the identity sources, run in parallel. Their order fixes
	// the merge order, so two passes over the same inputs agree.
	Sources []Source

	// Lyrics runs after the identity wave so it can consume the top
	// tracks found there. Nil disables the stage.
	Lyrics *LyricsSource

	Logger      *log.Logger
	MaxRetries  int
	BackoffBase time.Duration
}

// Coordinator runs every eligible source for a seed profile and merges the
// partials into one enriched profile.
//
// A per-source lock serializes calls to the same upstream across
// concurrent enrichments; different sources still proceed in parallel.
type Coordinator struct {
	sources     []Source
	lyrics      *LyricsSource
	logger      *log.Logger
	maxRetries  int
	backoffBase time.Duration
	sourceMu    map[string]*sync.Mutex

	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}

	mu := make(map[string]*sync.Mutex, len(opts.Sources)+1)
	for _, src := range opts.Sources {
		mu[src.Name()] = &sync.Mutex{}
	}
	if opts.Lyrics != nil {
		mu[opts.Lyrics.Name()] = &sync.Mutex{}
	}

	return &Coordinator{
		sources:     opts.Sources,
		lyrics:      opts.Lyrics,
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		sourceMu:    mu,
		sleep:       sleepContext,
		randFloat:   rand.Float64,
	}
}

// Enrich returns the merged profile and one outcome per configured source.
// Failed sources contribute nothing but never abort the pass; the error is
// non-nil only when ctx was cancelled mid-pass, in which case the partial
// merge should be discarded.
func (c *Coordinator) Enrich(ctx context.Context, seed *models.ArtistProfile) (*models.ArtistProfile, []SourceOutcome, error) {
	if seed == nil {
		return nil, nil, fmt.Errorf("nil seed profile: %w", shared.ErrInvalidInput)
	}

	merged := seed.Clone()
	results := make([]*Result, len(c.sources))
	outcomes := make([]SourceOutcome, len(c.sources))

	var wg sync.WaitGroup
	for i, src := range c.sources {
		if !src.Eligible(seed) {
			outcomes[i] = SourceOutcome{Source: src.Name(), Status: OutcomeSkipped}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], outcomes[i] = c.runSource(ctx, src.Name(), src.Timeout(), func(sctx context.Context) (*Result, error) {
				return src.Enrich(sctx, seed)
			})
		}()
	}
	wg.Wait()

	var topTracks []string
	for i := range c.sources {
		if results[i] == nil {
			continue
		}
		merged = models.MergeProfiles(merged, results[i].Partial)
		topTracks = append(topTracks, results[i].TopTracks...)
	}

	if c.lyrics != nil {
		outcome := SourceOutcome{Source: c.lyrics.Name(), Status: OutcomeSkipped}
		if len(topTracks) > 0 && ctx.Err() == nil {
			var result *Result
			result, outcome = c.runSource(ctx, c.lyrics.Name(), c.lyrics.Timeout(), func(sctx context.Context) (*Result, error) {
				return c.lyrics.Analyze(sctx, merged, topTracks)
			})
			if result != nil {
				merged = models.MergeProfiles(merged, result.Partial)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	if ctx.Err() != nil {
		return merged, outcomes, fmt.Errorf("enrichment interrupted: %w", shared.ErrCancelled)
	}
	return merged, outcomes, nil
}

// runSource drives one source through the retry loop under its lock and
// per-attempt timeout.
func (c *Coordinator) runSource(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (*Result, error)) (*Result, SourceOutcome) {
	if mu := c.sourceMu[name]; mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	started := time.Now()
	var result *Result
	var err error
	attempts := 0

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := c.sleep(ctx, c.backoffDelay(attempt, err)); sleepErr != nil {
				break
			}
		}
		attempts++

		sctx, cancel := context.WithTimeout(ctx, timeout)
		result, err = fn(sctx)
		cancel()

		if err == nil {
			break
		}
		if !shared.Retryable(err) || ctx.Err() != nil {
			break
		}
	}

	outcome := SourceOutcome{
		Source:     name,
		Attempts:   attempts,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.ErrorKind = shared.ErrorKind(err)
		c.logger.Debug("enrichment source failed",
			"source", name, "attempts", attempts, "kind", outcome.ErrorKind, "error", err)
		return nil, outcome
	}

	outcome.Status = OutcomeSucceeded
	return result, outcome
}

// backoffDelay grows exponentially from the base with jitter in the
// 75-125% band. An upstream Retry-After longer than the computed delay
// takes precedence.
func (c *Coordinator) backoffDelay(attempt int, lastErr error) time.Duration {
	base := c.backoffBase << (attempt - 1)
	jitter := 0.75 + 0.5*c.randFloat()
	delay := time.Duration(float64(base) * jitter)
	if after, ok := fetch.RetryAfter(lastErr); ok && after > delay {
		delay = after
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
