package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/scout/internal/quota"
	"github.com/desertthunder/scout/internal/shared"
)

// scriptedFetcher returns a canned outcome per strategy and records every
// attempt it sees.
type scriptedFetcher struct {
	mu       sync.Mutex
	attempts []Strategy

	plainResult    *Result
	plainErr       error
	renderedResult *Result
	renderedErr    error
	stealthErr     error
}

func (f *scriptedFetcher) FetchPlain(ctx context.Context, pageURL string) (*Result, error) {
	f.record(StrategyPlain)
	return f.plainResult, f.plainErr
}

func (f *scriptedFetcher) FetchRendered(ctx context.Context, pageURL string, opts RenderOptions) (*Result, error) {
	switch {
	case opts.Stealth:
		f.record(StrategyHeadlessStealth)
		if f.stealthErr != nil {
			return nil, f.stealthErr
		}
	case opts.ScrollSteps > 0:
		f.record(StrategyHeadlessScroll)
	default:
		f.record(StrategyHeadless)
	}
	return f.renderedResult, f.renderedErr
}

func (f *scriptedFetcher) OpenSession(ctx context.Context, pageURL string, opts RenderOptions) (Session, error) {
	return nil, fmt.Errorf("not used in these tests: %w", shared.ErrNotImplemented)
}

func (f *scriptedFetcher) record(s Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, s)
}

func (f *scriptedFetcher) seen() []Strategy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Strategy(nil), f.attempts...)
}

func newTestStrategy(fetcher Fetcher, cache *quota.Cache) *StrategyFetcher {
	return NewStrategyFetcher(StrategyOptions{
		Fetcher:  fetcher,
		Cache:    cache,
		Cooldown: time.Millisecond,
	})
}

func TestStrategyPlainSuccess(t *testing.T) {
	fake := &scriptedFetcher{plainResult: &Result{Status: 200, Body: "ok"}}
	sf := newTestStrategy(fake, nil)

	result, err := sf.Fetch(context.Background(), "https://example.com", Hints{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Body != "ok" {
		t.Errorf("unexpected body %q", result.Body)
	}
	if seen := fake.seen(); len(seen) != 1 || seen[0] != StrategyPlain {
		t.Errorf("expected single plain attempt, got %v", seen)
	}
}

func TestStrategyEscalatesOnBlock(t *testing.T) {
	fake := &scriptedFetcher{
		plainErr:       fmt.Errorf("status 403: %w", shared.ErrBlocked),
		renderedResult: &Result{Status: 200, Body: "rendered"},
	}
	sf := newTestStrategy(fake, nil)

	result, err := sf.Fetch(context.Background(), "https://example.com", Hints{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Body != "rendered" {
		t.Errorf("unexpected body %q", result.Body)
	}

	seen := fake.seen()
	if len(seen) != 2 || seen[0] != StrategyPlain || seen[1] != StrategyHeadless {
		t.Errorf("expected plain then headless, got %v", seen)
	}
}

func TestStrategyRequireJSSkipsPlain(t *testing.T) {
	fake := &scriptedFetcher{renderedResult: &Result{Status: 200, Body: "rendered"}}
	sf := newTestStrategy(fake, nil)

	if _, err := sf.Fetch(context.Background(), "https://example.com", Hints{RequireJS: true}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	seen := fake.seen()
	if len(seen) != 1 || seen[0] != StrategyHeadless {
		t.Errorf("expected headless only, got %v", seen)
	}
}

func TestStrategyStartAt(t *testing.T) {
	fake := &scriptedFetcher{renderedResult: &Result{Status: 200, Body: "rendered"}}
	sf := newTestStrategy(fake, nil)

	if _, err := sf.Fetch(context.Background(), "https://example.com", Hints{StartAt: StrategyHeadlessScroll}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	seen := fake.seen()
	if len(seen) != 1 || seen[0] != StrategyHeadlessScroll {
		t.Errorf("expected scroll rung first, got %v", seen)
	}
}

func TestStrategyNotFoundFailsFast(t *testing.T) {
	fake := &scriptedFetcher{plainErr: fmt.Errorf("status 404: %w", shared.ErrNotFound)}
	sf := newTestStrategy(fake, nil)

	_, err := sf.Fetch(context.Background(), "https://example.com/gone", Hints{})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if seen := fake.seen(); len(seen) != 1 {
		t.Errorf("not-found should not escalate, got attempts %v", seen)
	}
}

func TestStrategyExhaustedReturnsLastError(t *testing.T) {
	fake := &scriptedFetcher{
		plainErr:    fmt.Errorf("status 403: %w", shared.ErrBlocked),
		renderedErr: fmt.Errorf("status 403: %w", shared.ErrBlocked),
		stealthErr:  fmt.Errorf("still walled: %w", shared.ErrBlocked),
	}
	sf := newTestStrategy(fake, nil)

	_, err := sf.Fetch(context.Background(), "https://example.com", Hints{})
	if !errors.Is(err, shared.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}

	seen := fake.seen()
	if len(seen) != 4 {
		t.Errorf("expected all four rungs attempted, got %v", seen)
	}
	if seen[len(seen)-1] != StrategyHeadlessStealth {
		t.Errorf("expected stealth last, got %v", seen)
	}
}

func TestStrategyCancelDuringCooldown(t *testing.T) {
	fake := &scriptedFetcher{
		plainErr:    fmt.Errorf("status 403: %w", shared.ErrBlocked),
		renderedErr: fmt.Errorf("status 403: %w", shared.ErrBlocked),
	}
	sf := NewStrategyFetcher(StrategyOptions{Fetcher: fake, Cooldown: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := sf.Fetch(ctx, "https://example.com", Hints{})
	if !errors.Is(err, shared.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %v, should be prompt", elapsed)
	}
}

func TestStrategyServesFromCache(t *testing.T) {
	fake := &scriptedFetcher{plainResult: &Result{Status: 200, Body: "cached page"}}
	cache := quota.NewCache(16)
	sf := newTestStrategy(fake, cache)

	for range 3 {
		result, err := sf.Fetch(context.Background(), "https://example.com/artist", Hints{})
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if result.Body != "cached page" {
			t.Errorf("unexpected body %q", result.Body)
		}
	}

	if seen := fake.seen(); len(seen) != 1 {
		t.Errorf("expected one upstream attempt, got %v", seen)
	}
}

func TestSlotSessionReleasesOnce(t *testing.T) {
	released := 0
	session := &slotSession{
		Session: stubSession{},
		release: func() { released++ },
	}

	session.Close()
	session.Close()

	if released != 1 {
		t.Errorf("slot released %d times, want 1", released)
	}
}

type stubSession struct{}

func (stubSession) Content(ctx context.Context) (string, error) { return "", nil }
func (stubSession) ScrollBottom(ctx context.Context) error      { return nil }
func (stubSession) Close() error                                { return nil }
