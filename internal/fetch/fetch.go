// Package fetch retrieves web pages for the discovery pipeline.
//
// The [Fetcher] interface is the outbound port: a plain HTTP fetch, a
// rendered fetch through a headless browser, and long-lived render sessions
// for pages that load results incrementally. [Client] is the production
// implementation. [StrategyFetcher] layers the escalation ladder on top of
// any Fetcher: plain HTTP first, then progressively heavier browser
// strategies when a page blocks or needs JavaScript.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/scout/internal/shared"
)

// Strategy identifies one rung of the escalation ladder.
type Strategy int

const (
	StrategyPlain Strategy = iota
	StrategyHeadless
	StrategyHeadlessScroll
	StrategyHeadlessStealth
)

// Per-strategy attempt timeouts. Heavier strategies get more time.
const (
	PlainTimeout    = 5 * time.Second
	HeadlessTimeout = 10 * time.Second
	ScrollTimeout   = 15 * time.Second
	StealthTimeout  = 20 * time.Second
)

// StrategyCooldown separates consecutive attempts against the same URL.
const StrategyCooldown = time.Second

// DefaultSettleMS is how long a rendered page gets to finish painting after
// navigation or a scroll step.
const DefaultSettleMS = 500

func (s Strategy) String() string {
	switch s {
	case StrategyPlain:
		return "plain"
	case StrategyHeadless:
		return "headless"
	case StrategyHeadlessScroll:
		return "headless_scroll"
	case StrategyHeadlessStealth:
		return "headless_stealth"
	default:
		return "unknown"
	}
}

// Timeout returns the attempt budget for the strategy.
func (s Strategy) Timeout() time.Duration {
	switch s {
	case StrategyPlain:
		return PlainTimeout
	case StrategyHeadless:
		return HeadlessTimeout
	case StrategyHeadlessScroll:
		return ScrollTimeout
	case StrategyHeadlessStealth:
		return StealthTimeout
	default:
		return HeadlessTimeout
	}
}

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// RenderOptions tune a rendered fetch. Zero values mean: no scrolling,
// default settle, a user agent and viewport picked from the rotation pool,
// JavaScript on, stealth off.
type RenderOptions struct {
	ScrollSteps       int
	SettleMS          int
	UserAgent         string
	Viewport          *Viewport
	DisableJavaScript bool
	Stealth           bool
}

// Result is a successfully retrieved page.
type Result struct {
	Status   int
	Body     string
	FinalURL string
}

// Hints let callers skip ladder rungs they know will fail. RequireJS skips
// the plain strategy; StartAt jumps to a later rung directly.
type Hints struct {
	StartAt   Strategy
	RequireJS bool
}

// Fetcher is the page-retrieval port consumed by the harvester and the
// enrichment sources.
type Fetcher interface {
	// FetchPlain retrieves a page over plain HTTP. The context deadline
	// bounds the whole request.
	FetchPlain(ctx context.Context, pageURL string) (*Result, error)

	// FetchRendered retrieves a page through a headless browser, returning
	// the DOM as rendered after settling and optional scrolling.
	FetchRendered(ctx context.Context, pageURL string, opts RenderOptions) (*Result, error)

	// OpenSession navigates to a page and keeps it alive for incremental
	// scroll-and-extract loops. The caller must Close the session.
	OpenSession(ctx context.Context, pageURL string, opts RenderOptions) (Session, error)
}

// Session is a live rendered page.
type Session interface {
	// Content returns the current DOM serialized to HTML.
	Content(ctx context.Context) (string, error)

	// ScrollBottom scrolls to the bottom of the page and waits for new
	// content to settle.
	ScrollBottom(ctx context.Context) error

	Close() error
}

// RateLimitError carries the upstream Retry-After delay so retry loops can
// honor it instead of their own backoff.
type RateLimitError struct {
	After time.Duration
}

func (e *RateLimitError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.After)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return shared.ErrRateLimited }

// RetryAfter extracts the upstream-requested delay from an error chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.After > 0 {
		return rle.After, true
	}
	return 0, false
}

// blockMarkers are body substrings that mean the page is an anti-bot
// interstitial even when the status is 200.
var blockMarkers = []string{
	"detected unusual traffic",
	"/recaptcha/",
	"g-recaptcha",
	"are you a robot",
	"captcha-delivery",
	"cf-challenge",
}

// ClassifyResponse maps a response to the pipeline error taxonomy. A nil
// return means the page is usable.
func ClassifyResponse(status int, retryAfter time.Duration, body string) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("status %d: %w", status, shared.ErrBlocked)
	case status == 404 || status == 410:
		return fmt.Errorf("status %d: %w", status, shared.ErrNotFound)
	case status == 429:
		return fmt.Errorf("status 429: %w", &RateLimitError{After: retryAfter})
	case status >= 500:
		return fmt.Errorf("status %d: %w", status, shared.ErrUpstream)
	}

	lower := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("anti-bot interstitial (%q): %w", marker, shared.ErrBlocked)
		}
	}
	return nil
}

// wrapFetchErr translates transport failures into pipeline error kinds.
// Deadline expiry becomes a Timeout, caller cancellation stays a
// cancellation, everything else is transient.
func wrapFetchErr(ctx context.Context, pageURL string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("fetch %s: %w", pageURL, shared.ErrTimeout)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("fetch %s: %w", pageURL, shared.ErrCancelled)
	default:
		return fmt.Errorf("fetch %s: %v: %w", pageURL, err, shared.ErrTransient)
	}
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
