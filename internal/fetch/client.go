package fetch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/desertthunder/scout/internal/shared"
)

// Process-wide concurrency caps. Headless contexts are expensive, plain
// HTTP requests are cheap.
const (
	DefaultHeadlessLimit = 4
	DefaultPlainLimit    = 32
)

// ClientOptions configure the production fetcher.
type ClientOptions struct {
	HeadlessLimit int
	PlainLimit    int
	Logger        *log.Logger
}

// Client is the production [Fetcher]: plain HTTP through a pooled
// transport, rendered fetches through a shared headless browser, both
// behind weighted semaphores so concurrent sessions cannot oversubscribe
// the host.
type Client struct {
	plain   *PlainClient
	browser *Browser
	logger  *log.Logger

	plainSem    *semaphore.Weighted
	headlessSem *semaphore.Weighted
}

// NewClient builds the production fetcher. Zero limits fall back to the
// defaults.
func NewClient(opts ClientOptions) *Client {
	if opts.HeadlessLimit <= 0 {
		opts.HeadlessLimit = DefaultHeadlessLimit
	}
	if opts.PlainLimit <= 0 {
		opts.PlainLimit = DefaultPlainLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		plain:       NewPlainClient(),
		browser:     NewBrowser(opts.Logger),
		logger:      opts.Logger.With("component", "fetch"),
		plainSem:    semaphore.NewWeighted(int64(opts.PlainLimit)),
		headlessSem: semaphore.NewWeighted(int64(opts.HeadlessLimit)),
	}
}

// FetchPlain implements [Fetcher].
func (c *Client) FetchPlain(ctx context.Context, pageURL string) (*Result, error) {
	if err := c.plainSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for plain slot: %w", err)
	}
	defer c.plainSem.Release(1)

	return c.plain.Fetch(ctx, pageURL)
}

// FetchRendered implements [Fetcher].
func (c *Client) FetchRendered(ctx context.Context, pageURL string, opts RenderOptions) (*Result, error) {
	if err := c.headlessSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for headless slot: %w", err)
	}
	defer c.headlessSem.Release(1)

	return c.browser.Render(ctx, pageURL, opts)
}

// OpenSession implements [Fetcher]. The session holds a headless slot until
// it is closed.
func (c *Client) OpenSession(ctx context.Context, pageURL string, opts RenderOptions) (Session, error) {
	if err := c.headlessSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for headless slot: %w", err)
	}

	session, err := c.browser.OpenSession(ctx, pageURL, opts)
	if err != nil {
		c.headlessSem.Release(1)
		return nil, err
	}

	return &slotSession{Session: session, release: func() { c.headlessSem.Release(1) }}, nil
}

// Close shuts down the shared browser.
func (c *Client) Close() error {
	return c.browser.Close()
}

// slotSession releases its headless slot exactly once on close.
type slotSession struct {
	Session
	release func()
}

func (s *slotSession) Close() error {
	err := s.Session.Close()
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return err
}
