package fetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	stealth "github.com/jonfriesen/playwright-go-stealth"
	"github.com/playwright-community/playwright-go"

	"github.com/desertthunder/scout/internal/shared"
)

// userAgentPool rotates identities across browser contexts. All entries are
// current desktop Chrome or Firefox builds.
var userAgentPool = []string{
	defaultUserAgent,
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
}

var viewportPool = []Viewport{
	{Width: 1920, Height: 1080},
	{Width: 1536, Height: 864},
	{Width: 1366, Height: 768},
}

var launchArgs = []string{
	"--disable-gpu",
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--disable-blink-features=AutomationControlled",
	"--disable-features=IsolateOrigins,site-per-process",
}

const scrollToBottomJS = `window.scrollTo(0, document.documentElement.scrollHeight)`

// Browser renders pages through a shared headless Chromium. The browser
// launches lazily on first use; each fetch gets a fresh context with its own
// user agent and viewport.
type Browser struct {
	logger *log.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser

	// randInt picks identities from the rotation pools. Swappable so tests
	// are deterministic.
	randInt func(n int) int
}

// NewBrowser creates the shared renderer. Chromium is not launched until
// the first rendered fetch.
func NewBrowser(logger *log.Logger) *Browser {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Browser{
		logger:  logger.With("component", "browser"),
		randInt: rand.IntN,
	}
}

// ensure launches Chromium once. Install is a no-op when the driver and
// browsers are already present.
func (b *Browser) ensure() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil && b.browser.IsConnected() {
		return nil
	}

	if err := playwright.Install(); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     launchArgs,
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.pw = pw
	b.browser = browser
	b.logger.Debug("chromium launched")
	return nil
}

// Close shuts down the browser and the playwright driver.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.pw = nil
	}
	return firstErr
}

// newPage opens an isolated browser context and navigates it to pageURL.
// The caller owns the returned context and must close it.
func (b *Browser) newPage(ctx context.Context, pageURL string, opts RenderOptions) (playwright.BrowserContext, playwright.Page, int, error) {
	if err := b.ensure(); err != nil {
		return nil, nil, 0, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = userAgentPool[b.randInt(len(userAgentPool))]
	}
	viewport := opts.Viewport
	if viewport == nil {
		viewport = &viewportPool[b.randInt(len(viewportPool))]
	}

	browserCtx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(userAgent),
		Viewport:          &playwright.Size{Width: viewport.Width, Height: viewport.Height},
		JavaScriptEnabled: playwright.Bool(!opts.DisableJavaScript),
		Locale:            playwright.String("en-US"),
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, nil, 0, fmt.Errorf("failed to create page: %w", err)
	}

	if opts.Stealth {
		if err := stealth.Inject(page); err != nil {
			b.logger.Warn("stealth injection failed", "error", err)
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		page.SetDefaultTimeout(float64(time.Until(deadline).Milliseconds()))
	}

	response, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		browserCtx.Close()
		return nil, nil, 0, wrapFetchErr(ctx, pageURL, err)
	}

	status := 200
	if response != nil {
		status = response.Status()
	}

	if err := sleepCtx(ctx, settleDuration(opts.SettleMS)); err != nil {
		browserCtx.Close()
		return nil, nil, 0, wrapFetchErr(ctx, pageURL, err)
	}

	return browserCtx, page, status, nil
}

// Render fetches a page and returns the DOM after settling and the
// requested scroll steps.
func (b *Browser) Render(ctx context.Context, pageURL string, opts RenderOptions) (*Result, error) {
	browserCtx, page, status, err := b.newPage(ctx, pageURL, opts)
	if err != nil {
		return nil, err
	}
	defer browserCtx.Close()

	settle := settleDuration(opts.SettleMS)
	for range opts.ScrollSteps {
		if _, err := page.Evaluate(scrollToBottomJS); err != nil {
			return nil, wrapFetchErr(ctx, pageURL, err)
		}
		if err := sleepCtx(ctx, settle); err != nil {
			return nil, wrapFetchErr(ctx, pageURL, err)
		}
	}

	body, err := page.Content()
	if err != nil {
		return nil, wrapFetchErr(ctx, pageURL, err)
	}

	if err := ClassifyResponse(status, 0, body); err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	return &Result{Status: status, Body: body, FinalURL: page.URL()}, nil
}

// OpenSession navigates to a page and hands back a live session for
// incremental scroll-and-extract loops.
func (b *Browser) OpenSession(ctx context.Context, pageURL string, opts RenderOptions) (Session, error) {
	browserCtx, page, status, err := b.newPage(ctx, pageURL, opts)
	if err != nil {
		return nil, err
	}

	if err := ClassifyResponse(status, 0, ""); err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("open %s: %w", pageURL, err)
	}

	return &browserSession{
		browserCtx: browserCtx,
		page:       page,
		settle:     settleDuration(opts.SettleMS),
	}, nil
}

type browserSession struct {
	browserCtx playwright.BrowserContext
	page       playwright.Page
	settle     time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (s *browserSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := s.page.Content()
	if err != nil {
		return "", wrapFetchErr(ctx, s.page.URL(), err)
	}
	return body, nil
}

func (s *browserSession) ScrollBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Evaluate(scrollToBottomJS); err != nil {
		return wrapFetchErr(ctx, s.page.URL(), err)
	}
	return sleepCtx(ctx, s.settle)
}

func (s *browserSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browserCtx.Close()
	})
	return s.closeErr
}

func settleDuration(settleMS int) time.Duration {
	if settleMS <= 0 {
		settleMS = DefaultSettleMS
	}
	return time.Duration(settleMS) * time.Millisecond
}
