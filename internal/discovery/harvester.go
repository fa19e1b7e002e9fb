package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// Harvest loop limits.
const (
	// DefaultMaxVideos is the hard ceiling on video ids examined by one
	// harvest, regardless of how much the surface keeps loading.
	DefaultMaxVideos = 1000

	// DefaultMaxNoProgress is how many consecutive fruitless scroll steps
	// end the harvest.
	DefaultMaxNoProgress = 3

	// maxScrollErrors is how many consecutive failed scrolls end the
	// harvest gracefully with whatever was already emitted.
	maxScrollErrors = 2
)

// Video ids are 11-character URL-safe tokens reachable through three URL
// shapes.
var videoIDRes = []*regexp.Regexp{
	regexp.MustCompile(`watch\?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`),
}

// excludeRe drops machine-generated and derivative uploads before they
// enter the pipeline. Word-bounded so "ai" never matches inside a word.
var excludeRe = regexp.MustCompile(`(?i)\b(?:ai|suno|generated|udio|cover|remix|artificial intelligence|ai[ -]generated|ai music)\b`)

var (
	channelIDRe  = regexp.MustCompile(`/channel/([A-Za-z0-9_-]{10,30})`)
	channelURLRe = regexp.MustCompile(`^/(?:@[A-Za-z0-9_.-]+|c/[^/\s]+|user/[^/\s]+)`)
	viewCountRe  = regexp.MustCompile(`([\d.,]+[KMB]?)\s+views`)
	uploadHintRe = regexp.MustCompile(`(?i)(\d+\s+(?:second|minute|hour|day|week|month|year)s?\s+ago)`)
)

// rendererSelector matches result items on the desktop, compact, and plain
// HTML variants of the search surface.
const rendererSelector = "ytd-video-renderer, ytd-compact-video-renderer, div.video-renderer"

// HarvesterOptions configure one harvest pass.
type HarvesterOptions struct {
	Fetcher  fetch.Fetcher
	Composer URLComposer
	Logger   *log.Logger

	Query   string
	Filters map[string]string

	// Host makes relative candidate links absolute and seeds the default
	// composer. Empty means [DefaultSearchHost].
	Host string

	// Limit is this pass's emission target. The batch being parsed is
	// always drained in full, so the pass can finish slightly over. Zero
	// means unbounded.
	Limit int

	// Seen carries examined video ids across passes so a restarted
	// harvest only emits new candidates. Nil starts fresh.
	Seen map[string]struct{}

	MaxVideos     int
	MaxNoProgress int
}

// Harvester turns one search surface into a lazy, finite stream of
// candidate videos. It is single-use: a new pass needs a new Harvester.
type Harvester struct {
	fetcher  fetch.Fetcher
	composer URLComposer
	logger   *log.Logger

	query   string
	filters map[string]string
	host    string

	limit         int
	maxVideos     int
	maxNoProgress int

	seen    map[string]struct{}
	emitted int
	err     error
}

func NewHarvester(opts HarvesterOptions) *Harvester {
	if opts.Host == "" {
		opts.Host = DefaultSearchHost
	}
	if opts.Composer == nil {
		opts.Composer = NewTokenComposer(opts.Host)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Seen == nil {
		opts.Seen = make(map[string]struct{})
	}
	if opts.MaxVideos <= 0 {
		opts.MaxVideos = DefaultMaxVideos
	}
	if opts.MaxNoProgress <= 0 {
		opts.MaxNoProgress = DefaultMaxNoProgress
	}

	return &Harvester{
		fetcher:       opts.Fetcher,
		composer:      opts.Composer,
		logger:        opts.Logger.With("component", "harvester"),
		query:         opts.Query,
		filters:       opts.Filters,
		host:          strings.TrimRight(opts.Host, "/"),
		limit:         opts.Limit,
		maxVideos:     opts.MaxVideos,
		maxNoProgress: opts.MaxNoProgress,
		seen:          opts.Seen,
	}
}

// Harvest opens the search surface and streams candidates in DOM order.
// The channel is unbuffered, so production is paced by the consumer. After
// the channel closes, Err reports why the harvest ended early and Emitted
// how many candidates were delivered.
func (h *Harvester) Harvest(ctx context.Context) <-chan models.CandidateVideo {
	out := make(chan models.CandidateVideo)
	go h.run(ctx, out)
	return out
}

// Err is valid once the stream has closed. A nil error means the harvest
// ended by exhaustion or by reaching its bounds.
func (h *Harvester) Err() error { return h.err }

// Emitted is valid once the stream has closed.
func (h *Harvester) Emitted() int { return h.emitted }

func (h *Harvester) run(ctx context.Context, out chan<- models.CandidateVideo) {
	defer close(out)

	searchURL, err := h.composer.Compose(h.query, h.filters)
	if err != nil {
		h.err = err
		return
	}

	session, err := h.fetcher.OpenSession(ctx, searchURL, fetch.RenderOptions{SettleMS: fetch.DefaultSettleMS})
	if err != nil {
		h.err = fmt.Errorf("open search surface: %w", err)
		return
	}
	defer session.Close()

	h.logger.Debug("harvest started", "url", searchURL, "limit", h.limit)

	content, err := session.Content(ctx)
	if err != nil {
		h.err = fmt.Errorf("read search surface: %w", err)
		return
	}
	if err := h.emitBatch(ctx, out, content); err != nil {
		h.err = err
		return
	}
	if h.bounded() {
		return
	}

	noProgress, scrollErrs := 0, 0
	for {
		if err := session.ScrollBottom(ctx); err != nil {
			if ctx.Err() != nil {
				h.err = fmt.Errorf("harvest: %w", shared.ErrCancelled)
				return
			}
			scrollErrs++
			noProgress++
			h.logger.Warn("scroll failed", "error", err, "consecutive", scrollErrs)
			if scrollErrs >= maxScrollErrors || noProgress >= h.maxNoProgress {
				return
			}
			continue
		}
		scrollErrs = 0

		content, err := session.Content(ctx)
		if err != nil {
			if ctx.Err() != nil {
				h.err = fmt.Errorf("harvest: %w", shared.ErrCancelled)
				return
			}
			noProgress++
			if noProgress >= h.maxNoProgress {
				return
			}
			continue
		}

		before := h.emitted
		if err := h.emitBatch(ctx, out, content); err != nil {
			h.err = err
			return
		}
		if h.emitted > before {
			noProgress = 0
		} else {
			noProgress++
		}

		if h.bounded() || noProgress >= h.maxNoProgress {
			return
		}
	}
}

// bounded reports whether the pass limit or the hard examination ceiling
// has been reached.
func (h *Harvester) bounded() bool {
	if h.limit > 0 && h.emitted >= h.limit {
		return true
	}
	return len(h.seen) >= h.maxVideos
}

func (h *Harvester) emitBatch(ctx context.Context, out chan<- models.CandidateVideo, html string) error {
	for _, video := range h.parse(html) {
		select {
		case out <- video:
			h.emitted++
		case <-ctx.Done():
			return fmt.Errorf("harvest: %w", shared.ErrCancelled)
		}
	}
	return nil
}

// parse extracts unseen candidates from the current DOM in document order,
// dropping excluded uploads before they reach the pipe.
func (h *Harvester) parse(html string) []models.CandidateVideo {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		h.logger.Warn("unparseable search surface", "error", err)
		return nil
	}

	var batch []models.CandidateVideo
	collect := func(video models.CandidateVideo, ok bool) {
		if !ok {
			return
		}
		if _, dup := h.seen[video.VideoID]; dup {
			return
		}
		h.seen[video.VideoID] = struct{}{}
		if excludeRe.MatchString(video.Title) || excludeRe.MatchString(video.Description) {
			h.logger.Debug("excluded upload", "video_id", video.VideoID, "title", video.Title)
			return
		}
		batch = append(batch, video)
	}

	renderers := doc.Find(rendererSelector)
	if renderers.Length() > 0 {
		renderers.Each(func(_ int, renderer *goquery.Selection) {
			collect(h.extractRenderer(renderer))
		})
		return batch
	}

	// No structured result items: fall back to bare video anchors.
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		id := VideoIDFromURL(href)
		if id == "" {
			return
		}
		title := strings.TrimSpace(anchor.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(anchor.Text())
		}
		collect(models.CandidateVideo{
			VideoID: id,
			URL:     h.absoluteURL(href),
			Title:   title,
		}, true)
	})
	return batch
}

// extractRenderer pulls one candidate out of a result item.
func (h *Harvester) extractRenderer(sel *goquery.Selection) (models.CandidateVideo, bool) {
	var video models.CandidateVideo

	sel.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, _ := anchor.Attr("href")
		if id := VideoIDFromURL(href); id != "" {
			video.VideoID = id
			video.URL = h.absoluteURL(href)
			return false
		}
		return true
	})
	if video.VideoID == "" {
		return video, false
	}

	video.Title = h.extractTitle(sel)

	sel.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, _ := anchor.Attr("href")
		if m := channelIDRe.FindStringSubmatch(href); m != nil {
			video.ChannelID = m[1]
			video.ChannelURL = h.absoluteURL(href)
			return false
		}
		if channelURLRe.MatchString(href) {
			video.ChannelURL = h.absoluteURL(href)
			return false
		}
		return true
	})

	video.Description = strings.TrimSpace(sel.Find(".metadata-snippet-text, #description-text, .description-snippet").First().Text())

	text := sel.Text()
	if m := viewCountRe.FindStringSubmatch(text); m != nil {
		video.ViewCount = parseViewCount(m[1])
	}
	if m := uploadHintRe.FindStringSubmatch(text); m != nil {
		video.UploadHint = m[1]
	}

	return video, true
}

// extractTitle prefers the title anchor's attribute (complete even when the
// visible text is ellipsized), then its text, then any titled anchor.
func (h *Harvester) extractTitle(sel *goquery.Selection) string {
	titled := sel.Find("#video-title").First()
	if title := strings.TrimSpace(titled.AttrOr("title", "")); title != "" {
		return title
	}
	if title := strings.TrimSpace(titled.Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(sel.Find("a[title]").First().AttrOr("title", "")); title != "" {
		return title
	}
	return strings.TrimSpace(sel.Find("h3").First().Text())
}

func (h *Harvester) absoluteURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return h.host + href
	}
	return href
}

// VideoIDFromURL extracts the 11-character video id from any recognized
// video URL shape, or returns the empty string.
func VideoIDFromURL(raw string) string {
	for _, re := range videoIDRes {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

// parseViewCount reads counts as the surface renders them: "12,345" or an
// abbreviated magnitude like "1.2M".
func parseViewCount(raw string) int64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0
	}

	multiplier := float64(1)
	switch raw[len(raw)-1] {
	case 'K':
		multiplier, raw = 1e3, raw[:len(raw)-1]
	case 'M':
		multiplier, raw = 1e6, raw[:len(raw)-1]
	case 'B':
		multiplier, raw = 1e9, raw[:len(raw)-1]
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0
	}
	return int64(value * multiplier)
}
