// Lyrics enrichment source.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/desertthunder/scout/internal/analyze"
	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const (
	lyricsBaseURL = "https://www.musixmatch.com"

	// minLyricsChars rejects snippet-only pages before analysis.
	minLyricsChars = 100

	// maxLyricsTracks bounds how many top tracks we try per artist.
	maxLyricsTracks = 3
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Lyric pages interleave ads and attribution between verse blocks.
var lyricsJunkMarkers = []string{
	"cookie",
	"advertis",
	"writer(s)",
	"lyrics powered by",
	"add to favorites",
}

// lyricsSelectors, in preference order, match the verse containers across
// page revisions.
var lyricsSelectors = []string{
	".lyrics__content__ok",
	`[class*="lyrics__content"]`,
	".mxm-lyrics__content",
}

// LyricsSource fetches song texts for an artist's top tracks and runs
// theme analysis over the first one that yields usable lyrics.
type LyricsSource struct {
	deps     Deps
	analyzer analyze.Analyzer
	baseURL  string
}

// NewLyricsSource wires a lyrics scraper to the given analyzer. baseURL
// may be empty to use the default host.
func NewLyricsSource(analyzer analyze.Analyzer, baseURL string, deps Deps) *LyricsSource {
	if baseURL == "" {
		baseURL = lyricsBaseURL
	}
	return &LyricsSource{
		deps:     deps,
		analyzer: analyzer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (s *LyricsSource) Name() string {
	return "lyrics"
}

func (s *LyricsSource) Timeout() time.Duration {
	return LyricsTimeout
}

// Analyze walks the track titles in order and returns themes from the
// first track whose lyrics pass quality checks. Tracks that are missing
// or too thin are skipped rather than failing the stage.
func (s *LyricsSource) Analyze(ctx context.Context, seed *models.ArtistProfile, trackTitles []string) (*Result, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("lyrics analyzer: %w", shared.ErrMissingConfig)
	}
	if len(trackTitles) > maxLyricsTracks {
		trackTitles = trackTitles[:maxLyricsTracks]
	}

	var lastErr error
	for _, title := range trackTitles {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lyrics analysis interrupted: %w", shared.ErrCancelled)
		}

		text, err := s.fetchLyrics(ctx, seed.Name, title)
		if err != nil {
			if errors.Is(err, shared.ErrCancelled) {
				return nil, err
			}
			lastErr = err
			continue
		}

		analysis, err := s.analyzer.AnalyzeLyrics(ctx, text, "")
		if err != nil {
			lastErr = err
			continue
		}

		partial := &models.ArtistProfile{
			Name:        seed.Name,
			LyricThemes: analysis.Themes,
		}
		return &Result{Partial: partial}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no lyrics located for %q: %w", seed.Name, shared.ErrNotFound)
	}
	return nil, lastErr
}

func (s *LyricsSource) fetchLyrics(ctx context.Context, artist, title string) (string, error) {
	pageURL := fmt.Sprintf("%s/lyrics/%s/%s", s.baseURL, slugify(artist), slugify(title))

	result, err := s.deps.Fetcher.Fetch(ctx, pageURL, fetch.Hints{})
	if err != nil {
		return "", err
	}

	text := extractLyricsText(result.Body)
	if len(text) < minLyricsChars {
		return "", fmt.Errorf("lyrics for %q/%q too short: %w", artist, title, shared.ErrDataQuality)
	}
	return text, nil
}

// extractLyricsText pulls verse blocks out of the page and strips the
// boilerplate lines that surround them.
func extractLyricsText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var blocks []string
	for _, selector := range lyricsSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				blocks = append(blocks, text)
			}
		})
		if len(blocks) > 0 {
			break
		}
	}
	if len(blocks) == 0 {
		return ""
	}

	var lines []string
	for line := range strings.SplitSeq(strings.Join(blocks, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) <= 5 || isJunkLine(trimmed) {
			continue
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n")
}

func isJunkLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range lyricsJunkMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// slugify converts a name to the lowercase hyphenated form lyric URLs use.
func slugify(s string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}
