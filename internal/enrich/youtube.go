// YouTube channel enrichment source.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const youtubeBaseURL = "https://www.youtube.com"

// Channel pages embed their metadata as JSON inside the initial HTML, so a
// plain fetch is usually enough. The rendered-text regex is the fallback
// for pages that only carry the formatted count.
var (
	ytSubscriberJSONRe = regexp.MustCompile(`"subscriberCount":"?(\d+)"?`)
	ytSubscriberTextRe = regexp.MustCompile(`(?i)([\d,.]+[KMB]?)\s+subscribers`)
	ytDescriptionRe    = regexp.MustCompile(`"description":"((?:[^"\\]|\\.)*)"`)
	ytChannelIDRe      = regexp.MustCompile(`"(?:channelId|externalId)":"(UC[A-Za-z0-9_-]{22})"`)
)

// YouTubeChannelSource scrapes a channel's about page for subscriber
// counts, the channel description, and outbound social links.
type YouTubeChannelSource struct {
	deps    Deps
	baseURL string
}

func NewYouTubeChannelSource(deps Deps) *YouTubeChannelSource {
	return &YouTubeChannelSource{deps: deps, baseURL: youtubeBaseURL}
}

func (s *YouTubeChannelSource) Name() string {
	return "youtube"
}

func (s *YouTubeChannelSource) Timeout() time.Duration {
	return YouTubeTimeout
}

func (s *YouTubeChannelSource) Eligible(seed *models.ArtistProfile) bool {
	if seed == nil {
		return false
	}
	return seed.YouTubeChannelID != "" || seed.YouTubeChannelURL != "" || strings.TrimSpace(seed.Name) != ""
}

func (s *YouTubeChannelSource) Enrich(ctx context.Context, seed *models.ArtistProfile) (*Result, error) {
	candidates, cacheKey := s.aboutURLs(seed)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no channel reference on seed: %w", shared.ErrInvalidInput)
	}

	cacheParams := map[string]string{"channel": cacheKey}
	if hit, ok := s.deps.cached("youtube.channel", cacheParams); ok {
		if partial, ok := hit.(*models.ArtistProfile); ok {
			return &Result{Partial: partial.Clone()}, nil
		}
	}

	if err := s.deps.charge("youtube.channels"); err != nil {
		return nil, err
	}

	var lastErr error
	for _, aboutURL := range candidates {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("channel lookup interrupted: %w", shared.ErrCancelled)
		}

		result, err := s.deps.Fetcher.Fetch(ctx, aboutURL, fetch.Hints{})
		if err != nil {
			lastErr = err
			continue
		}

		partial := s.parseChannelPage(result.Body, seed)
		s.deps.cache("youtube.channel", cacheParams, partial.Clone())
		return &Result{Partial: partial}, nil
	}
	return nil, lastErr
}

// aboutURLs returns the about pages to try, strongest reference first. A
// seed with only a name falls back to the handle cascade the site supports
// for vanity URLs.
func (s *YouTubeChannelSource) aboutURLs(seed *models.ArtistProfile) (urls []string, cacheKey string) {
	if seed.YouTubeChannelURL != "" {
		base := strings.TrimRight(seed.YouTubeChannelURL, "/")
		return []string{base + "/about"}, strings.ToLower(base)
	}
	if seed.YouTubeChannelID != "" {
		return []string{s.baseURL + "/channel/" + url.PathEscape(seed.YouTubeChannelID) + "/about"}, seed.YouTubeChannelID
	}

	compact := compactName(seed.Name)
	if compact == "" {
		return nil, ""
	}
	return []string{
		s.baseURL + "/@" + compact + "/about",
		s.baseURL + "/c/" + compact + "/about",
		s.baseURL + "/user/" + compact + "/about",
	}, "name:" + compact
}

// compactName collapses an artist name to the lowercase alphanumeric form
// vanity channel URLs tend to use.
func compactName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *YouTubeChannelSource) parseChannelPage(body string, seed *models.ArtistProfile) *models.ArtistProfile {
	partial := &models.ArtistProfile{
		Name:              seed.Name,
		YouTubeChannelID:  seed.YouTubeChannelID,
		YouTubeChannelURL: seed.YouTubeChannelURL,
	}

	if partial.YouTubeChannelID == "" {
		if m := ytChannelIDRe.FindStringSubmatch(body); m != nil {
			partial.YouTubeChannelID = m[1]
		}
	}
	if partial.YouTubeChannelURL == "" && partial.YouTubeChannelID != "" {
		partial.YouTubeChannelURL = s.baseURL + "/channel/" + partial.YouTubeChannelID
	}

	if m := ytSubscriberJSONRe.FindStringSubmatch(body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok && count > 0 {
			partial.SetFollowerCount(models.CountYouTubeSubscribers, count)
		}
	} else if m := ytSubscriberTextRe.FindStringSubmatch(body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok && count > 0 {
			partial.SetFollowerCount(models.CountYouTubeSubscribers, count)
		}
	}

	description := ""
	if m := ytDescriptionRe.FindStringSubmatch(body); m != nil {
		description = decodeJSONString(m[1])
	}
	if description != "" {
		partial.Bio = strings.TrimSpace(description)
	}

	// Outbound links on channel pages are wrapped in consent redirects.
	unwrapped := models.UnwrapRedirects(body + "\n" + description)
	links := models.ParseSocialLinks(unwrapped)
	partial.InstagramHandle = links.Instagram
	partial.TikTokHandle = links.TikTok
	partial.TwitterHandle = links.Twitter
	partial.SpotifyID = links.Spotify
	partial.Website = links.Website
	partial.Email = models.ParseEmail(description)

	return partial
}

// decodeJSONString resolves escapes in a string captured from embedded
// JSON, returning the raw text when it cannot be decoded.
func decodeJSONString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &s); err != nil {
		return raw
	}
	return s
}
