// Instagram enrichment source.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const instagramBaseURL = "https://www.instagram.com"

// Profile pages embed a JSON blob for logged-out crawlers; the og: meta
// tags survive even behind the login wall.
var (
	igFollowedByRe    = regexp.MustCompile(`"edge_followed_by":\{"count":(\d+)\}`)
	igFollowerCountRe = regexp.MustCompile(`"follower_count":(\d+)`)
	igOGFollowersRe   = regexp.MustCompile(`(?i)([\d,.]+[KMB]?)\s+Followers`)
	igBiographyRe     = regexp.MustCompile(`"biography":"((?:[^"\\]|\\.)*)"`)
	igExternalURLRe   = regexp.MustCompile(`"external_url":"((?:[^"\\]|\\.)*)"`)
	igAvatarRe        = regexp.MustCompile(`"profile_pic_url_hd":"((?:[^"\\]|\\.)*)"`)
)

// InstagramSource scrapes follower counts, the bio, and the bio link from
// a public profile page.
type InstagramSource struct {
	deps    Deps
	baseURL string
}

func NewInstagramSource(deps Deps) *InstagramSource {
	return &InstagramSource{deps: deps, baseURL: instagramBaseURL}
}

func (s *InstagramSource) Name() string {
	return "instagram"
}

func (s *InstagramSource) Timeout() time.Duration {
	return InstagramTimeout
}

func (s *InstagramSource) Eligible(seed *models.ArtistProfile) bool {
	return seed != nil && seed.InstagramHandle != ""
}

func (s *InstagramSource) Enrich(ctx context.Context, seed *models.ArtistProfile) (*Result, error) {
	handle := strings.TrimPrefix(strings.ToLower(seed.InstagramHandle), "@")

	cacheParams := map[string]string{"handle": handle}
	if hit, ok := s.deps.cached("instagram.profile", cacheParams); ok {
		if partial, ok := hit.(*models.ArtistProfile); ok {
			return &Result{Partial: partial.Clone()}, nil
		}
	}

	pageURL := s.baseURL + "/" + handle + "/"

	result, err := s.deps.Fetcher.Fetch(ctx, pageURL, fetch.Hints{})
	if err != nil {
		return nil, err
	}
	partial := s.parseProfile(result.Body, seed, handle)

	// A soft login wall returns 200 with an empty shell. Rendering the
	// page with the stealth profile usually recovers the embedded JSON.
	if partial == nil {
		result, err = s.deps.Fetcher.Fetch(ctx, pageURL, fetch.Hints{StartAt: fetch.StrategyHeadlessStealth})
		if err != nil {
			return nil, err
		}
		partial = s.parseProfile(result.Body, seed, handle)
	}
	if partial == nil {
		return nil, fmt.Errorf("profile data for @%s not present: %w", handle, shared.ErrDataQuality)
	}

	s.deps.cache("instagram.profile", cacheParams, partial.Clone())
	return &Result{Partial: partial}, nil
}

// parseProfile returns nil when the page carries no profile signal at all.
func (s *InstagramSource) parseProfile(body string, seed *models.ArtistProfile, handle string) *models.ArtistProfile {
	partial := &models.ArtistProfile{
		Name:            seed.Name,
		InstagramHandle: handle,
	}

	found := false

	if m := igFollowedByRe.FindStringSubmatch(body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok {
			partial.SetFollowerCount(models.CountInstagramFollowers, count)
			found = true
		}
	} else if m := igFollowerCountRe.FindStringSubmatch(body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok {
			partial.SetFollowerCount(models.CountInstagramFollowers, count)
			found = true
		}
	} else if og := metaContent(body, "og:description"); og != "" {
		if m := igOGFollowersRe.FindStringSubmatch(og); m != nil {
			if count, ok := parseAbbrevCount(m[1]); ok {
				partial.SetFollowerCount(models.CountInstagramFollowers, count)
				found = true
			}
		}
	}

	if m := igBiographyRe.FindStringSubmatch(body); m != nil {
		if bio := strings.TrimSpace(decodeJSONString(m[1])); bio != "" {
			partial.Bio = bio
			found = true
		}
	}

	if m := igExternalURLRe.FindStringSubmatch(body); m != nil {
		if link := decodeJSONString(m[1]); link != "" {
			links := models.ParseSocialLinks(link)
			switch {
			case links.Spotify != "":
				partial.SpotifyID = links.Spotify
			case links.TikTok != "":
				partial.TikTokHandle = links.TikTok
			default:
				partial.Website = link
			}
			found = true
		}
	}

	if m := igAvatarRe.FindStringSubmatch(body); m != nil {
		partial.AvatarURL = decodeJSONString(m[1])
	} else if img := metaContent(body, "og:image"); img != "" {
		partial.AvatarURL = img
	}

	if !found {
		return nil
	}
	return partial
}

// metaContent extracts an og: meta tag's content attribute.
func metaContent(body, property string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	selector := fmt.Sprintf(`meta[property=%q]`, property)
	return doc.Find(selector).AttrOr("content", "")
}
