// TikTok enrichment source.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const tiktokBaseURL = "https://www.tiktok.com"

// TikTok serves a state blob inside the profile HTML. The og:description
// fallback covers responses that omit it.
var (
	ttFollowerRe    = regexp.MustCompile(`"followerCount":(\d+)`)
	ttHeartRe       = regexp.MustCompile(`"heart(?:Count)?":(\d+)`)
	ttSignatureRe   = regexp.MustCompile(`"signature":"((?:[^"\\]|\\.)*)"`)
	ttOGFollowersRe = regexp.MustCompile(`(?i)([\d,.]+[KMB]?)\s+Followers`)
	ttOGLikesRe     = regexp.MustCompile(`(?i)([\d,.]+[KMB]?)\s+Likes`)
)

// TikTokSource scrapes follower and like counts plus the profile bio.
type TikTokSource struct {
	deps    Deps
	baseURL string
}

func NewTikTokSource(deps Deps) *TikTokSource {
	return &TikTokSource{deps: deps, baseURL: tiktokBaseURL}
}

func (s *TikTokSource) Name() string {
	return "tiktok"
}

func (s *TikTokSource) Timeout() time.Duration {
	return TikTokTimeout
}

func (s *TikTokSource) Eligible(seed *models.ArtistProfile) bool {
	return seed != nil && seed.TikTokHandle != ""
}

func (s *TikTokSource) Enrich(ctx context.Context, seed *models.ArtistProfile) (*Result, error) {
	handle := strings.TrimPrefix(strings.ToLower(seed.TikTokHandle), "@")

	cacheParams := map[string]string{"handle": handle}
	if hit, ok := s.deps.cached("tiktok.profile", cacheParams); ok {
		if partial, ok := hit.(*models.ArtistProfile); ok {
			return &Result{Partial: partial.Clone()}, nil
		}
	}

	pageURL := s.baseURL + "/@" + handle

	result, err := s.deps.Fetcher.Fetch(ctx, pageURL, fetch.Hints{})
	if err != nil {
		return nil, err
	}
	partial := s.parseProfile(result.Body, seed, handle)

	if partial == nil {
		result, err = s.deps.Fetcher.Fetch(ctx, pageURL, fetch.Hints{StartAt: fetch.StrategyHeadless})
		if err != nil {
			return nil, err
		}
		partial = s.parseProfile(result.Body, seed, handle)
	}
	if partial == nil {
		return nil, fmt.Errorf("profile data for @%s not present: %w", handle, shared.ErrDataQuality)
	}

	s.deps.cache("tiktok.profile", cacheParams, partial.Clone())
	return &Result{Partial: partial}, nil
}

func (s *TikTokSource) parseProfile(body string, seed *models.ArtistProfile, handle string) *models.ArtistProfile {
	partial := &models.ArtistProfile{
		Name:         seed.Name,
		TikTokHandle: handle,
	}

	found := false
	og := metaContent(body, "og:description")

	if m := ttFollowerRe.FindStringSubmatch(body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok {
			partial.SetFollowerCount(models.CountTikTokFollowers, count)
			found = true
		}
	} else if m := ttOGFollowersRe.FindStringSubmatch(og); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok {
			partial.SetFollowerCount(models.CountTikTokFollowers, count)
			found = true
		}
	}

	if m := ttHeartRe.FindStringSubmatch(body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok {
			partial.SetFollowerCount(models.CountTikTokLikes, count)
			found = true
		}
	} else if m := ttOGLikesRe.FindStringSubmatch(og); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok {
			partial.SetFollowerCount(models.CountTikTokLikes, count)
			found = true
		}
	}

	if m := ttSignatureRe.FindStringSubmatch(body); m != nil {
		if bio := strings.TrimSpace(decodeJSONString(m[1])); bio != "" {
			partial.Bio = bio
			found = true
		}
	}

	if !found {
		return nil
	}
	return partial
}
