// Spotify enrichment source.
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyWebURL   = "https://open.spotify.com"

	spotifySearchLimit = 5
	spotifyMaxTracks   = 3
)

// Monthly listener counts are not in the public API; they are scraped from
// the artist's open.spotify.com page, where they appear either as embedded
// JSON or as rendered text.
var (
	monthlyListenersJSONRe = regexp.MustCompile(`"monthlyListeners":(\d+)`)
	monthlyListenersTextRe = regexp.MustCompile(`(?i)([\d,.]+[KMB]?)\s*monthly\s*listeners?`)
)

type spotifyFollowers struct {
	Total int64 `json:"total"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Genres    []string         `json:"genres"`
	Followers spotifyFollowers `json:"followers"`
	Images    []SpotifyImage   `json:"images"`
	URI       string           `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// SpotifySource resolves artists against the Spotify catalog using the
// client credentials flow and scrapes monthly listeners from the public
// artist page.
type SpotifySource struct {
	deps       Deps
	httpClient *http.Client
	apiBase    string
	webBase    string
}

// NewSpotifySource builds a source authenticated via client credentials.
func NewSpotifySource(clientID, clientSecret string, deps Deps) (*SpotifySource, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify client id and secret: %w", shared.ErrMissingCredentials)
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}

	return &SpotifySource{
		deps:       deps,
		httpClient: config.Client(context.Background()),
		apiBase:    spotifyBaseURL,
		webBase:    spotifyWebURL,
	}, nil
}

func (s *SpotifySource) Name() string {
	return "spotify"
}

func (s *SpotifySource) Timeout() time.Duration {
	return SpotifyTimeout
}

// Eligible is true for any named seed: search only needs the artist name.
func (s *SpotifySource) Eligible(seed *models.ArtistProfile) bool {
	return seed != nil && strings.TrimSpace(seed.Name) != ""
}

// Enrich resolves the seed to a catalog artist and fills identity, genres,
// follower counts, avatar, and top track titles. Monthly listener scraping
// is best effort: its failure never fails the source.
func (s *SpotifySource) Enrich(ctx context.Context, seed *models.ArtistProfile) (*Result, error) {
	artist, err := s.resolveArtist(ctx, seed)
	if err != nil {
		return nil, err
	}

	partial := &models.ArtistProfile{
		Name:      seed.Name,
		SpotifyID: artist.ID,
		Genres:    artist.Genres,
	}
	if len(artist.Images) > 0 {
		partial.AvatarURL = artist.Images[0].URL
	}
	if artist.Followers.Total > 0 {
		partial.SetFollowerCount(models.CountSpotifyFollowers, artist.Followers.Total)
	}

	if listeners, ok := s.monthlyListeners(ctx, artist.ID); ok {
		partial.SetFollowerCount(models.CountSpotifyMonthlyListeners, listeners)
	}

	tracks, err := s.topTracks(ctx, artist.ID)
	if err != nil {
		s.deps.logger().Debug("spotify top tracks unavailable", "artist", artist.ID, "error", err)
	}

	return &Result{Partial: partial, TopTracks: tracks}, nil
}

// resolveArtist searches the catalog and picks the best match: an exact
// normalized-name hit wins, otherwise the most-followed candidate.
func (s *SpotifySource) resolveArtist(ctx context.Context, seed *models.ArtistProfile) (*SpotifyArtist, error) {
	if seed.SpotifyID != "" {
		return s.artistByID(ctx, seed.SpotifyID)
	}

	cacheParams := map[string]string{"q": models.NormalizeName(seed.Name)}
	if hit, ok := s.deps.cached("spotify.search", cacheParams); ok {
		if artist, ok := hit.(*SpotifyArtist); ok {
			return artist, nil
		}
	}

	if err := s.deps.charge("spotify.search"); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=artist&limit=%d", url.QueryEscape(seed.Name), spotifySearchLimit)

	var response struct {
		Artists struct {
			Items []SpotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := s.doRequest(ctx, "GET", endpoint, &response); err != nil {
		return nil, err
	}
	if len(response.Artists.Items) == 0 {
		return nil, fmt.Errorf("no catalog match for %q: %w", seed.Name, shared.ErrNotFound)
	}

	want := models.NormalizeName(seed.Name)
	best := &response.Artists.Items[0]
	for i := range response.Artists.Items {
		candidate := &response.Artists.Items[i]
		if models.NormalizeName(candidate.Name) == want {
			best = candidate
			break
		}
		if candidate.Followers.Total > best.Followers.Total {
			best = candidate
		}
	}

	s.deps.cache("spotify.search", cacheParams, best)
	return best, nil
}

func (s *SpotifySource) artistByID(ctx context.Context, id string) (*SpotifyArtist, error) {
	cacheParams := map[string]string{"id": id}
	if hit, ok := s.deps.cached("spotify.artist", cacheParams); ok {
		if artist, ok := hit.(*SpotifyArtist); ok {
			return artist, nil
		}
	}

	if err := s.deps.charge("spotify.artist"); err != nil {
		return nil, err
	}

	var artist SpotifyArtist
	endpoint := fmt.Sprintf("/artists/%s", url.PathEscape(id))
	if err := s.doRequest(ctx, "GET", endpoint, &artist); err != nil {
		return nil, err
	}

	s.deps.cache("spotify.artist", cacheParams, &artist)
	return &artist, nil
}

// topTracks returns up to three top track titles for the US market.
func (s *SpotifySource) topTracks(ctx context.Context, artistID string) ([]string, error) {
	cacheParams := map[string]string{"id": artistID, "view": "top_tracks"}
	if hit, ok := s.deps.cached("spotify.artist", cacheParams); ok {
		if titles, ok := hit.([]string); ok {
			return titles, nil
		}
	}

	if err := s.deps.charge("spotify.top_tracks"); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=US", url.PathEscape(artistID))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, "GET", endpoint, &response); err != nil {
		return nil, err
	}

	titles := make([]string, 0, spotifyMaxTracks)
	for _, track := range response.Tracks {
		if track.Name == "" {
			continue
		}
		titles = append(titles, track.Name)
		if len(titles) == spotifyMaxTracks {
			break
		}
	}

	s.deps.cache("spotify.artist", cacheParams, titles)
	return titles, nil
}

// monthlyListeners scrapes the public artist page. Failures are swallowed;
// the count is a bonus signal, not a requirement.
func (s *SpotifySource) monthlyListeners(ctx context.Context, artistID string) (int64, bool) {
	if s.deps.Fetcher == nil {
		return 0, false
	}

	pageURL := s.webBase + "/artist/" + url.PathEscape(artistID)
	result, err := s.deps.Fetcher.Fetch(ctx, pageURL, fetch.Hints{})
	if err != nil {
		s.deps.logger().Debug("monthly listeners page unavailable", "artist", artistID, "error", err)
		return 0, false
	}

	if m := monthlyListenersJSONRe.FindStringSubmatch(result.Body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok && count > 0 {
			return count, true
		}
	}
	if m := monthlyListenersTextRe.FindStringSubmatch(result.Body); m != nil {
		if count, ok := parseAbbrevCount(m[1]); ok && count > 0 {
			return count, true
		}
	}
	return 0, false
}

// doRequest performs an authenticated GET against the Spotify API and
// decodes the JSON response into result.
func (s *SpotifySource) doRequest(ctx context.Context, method, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.apiBase+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("spotify request: %w", shared.ErrTimeout)
		}
		return fmt.Errorf("spotify request: %w", shared.ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &fetch.RateLimitError{After: retryAfterHeader(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("spotify API status %d: %w", resp.StatusCode, shared.ErrBlocked)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("spotify API status %d: %w", resp.StatusCode, shared.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("spotify API status %d: %w", resp.StatusCode, shared.ErrUpstream)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func retryAfterHeader(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
