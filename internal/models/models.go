package models

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultTargetCount is applied when a request leaves target_count unset.
const DefaultTargetCount = 50

// SessionState tracks a discovery session through its lifecycle.
type SessionState string

const (
	StatePending   SessionState = "pending"
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
	StateCancelled SessionState = "cancelled"
)

// Terminal reports whether the state is sticky: completed, failed, and
// cancelled sessions never transition again.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// SessionRequest is the immutable input that starts a discovery session.
type SessionRequest struct {
	Query        string            `json:"query"`
	TargetCount  int               `json:"target_count"`
	Filters      map[string]string `json:"filters,omitempty"`
	MaxCostUnits int               `json:"max_cost_units,omitempty"`
}

// Validate checks the request before a session is allocated. TargetCount
// zero means "use the default" and is filled in by the orchestrator.
func (r SessionRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	if r.TargetCount < 0 {
		return fmt.Errorf("target_count must be positive, got %d", r.TargetCount)
	}
	if r.MaxCostUnits < 0 {
		return fmt.Errorf("max_cost_units must be positive, got %d", r.MaxCostUnits)
	}
	return nil
}

// SessionCounters are the observable counts of a session's progress.
type SessionCounters struct {
	VideosSeen      int `json:"videos_seen"`
	VideosAccepted  int `json:"videos_accepted"`
	ArtistsEnriched int `json:"artists_enriched"`
	ArtistsStored   int `json:"artists_stored"`
	BelowThreshold  int `json:"below_threshold"`
	CostSpent       int `json:"cost_spent"`
}

// SessionSummary is carried by the terminal progress event and persisted
// with the session record.
type SessionSummary struct {
	SessionCounters
	BudgetExhausted bool   `json:"budget_exhausted"`
	DurationMS      int64  `json:"duration_ms"`
	ErrorKind       string `json:"error_kind,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// Session is a point-in-time snapshot of a discovery session. The runtime
// aggregate lives in the orchestrator; this is the copy handed to callers
// and the store.
type Session struct {
	ID              string          `json:"id"`
	Request         SessionRequest  `json:"request"`
	State           SessionState    `json:"state"`
	Counters        SessionCounters `json:"counters"`
	BudgetExhausted bool            `json:"budget_exhausted,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         time.Time       `json:"ended_at,omitzero"`
}

// CandidateVideo is a search-result item extracted from the harvest surface.
// Two candidates with equal VideoID are the same video.
type CandidateVideo struct {
	VideoID     string `json:"video_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	ChannelID   string `json:"channel_id,omitempty"`
	ChannelURL  string `json:"channel_url,omitempty"`
	Description string `json:"description_snippet,omitempty"`
	ViewCount   int64  `json:"view_count,omitempty"`
	UploadHint  string `json:"upload_hint,omitempty"`
}

// SocialLinks maps recognized platforms to profile URLs.
type SocialLinks struct {
	Spotify   string `json:"spotify,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Website   string `json:"website,omitempty"`
}

// Empty reports whether no platform link is set.
func (s SocialLinks) Empty() bool {
	return s == SocialLinks{}
}

// Merge fills empty platform slots from other, never replacing an existing
// link.
func (s *SocialLinks) Merge(other SocialLinks) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&s.Spotify, other.Spotify)
	fill(&s.Instagram, other.Instagram)
	fill(&s.TikTok, other.TikTok)
	fill(&s.Twitter, other.Twitter)
	fill(&s.Facebook, other.Facebook)
	fill(&s.YouTube, other.YouTube)
	fill(&s.Website, other.Website)
}

// Recognized follower count keys.
const (
	CountYouTubeSubscribers      = "youtube_subscribers"
	CountSpotifyFollowers        = "spotify_followers"
	CountSpotifyMonthlyListeners = "spotify_monthly_listeners"
	CountInstagramFollowers      = "instagram_followers"
	CountTikTokFollowers         = "tiktok_followers"
	CountTikTokLikes             = "tiktok_likes"
)

// ArtistProfile accumulates identity and reach data for one discovered
// artist. It is created at extraction, mutated only by the enrichment
// coordinator, frozen before scoring, and handed to the store.
type ArtistProfile struct {
	ID                string           `json:"id,omitempty"`
	Name              string           `json:"name"`
	YouTubeChannelID  string           `json:"youtube_channel_id,omitempty"`
	YouTubeChannelURL string           `json:"youtube_channel_url,omitempty"`
	SpotifyID         string           `json:"spotify_id,omitempty"`
	InstagramHandle   string           `json:"instagram_handle,omitempty"`
	TikTokHandle      string           `json:"tiktok_handle,omitempty"`
	TwitterHandle     string           `json:"twitter_handle,omitempty"`
	Website           string           `json:"website,omitempty"`
	Email             string           `json:"email,omitempty"`
	Bio               string           `json:"bio,omitempty"`
	Location          string           `json:"location,omitempty"`
	AvatarURL         string           `json:"avatar_url,omitempty"`
	Genres            []string         `json:"genres,omitempty"`
	LyricThemes       []string         `json:"lyric_themes,omitempty"`
	FollowerCounts    map[string]int64 `json:"follower_counts,omitempty"`
	EnrichmentScore   float64          `json:"enrichment_score"`
	BelowThreshold    bool             `json:"below_threshold,omitempty"`
	DiscoveredAt      time.Time        `json:"discovered_at,omitzero"`
	UpdatedAt         time.Time        `json:"updated_at,omitzero"`
}

// Validate enforces the profile invariants the store also checks: non-empty
// name, bounded score, non-negative counts.
func (p *ArtistProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("artist name must not be empty")
	}
	if p.EnrichmentScore < 0 || p.EnrichmentScore > 1 {
		return fmt.Errorf("enrichment_score %f out of [0,1]", p.EnrichmentScore)
	}
	for key, count := range p.FollowerCounts {
		if count < 0 {
			return fmt.Errorf("follower count %s is negative: %d", key, count)
		}
	}
	return nil
}

// FollowerCount returns the count for key, zero when unset.
func (p *ArtistProfile) FollowerCount(key string) int64 {
	return p.FollowerCounts[key]
}

// SetFollowerCount records a count, allocating the map on first use.
func (p *ArtistProfile) SetFollowerCount(key string, count int64) {
	if p.FollowerCounts == nil {
		p.FollowerCounts = make(map[string]int64)
	}
	p.FollowerCounts[key] = count
}

// Clone returns a deep copy. Enrichment sources merge into fresh copies so
// a failed merge never corrupts the original.
func (p *ArtistProfile) Clone() *ArtistProfile {
	clone := *p
	clone.Genres = slices.Clone(p.Genres)
	clone.LyricThemes = slices.Clone(p.LyricThemes)
	if p.FollowerCounts != nil {
		clone.FollowerCounts = maps.Clone(p.FollowerCounts)
	}
	return &clone
}

// Fingerprint returns the artist identity key: the first available strong
// identifier in priority order, else the normalized name.
//
// The key is deliberately a single identifier, not a join of every one the
// profile carries. A joined key changes whenever enrichment discovers a new
// identifier, which would orphan the row an earlier session stored; the
// highest-priority id stays stable as a profile grows, and the Deduplicator
// looks up every identity field independently, so cross-identifier
// duplicates are still caught before the store is consulted by fingerprint.
func (p *ArtistProfile) Fingerprint() string {
	switch {
	case p.YouTubeChannelID != "":
		return "yt:" + p.YouTubeChannelID
	case p.SpotifyID != "":
		return "sp:" + p.SpotifyID
	case p.InstagramHandle != "":
		return "ig:" + strings.ToLower(p.InstagramHandle)
	case p.TikTokHandle != "":
		return "tt:" + strings.ToLower(p.TikTokHandle)
	default:
		return "name:" + NormalizeName(p.Name)
	}
}

var foldCaser = cases.Fold()

// NormalizeName canonicalizes an artist name for identity comparison:
// case-folded, punctuation stripped, whitespace collapsed.
func NormalizeName(name string) string {
	folded := foldCaser.String(name)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// LyricAnalysis is the analyzer's verdict for one song's lyrics.
type LyricAnalysis struct {
	Themes    []string `json:"themes,omitempty"`
	Sentiment float64  `json:"sentiment"`
	Language  string   `json:"language,omitempty"`
}
