// Package enrich fills discovered artist profiles from upstream sources.
//
// Each [Source] contributes a partial profile: Spotify resolves identity,
// genres, and follower counts, the YouTube channel page yields subscriber
// counts and social links, Instagram and TikTok add reach numbers, and the
// lyrics source derives themes from song texts. The [Coordinator] fans the
// sources out in parallel, retries transient failures with jittered
// backoff, and merges the partials deterministically.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/quota"
	"github.com/desertthunder/scout/internal/shared"
)

// Per-source enrichment budgets.
const (
	SpotifyTimeout   = 20 * time.Second
	InstagramTimeout = 15 * time.Second
	TikTokTimeout    = 15 * time.Second
	YouTubeTimeout   = 15 * time.Second
	LyricsTimeout    = 30 * time.Second
)

// OutcomeStatus is the closed set of per-source results.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// SourceOutcome reports one source's contribution to an enrichment pass.
type SourceOutcome struct {
	Source     string        `json:"source"`
	Status     OutcomeStatus `json:"status"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Attempts   int           `json:"attempts"`
	DurationMS int64         `json:"duration_ms"`
}

// Result is one source's findings: a partial profile to merge, plus top
// track titles when the source knows them (the lyrics stage consumes
// those).
type Result struct {
	Partial   *models.ArtistProfile
	TopTracks []string
}

// Source enriches a seed profile from one upstream.
type Source interface {
	Name() string
	Timeout() time.Duration

	// Eligible reports whether the seed carries the identifier this source
	// needs. Ineligible sources are skipped, not failed.
	Eligible(seed *models.ArtistProfile) bool

	// Enrich returns a partial profile with whatever this source found.
	// Errors are classified through the shared sentinel taxonomy.
	Enrich(ctx context.Context, seed *models.ArtistProfile) (*Result, error)
}

// PageFetcher retrieves public pages, escalating fetch strategies as
// needed. *fetch.StrategyFetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string, hints fetch.Hints) (*fetch.Result, error)
}

// Deps are the collaborators shared by all sources.
type Deps struct {
	Fetcher PageFetcher
	Cache   *quota.Cache
	Budget  *quota.Budget
	Logger  *log.Logger
}

func (d Deps) logger() *log.Logger {
	if d.Logger == nil {
		return shared.NewLogger(nil)
	}
	return d.Logger
}

// charge spends quota for op, translating denial into a rate-limit error.
func (d Deps) charge(op string) error {
	if d.Budget == nil {
		return nil
	}
	if !d.Budget.TryAcquire(op, 1) {
		return fmt.Errorf("quota denied for %s: %w", op, shared.ErrRateLimited)
	}
	return nil
}

func (d Deps) cached(op string, params map[string]string) (any, bool) {
	if d.Cache == nil {
		return nil, false
	}
	return d.Cache.Get(op, params)
}

func (d Deps) cache(op string, params map[string]string, value any) {
	if d.Cache != nil {
		d.Cache.Set(op, params, value)
	}
}
