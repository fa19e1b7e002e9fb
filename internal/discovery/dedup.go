package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/store"
)

// Verdict is the deduplicator's decision for one profile.
type Verdict struct {
	Duplicate bool
	StoredID  string // id of the already-stored artist, when known
}

// Deduplicator rejects artists already accepted in this session or already
// present in the store. In-session identity lives in a key set; the store
// is probed read-through by each identifier in [store.LookupOrder], and a
// missing identifier simply falls through to the next.
type Deduplicator struct {
	store  store.Store
	logger *log.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDeduplicator(st store.Store, logger *log.Logger) *Deduplicator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Deduplicator{
		store:  st,
		logger: logger.With("component", "dedup"),
		seen:   make(map[string]struct{}),
	}
}

// CheckAndRegister decides whether a profile is a fresh artist. Fresh
// profiles have their identity keys registered so later candidates for the
// same artist come back as duplicates. The name-only check requires an
// exact normalized match; fuzzier matching is left to the store's merge.
func (d *Deduplicator) CheckAndRegister(ctx context.Context, profile *models.ArtistProfile) (Verdict, error) {
	keys := identityKeys(profile)

	d.mu.Lock()
	for _, key := range keys {
		if _, ok := d.seen[key]; ok {
			d.mu.Unlock()
			return Verdict{Duplicate: true}, nil
		}
	}
	d.mu.Unlock()

	for _, field := range store.LookupOrder {
		value := lookupValue(profile, field)
		if value == "" {
			continue
		}
		existing, err := d.store.FindArtistBy(ctx, field, value)
		switch {
		case err == nil:
			d.logger.Debug("duplicate of stored artist",
				"artist", profile.Name, "field", string(field), "stored_id", existing.ID)
			return Verdict{Duplicate: true, StoredID: existing.ID}, nil
		case errors.Is(err, shared.ErrNotFound):
			continue
		default:
			return Verdict{}, fmt.Errorf("dedup lookup by %s: %w", field, err)
		}
	}

	d.mu.Lock()
	for _, key := range keys {
		d.seen[key] = struct{}{}
	}
	d.mu.Unlock()
	return Verdict{}, nil
}

// identityKeys lists every identity the session should remember for a
// profile: each strong identifier plus the normalized name.
func identityKeys(p *models.ArtistProfile) []string {
	keys := make([]string, 0, 5)
	if p.YouTubeChannelID != "" {
		keys = append(keys, "yt:"+p.YouTubeChannelID)
	}
	if p.SpotifyID != "" {
		keys = append(keys, "sp:"+p.SpotifyID)
	}
	if p.InstagramHandle != "" {
		keys = append(keys, "ig:"+strings.ToLower(p.InstagramHandle))
	}
	if p.TikTokHandle != "" {
		keys = append(keys, "tt:"+strings.ToLower(p.TikTokHandle))
	}
	return append(keys, "name:"+models.NormalizeName(p.Name))
}

func lookupValue(p *models.ArtistProfile, field store.IdentifierField) string {
	switch field {
	case store.ByYouTubeChannelID:
		return p.YouTubeChannelID
	case store.BySpotifyID:
		return p.SpotifyID
	case store.ByInstagramHandle:
		return p.InstagramHandle
	case store.ByTikTokHandle:
		return p.TikTokHandle
	case store.ByNormalizedName:
		return models.NormalizeName(p.Name)
	}
	return ""
}
