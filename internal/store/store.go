// Package store persists discovered artists and session journals.
//
// [Store] is the persistence port the pipeline writes through. [SQLite] is
// the production implementation backed by mattn/go-sqlite3 with the schema
// owned by the shared migration runner.
package store

import (
	"context"

	"github.com/desertthunder/scout/internal/models"
)

// IdentifierField names the columns the deduplicator may look an artist up
// by. NormalizedName is an exact match on the canonical form, never fuzzy.
type IdentifierField string

const (
	ByYouTubeChannelID IdentifierField = "youtube_channel_id"
	BySpotifyID        IdentifierField = "spotify_id"
	ByInstagramHandle  IdentifierField = "instagram_handle"
	ByTikTokHandle     IdentifierField = "tiktok_handle"
	ByNormalizedName   IdentifierField = "normalized_name"
)

// LookupOrder is the sequence the deduplicator probes identifiers in,
// strongest first.
var LookupOrder = []IdentifierField{
	ByYouTubeChannelID,
	BySpotifyID,
	ByInstagramHandle,
	ByTikTokHandle,
	ByNormalizedName,
}

// Store is the persistence port.
type Store interface {
	// FindArtistBy looks up one artist by a single identifier. Absence is
	// reported as a wrapped shared.ErrNotFound.
	FindArtistBy(ctx context.Context, field IdentifierField, value string) (*models.ArtistProfile, error)

	// UpsertArtist inserts a new artist or atomically merges into the
	// existing row with the same fingerprint. The stored row is returned.
	UpsertArtist(ctx context.Context, profile *models.ArtistProfile) (*models.ArtistProfile, error)

	// ListArtists returns the most recently discovered artists.
	ListArtists(ctx context.Context, limit int) ([]*models.ArtistProfile, error)

	// RecordSession writes a session snapshot, idempotent by session id.
	RecordSession(ctx context.Context, session *models.Session) error

	// GetSession returns one session snapshot or a wrapped
	// shared.ErrNotFound.
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// ListSessions returns the most recently started sessions.
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)

	// AppendSessionEvent journals one progress event. The session must have
	// been recorded first.
	AppendSessionEvent(ctx context.Context, sessionID string, event *models.ProgressEvent) error

	// SessionEvents returns a session's journal in append order.
	SessionEvents(ctx context.Context, sessionID string, limit int) ([]*models.ProgressEvent, error)
}
