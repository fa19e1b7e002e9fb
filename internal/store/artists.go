package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const artistColumns = `id, name, normalized_name, fingerprint,
	youtube_channel_id, youtube_channel_url, spotify_id, instagram_handle,
	tiktok_handle, twitter_handle, website, email, bio, location, avatar_url,
	genres, lyric_themes, follower_counts, enrichment_score, below_threshold,
	discovered_at, updated_at`

// lookupColumns maps identifier fields to their backing columns. Anything
// outside this map is rejected before it reaches SQL.
var lookupColumns = map[IdentifierField]string{
	ByYouTubeChannelID: "youtube_channel_id",
	BySpotifyID:        "spotify_id",
	ByInstagramHandle:  "instagram_handle",
	ByTikTokHandle:     "tiktok_handle",
	ByNormalizedName:   "normalized_name",
}

// FindArtistBy implements [Store].
func (s *SQLite) FindArtistBy(ctx context.Context, field IdentifierField, value string) (*models.ArtistProfile, error) {
	column, ok := lookupColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown identifier field %q: %w", field, shared.ErrInvalidInput)
	}
	if value == "" {
		return nil, fmt.Errorf("empty lookup value for %s: %w", field, shared.ErrInvalidInput)
	}

	query := fmt.Sprintf(`SELECT %s FROM artists WHERE %s = ? LIMIT 1`, artistColumns, column)
	return scanArtist(s.db.QueryRowContext(ctx, query, value))
}

// UpsertArtist implements [Store]. Insert and merge run in one transaction
// so concurrent upserts of the same artist cannot interleave.
func (s *SQLite) UpsertArtist(ctx context.Context, profile *models.ArtistProfile) (*models.ArtistProfile, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %v: %w", err, shared.ErrDataQuality)
	}

	fingerprint := profile.Fingerprint()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM artists WHERE fingerprint = ? LIMIT 1`, artistColumns)
	existing, err := scanArtist(tx.QueryRowContext(ctx, query, fingerprint))

	var stored *models.ArtistProfile
	switch {
	case err == nil:
		stored = models.MergeProfiles(existing, profile)
		stored.ID = existing.ID
		stored.UpdatedAt = now
		if err := s.updateArtist(ctx, tx, stored); err != nil {
			return nil, err
		}

	case errors.Is(err, shared.ErrNotFound):
		stored = profile.Clone()
		if stored.ID == "" {
			stored.ID = shared.GenerateID()
		}
		if stored.DiscoveredAt.IsZero() {
			stored.DiscoveredAt = now
		}
		stored.UpdatedAt = now
		if err := s.insertArtist(ctx, tx, stored, fingerprint); err != nil {
			return nil, err
		}

	default:
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit artist upsert: %w", err)
	}

	s.logger.Debug("artist upserted", "artist", stored.Name, "fingerprint", fingerprint)
	return stored, nil
}

func (s *SQLite) insertArtist(ctx context.Context, tx *sql.Tx, p *models.ArtistProfile, fingerprint string) error {
	query := `
		INSERT INTO artists (id, name, normalized_name, fingerprint,
			youtube_channel_id, youtube_channel_url, spotify_id, instagram_handle,
			tiktok_handle, twitter_handle, website, email, bio, location, avatar_url,
			genres, lyric_themes, follower_counts, enrichment_score, below_threshold,
			discovered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		p.ID,
		p.Name,
		models.NormalizeName(p.Name),
		fingerprint,
		nullable(p.YouTubeChannelID),
		nullable(p.YouTubeChannelURL),
		nullable(p.SpotifyID),
		nullable(p.InstagramHandle),
		nullable(p.TikTokHandle),
		nullable(p.TwitterHandle),
		nullable(p.Website),
		nullable(p.Email),
		nullable(p.Bio),
		nullable(p.Location),
		nullable(p.AvatarURL),
		marshalJSON(p.Genres, "[]"),
		marshalJSON(p.LyricThemes, "[]"),
		marshalJSON(p.FollowerCounts, "{}"),
		p.EnrichmentScore,
		p.BelowThreshold,
		p.DiscoveredAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}
	return nil
}

func (s *SQLite) updateArtist(ctx context.Context, tx *sql.Tx, p *models.ArtistProfile) error {
	query := `
		UPDATE artists
		SET name = ?, normalized_name = ?, fingerprint = ?,
			youtube_channel_id = ?, youtube_channel_url = ?, spotify_id = ?,
			instagram_handle = ?, tiktok_handle = ?, twitter_handle = ?,
			website = ?, email = ?, bio = ?, location = ?, avatar_url = ?,
			genres = ?, lyric_themes = ?, follower_counts = ?,
			enrichment_score = ?, below_threshold = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		p.Name,
		models.NormalizeName(p.Name),
		p.Fingerprint(),
		nullable(p.YouTubeChannelID),
		nullable(p.YouTubeChannelURL),
		nullable(p.SpotifyID),
		nullable(p.InstagramHandle),
		nullable(p.TikTokHandle),
		nullable(p.TwitterHandle),
		nullable(p.Website),
		nullable(p.Email),
		nullable(p.Bio),
		nullable(p.Location),
		nullable(p.AvatarURL),
		marshalJSON(p.Genres, "[]"),
		marshalJSON(p.LyricThemes, "[]"),
		marshalJSON(p.FollowerCounts, "{}"),
		p.EnrichmentScore,
		p.BelowThreshold,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update artist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("artist vanished during upsert: %s", p.ID)
	}
	return nil
}

// ListArtists implements [Store].
func (s *SQLite) ListArtists(ctx context.Context, limit int) ([]*models.ArtistProfile, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM artists ORDER BY updated_at DESC, name ASC LIMIT ?`, artistColumns)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.ArtistProfile
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

// rowScanner lets scanArtist work on both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtist(row rowScanner) (*models.ArtistProfile, error) {
	var (
		p                 models.ArtistProfile
		normalizedName    string
		fingerprint       string
		youtubeChannelID  sql.NullString
		youtubeChannelURL sql.NullString
		spotifyID         sql.NullString
		instagramHandle   sql.NullString
		tiktokHandle      sql.NullString
		twitterHandle     sql.NullString
		website           sql.NullString
		email             sql.NullString
		bio               sql.NullString
		location          sql.NullString
		avatarURL         sql.NullString
		genres            string
		themes            string
		counts            string
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&normalizedName,
		&fingerprint,
		&youtubeChannelID,
		&youtubeChannelURL,
		&spotifyID,
		&instagramHandle,
		&tiktokHandle,
		&twitterHandle,
		&website,
		&email,
		&bio,
		&location,
		&avatarURL,
		&genres,
		&themes,
		&counts,
		&p.EnrichmentScore,
		&p.BelowThreshold,
		&p.DiscoveredAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artist: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	p.YouTubeChannelID = youtubeChannelID.String
	p.YouTubeChannelURL = youtubeChannelURL.String
	p.SpotifyID = spotifyID.String
	p.InstagramHandle = instagramHandle.String
	p.TikTokHandle = tiktokHandle.String
	p.TwitterHandle = twitterHandle.String
	p.Website = website.String
	p.Email = email.String
	p.Bio = bio.String
	p.Location = location.String
	p.AvatarURL = avatarURL.String
	p.Genres = unmarshalStrings(genres)
	p.LyricThemes = unmarshalStrings(themes)
	p.FollowerCounts = unmarshalCounts(counts)

	return &p, nil
}

// nullable maps empty strings to NULL so identifier indexes stay sparse.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
