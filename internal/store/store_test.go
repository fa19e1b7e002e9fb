package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// setupTestStore creates an in-memory SQLite store with migrations applied.
func setupTestStore(t *testing.T) *SQLite {
	t.Helper()

	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArtist() *models.ArtistProfile {
	return &models.ArtistProfile{
		Name:            "Alice",
		SpotifyID:       "sp-alice-1",
		InstagramHandle: "alice.music",
		Genres:          []string{"pop", "indie"},
		EnrichmentScore: 0.55,
		FollowerCounts: map[string]int64{
			models.CountInstagramFollowers: 4200,
		},
	}
}

func TestUpsertArtistInsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.UpsertArtist(ctx, sampleArtist())
	if err != nil {
		t.Fatalf("UpsertArtist failed: %v", err)
	}

	if stored.ID == "" {
		t.Error("stored artist should get an id")
	}
	if stored.DiscoveredAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on insert")
	}

	found, err := s.FindArtistBy(ctx, BySpotifyID, "sp-alice-1")
	if err != nil {
		t.Fatalf("FindArtistBy failed: %v", err)
	}
	if found.Name != "Alice" || found.InstagramHandle != "alice.music" {
		t.Errorf("round trip lost fields: %+v", found)
	}
	if len(found.Genres) != 2 || found.Genres[0] != "pop" {
		t.Errorf("genres lost: %v", found.Genres)
	}
	if found.FollowerCount(models.CountInstagramFollowers) != 4200 {
		t.Errorf("counts lost: %v", found.FollowerCounts)
	}
}

func TestUpsertArtistMergesByFingerprint(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertArtist(ctx, sampleArtist())
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	update := sampleArtist()
	update.Bio = "indie pop artist from Oslo"
	update.Genres = []string{"electronic"}
	update.SetFollowerCount(models.CountInstagramFollowers, 3000)
	update.SetFollowerCount(models.CountSpotifyFollowers, 900)

	second, err := s.UpsertArtist(ctx, update)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("merge created a new row: %s vs %s", second.ID, first.ID)
	}
	if second.Bio != "indie pop artist from Oslo" {
		t.Errorf("empty bio not filled: %q", second.Bio)
	}
	if got := second.FollowerCount(models.CountInstagramFollowers); got != 4200 {
		t.Errorf("count regressed to %d", got)
	}
	if got := second.FollowerCount(models.CountSpotifyFollowers); got != 900 {
		t.Errorf("new count missing: %d", got)
	}

	want := []string{"pop", "indie", "electronic"}
	for i, genre := range want {
		if second.Genres[i] != genre {
			t.Errorf("genres = %v, want %v", second.Genres, want)
			break
		}
	}

	artists, err := s.ListArtists(ctx, 10)
	if err != nil {
		t.Fatalf("ListArtists failed: %v", err)
	}
	if len(artists) != 1 {
		t.Errorf("expected one stored artist, got %d", len(artists))
	}
}

func TestFindArtistByNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindArtistBy(context.Background(), ByNormalizedName, "nobody here")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindArtistByRejectsBadField(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindArtistBy(context.Background(), IdentifierField("email; DROP TABLE artists"), "x")
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	_, err = s.FindArtistBy(context.Background(), BySpotifyID, "")
	if !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty value, got %v", err)
	}
}

func TestFindArtistByNormalizedName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	profile := &models.ArtistProfile{Name: "Tyler, The Creator"}
	if _, err := s.UpsertArtist(ctx, profile); err != nil {
		t.Fatalf("UpsertArtist failed: %v", err)
	}

	found, err := s.FindArtistBy(ctx, ByNormalizedName, models.NormalizeName("TYLER the Creator"))
	if err != nil {
		t.Fatalf("normalized lookup failed: %v", err)
	}
	if found.Name != "Tyler, The Creator" {
		t.Errorf("wrong artist: %q", found.Name)
	}
}

func TestRecordSessionIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	session := &models.Session{
		ID:        shared.GenerateID(),
		Request:   models.SessionRequest{Query: "indie rock", TargetCount: 10},
		State:     models.StateRunning,
		StartedAt: time.Now().UTC(),
	}

	if err := s.RecordSession(ctx, session); err != nil {
		t.Fatalf("first record failed: %v", err)
	}

	session.State = models.StateCompleted
	session.Counters.ArtistsStored = 7
	session.EndedAt = time.Now().UTC()

	if err := s.RecordSession(ctx, session); err != nil {
		t.Fatalf("second record failed: %v", err)
	}

	got, err := s.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.State != models.StateCompleted {
		t.Errorf("state = %s, want completed", got.State)
	}
	if got.Counters.ArtistsStored != 7 {
		t.Errorf("counters not updated: %+v", got.Counters)
	}
	if got.Request.TargetCount != 10 {
		t.Errorf("request lost: %+v", got.Request)
	}

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("idempotent record duplicated the session: %d rows", len(sessions))
	}
}

func TestSessionEventsJournal(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	session := &models.Session{
		ID:        shared.GenerateID(),
		Request:   models.SessionRequest{Query: "phonk"},
		State:     models.StateRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.RecordSession(ctx, session); err != nil {
		t.Fatalf("RecordSession failed: %v", err)
	}

	kinds := []models.EventKind{
		models.EventSessionStarted,
		models.EventCandidateFound,
		models.EventArtistAccepted,
	}
	for _, kind := range kinds {
		event := &models.ProgressEvent{Kind: kind, SessionID: session.ID, Timestamp: time.Now().UTC()}
		if err := s.AppendSessionEvent(ctx, session.ID, event); err != nil {
			t.Fatalf("AppendSessionEvent(%s) failed: %v", kind, err)
		}
	}

	events, err := s.SessionEvents(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("SessionEvents failed: %v", err)
	}
	if len(events) != len(kinds) {
		t.Fatalf("journal has %d events, want %d", len(events), len(kinds))
	}
	for i, kind := range kinds {
		if events[i].Kind != kind {
			t.Errorf("event %d kind = %s, want %s", i, events[i].Kind, kind)
		}
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
