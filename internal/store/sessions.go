package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

const sessionColumns = `id, query, state, request,
	videos_seen, videos_accepted, artists_enriched, artists_stored,
	below_threshold, cost_spent, budget_exhausted, error, started_at, ended_at`

// RecordSession implements [Store]. Rewriting the same snapshot is a no-op,
// so the orchestrator can persist on every state change.
func (s *SQLite) RecordSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id must not be empty: %w", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO sessions (id, query, state, request,
			videos_seen, videos_accepted, artists_enriched, artists_stored,
			below_threshold, cost_spent, budget_exhausted, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			videos_seen = excluded.videos_seen,
			videos_accepted = excluded.videos_accepted,
			artists_enriched = excluded.artists_enriched,
			artists_stored = excluded.artists_stored,
			below_threshold = excluded.below_threshold,
			cost_spent = excluded.cost_spent,
			budget_exhausted = excluded.budget_exhausted,
			error = excluded.error,
			ended_at = excluded.ended_at
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Request.Query,
		string(session.State),
		marshalJSON(session.Request, "{}"),
		session.Counters.VideosSeen,
		session.Counters.VideosAccepted,
		session.Counters.ArtistsEnriched,
		session.Counters.ArtistsStored,
		session.Counters.BelowThreshold,
		session.Counters.CostSpent,
		session.BudgetExhausted,
		nullable(session.LastError),
		nullableTime(session.StartedAt),
		nullableTime(session.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// GetSession implements [Store].
func (s *SQLite) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = ?`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, id))
}

// ListSessions implements [Store].
func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM sessions ORDER BY started_at DESC LIMIT ?`, sessionColumns)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// AppendSessionEvent implements [Store].
func (s *SQLite) AppendSessionEvent(ctx context.Context, sessionID string, event *models.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	at := event.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	query := `INSERT INTO session_events (session_id, kind, payload, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sessionID, string(event.Kind), string(payload), at); err != nil {
		return fmt.Errorf("failed to append session event: %w", err)
	}
	return nil
}

// SessionEvents implements [Store].
func (s *SQLite) SessionEvents(ctx context.Context, sessionID string, limit int) ([]*models.ProgressEvent, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT payload FROM session_events WHERE session_id = ? ORDER BY seq ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []*models.ProgressEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var event models.ProgressEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session   models.Session
		queryText string
		state     string
		request   string
		lastError sql.NullString
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)

	err := row.Scan(
		&session.ID,
		&queryText,
		&state,
		&request,
		&session.Counters.VideosSeen,
		&session.Counters.VideosAccepted,
		&session.Counters.ArtistsEnriched,
		&session.Counters.ArtistsStored,
		&session.Counters.BelowThreshold,
		&session.Counters.CostSpent,
		&session.BudgetExhausted,
		&lastError,
		&startedAt,
		&endedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session.State = models.SessionState(state)
	session.LastError = lastError.String
	if startedAt.Valid {
		session.StartedAt = startedAt.Time
	}
	if endedAt.Valid {
		session.EndedAt = endedAt.Time
	}
	if err := json.Unmarshal([]byte(request), &session.Request); err != nil {
		session.Request = models.SessionRequest{Query: queryText}
	}

	return &session, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
