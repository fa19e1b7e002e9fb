package models

import "time"

// EventKind identifies a progress event variant.
type EventKind string

const (
	EventSessionStarted   EventKind = "session_started"
	EventPhaseProgress    EventKind = "phase_progress"
	EventCandidateFound   EventKind = "candidate_found"
	EventArtistAccepted   EventKind = "artist_accepted"
	EventArtistRejected   EventKind = "artist_rejected"
	EventArtistEnriched   EventKind = "artist_enriched"
	EventArtistStored     EventKind = "artist_stored"
	EventSessionCompleted EventKind = "session_completed"
	EventSessionFailed    EventKind = "session_failed"

	// EventLagged is delivered as the final event to a subscriber that was
	// dropped for falling behind; Dropped carries how many events it missed.
	EventLagged EventKind = "lagged"
)

// Terminal reports whether the event ends its session's stream.
func (k EventKind) Terminal() bool {
	return k == EventSessionCompleted || k == EventSessionFailed
}

// ProgressEvent is one entry in a session's event stream. Kind selects the
// variant; the pointer fields carry that variant's payload and stay nil for
// the others.
type ProgressEvent struct {
	Kind      EventKind       `json:"kind"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Phase     string          `json:"phase,omitempty"`
	Message   string          `json:"message,omitempty"`
	Video     *CandidateVideo `json:"video,omitempty"`
	Artist    *ArtistProfile  `json:"artist,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Summary   *SessionSummary `json:"summary,omitempty"`
	Dropped   int             `json:"dropped,omitempty"`
}
