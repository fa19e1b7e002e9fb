package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/store"
)

// maxRequestBody caps session creation payloads.
const maxRequestBody = 1 << 20

// SessionHandler serves the REST session API. Live state comes from the
// [SessionService]; history and artists come from the [store.Store].
type SessionHandler struct {
	service SessionService
	store   store.Store
	logger  *log.Logger
}

// NewSessionHandler creates the REST handler. A nil logger falls back to
// stderr.
func NewSessionHandler(service SessionService, st store.Store, logger *log.Logger) *SessionHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SessionHandler{
		service: service,
		store:   st,
		logger:  logger.With("component", "api"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *SessionHandler) Routes() []string {
	return []string{
		"POST /api/v1/sessions",
		"GET /api/v1/sessions",
		"GET /api/v1/sessions/{id}",
		"DELETE /api/v1/sessions/{id}",
		"GET /api/v1/sessions/{id}/events",
		"GET /api/v1/artists",
		"GET /api/v1/healthz",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "POST /api/v1/sessions":
		h.create(w, r)
	case "GET /api/v1/sessions":
		h.list(w, r)
	case "GET /api/v1/sessions/{id}":
		h.show(w, r)
	case "DELETE /api/v1/sessions/{id}":
		h.cancel(w, r)
	case "GET /api/v1/sessions/{id}/events":
		h.events(w, r)
	case "GET /api/v1/artists":
		h.artists(w, r)
	case "GET /api/v1/healthz":
		h.health(w, r)
	default:
		http.NotFound(w, r)
	}
}

// create starts a session and replies 202 with its id. Validation problems
// reply 400, a full orchestrator replies 409.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("decode request: %v: %w", err, shared.ErrInvalidRequest))
		return
	}

	id, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("session accepted", "session_id", shared.ShortID(id), "query", req.Query)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Sessions []*models.Session `json:"sessions"`
		Count    int               `json:"count"`
	}{Sessions: sessions, Count: len(sessions)})
}

func (h *SessionHandler) show(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// cancel requests cancellation and replies 202; the terminal event arrives
// on the session's stream once the pipeline drains.
func (h *SessionHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("session cancel requested", "session_id", shared.ShortID(id))
	h.writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "state": "cancelling"})
}

func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.service.Status(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	journal, err := h.store.SessionEvents(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		SessionID string                  `json:"session_id"`
		Events    []*models.ProgressEvent `json:"events"`
		Count     int                     `json:"count"`
	}{SessionID: id, Events: journal, Count: len(journal)})
}

func (h *SessionHandler) artists(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	artists, err := h.store.ListArtists(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Artists []*models.ArtistProfile `json:"artists"`
		Count   int                     `json:"count"`
	}{Artists: artists, Count: len(artists)})
}

func (h *SessionHandler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
	}{Status: "ok", ActiveSessions: h.service.ActiveCount()})
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", "error", err)
	}
}

// writeError maps the error chain's kind to an HTTP status and replies with
// a JSON error body.
func (h *SessionHandler) writeError(w http.ResponseWriter, err error) {
	kind := shared.ErrorKind(err)
	h.writeJSON(w, statusForKind(kind), struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}{Error: err.Error(), Kind: kind})
}

func statusForKind(kind string) int {
	switch kind {
	case "InvalidRequest":
		return http.StatusBadRequest
	case "Busy":
		return http.StatusConflict
	case "NotFound":
		return http.StatusNotFound
	case "RateLimited":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit reads the optional limit query parameter. Zero means the
// store's default page size.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit %q: %w", raw, shared.ErrInvalidRequest)
	}
	return limit, nil
}
