package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/shared"
)

// wsWriteTimeout bounds each event write so one stalled client cannot pin
// the stream goroutine past the session's lifetime.
const wsWriteTimeout = 10 * time.Second

// StreamHandler upgrades GET /ws/sessions/{id} to a WebSocket and relays the
// session's progress events as JSON text messages, one event per message.
// The connection closes normally after the terminal event. Finished sessions
// reply 410; their journal stays available on the events endpoint.
type StreamHandler struct {
	service SessionService
	logger  *log.Logger
}

// NewStreamHandler creates the WebSocket handler. A nil logger falls back to
// stderr.
func NewStreamHandler(service SessionService, logger *log.Logger) *StreamHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StreamHandler{
		service: service,
		logger:  logger.With("component", "ws"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *StreamHandler) Routes() []string {
	return []string{"GET /ws/sessions/{id}"}
}

// ServeHTTP subscribes to the session's event stream, upgrades the
// connection, and pumps events until the stream or the client ends.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sub, err := h.service.Subscribe(id)
	if err != nil {
		if _, statusErr := h.service.Status(r.Context(), id); statusErr == nil {
			http.Error(w, "session finished", http.StatusGone)
			return
		}
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	defer h.service.Unsubscribe(id, sub.ID)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins are not checked; the server binds localhost.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept", "session_id", shared.ShortID(id), "error", err)
		return
	}

	h.logger.Info("stream opened", "session_id", shared.ShortID(id), "subscriber", sub.ID)

	// CloseRead discards inbound messages and cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client closed")
			return
		case event, ok := <-sub.Events:
			if !ok {
				conn.Close(websocket.StatusTryAgainLater, "stream dropped")
				return
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Warn("stream write", "session_id", shared.ShortID(id), "error", err)
				}
				conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
			if event.Kind.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event models.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
