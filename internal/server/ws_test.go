package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
	"github.com/desertthunder/scout/internal/shared"
)

func newStreamServer(t *testing.T, service SessionService) *httptest.Server {
	t.Helper()

	router := NewBasicRouter()
	router.Handler(NewStreamHandler(service, shared.NewLogger(io.Discard)))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialStream(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):]+"/ws/sessions/"+sessionID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ProgressEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}

	var event models.ProgressEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v (payload %q)", err, data)
	}
	return event
}

func TestStreamRelaysEventsUntilTerminal(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	bus := progress.NewBus("sess-ws", 16, logger)

	service := newStubService()
	service.Sessions["sess-ws"] = &models.Session{ID: "sess-ws", State: models.StateRunning}
	service.Buses["sess-ws"] = bus

	srv := newStreamServer(t, service)
	conn := dialStream(t, srv, "sess-ws")
	defer conn.Close(websocket.StatusNormalClosure, "")

	bus.Publish(models.ProgressEvent{Kind: models.EventSessionStarted, Phase: "harvest"})
	bus.Publish(models.ProgressEvent{Kind: models.EventArtistStored, Artist: &models.ArtistProfile{Name: "Anna Blue"}})
	bus.CloseWith(models.ProgressEvent{
		Kind:    models.EventSessionCompleted,
		Summary: &models.SessionSummary{SessionCounters: models.SessionCounters{ArtistsStored: 1}},
	})

	first := readEvent(t, conn)
	if first.Kind != models.EventSessionStarted {
		t.Errorf("first event = %q, want %q", first.Kind, models.EventSessionStarted)
	}
	if first.SessionID != "sess-ws" {
		t.Errorf("first event session_id = %q, want sess-ws", first.SessionID)
	}

	second := readEvent(t, conn)
	if second.Kind != models.EventArtistStored {
		t.Errorf("second event = %q, want %q", second.Kind, models.EventArtistStored)
	}
	if second.Artist == nil || second.Artist.Name != "Anna Blue" {
		t.Errorf("second event artist = %+v", second.Artist)
	}

	terminal := readEvent(t, conn)
	if terminal.Kind != models.EventSessionCompleted {
		t.Errorf("terminal event = %q, want %q", terminal.Kind, models.EventSessionCompleted)
	}
	if terminal.Summary == nil || terminal.Summary.ArtistsStored != 1 {
		t.Errorf("terminal summary = %+v", terminal.Summary)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("close status = %v (err %v), want %v", websocket.CloseStatus(err), err, websocket.StatusNormalClosure)
	}
}

func TestStreamUnknownSessionRejected(t *testing.T) {
	srv := newStreamServer(t, newStubService())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):]+"/ws/sessions/missing", nil)
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
		t.Fatal("dial succeeded for unknown session")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Errorf("handshake response = %+v, want 404", resp)
	}
}

func TestStreamFinishedSessionGone(t *testing.T) {
	service := newStubService()
	service.Sessions["sess-done"] = &models.Session{ID: "sess-done", State: models.StateCompleted}
	srv := newStreamServer(t, service)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):]+"/ws/sessions/sess-done", nil)
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
		t.Fatal("dial succeeded for finished session")
	}
	if resp == nil || resp.StatusCode != 410 {
		t.Errorf("handshake response = %+v, want 410", resp)
	}
}

func TestStreamUnsubscribesWhenClientLeaves(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	bus := progress.NewBus("sess-leave", 16, logger)

	service := newStubService()
	service.Sessions["sess-leave"] = &models.Session{ID: "sess-leave", State: models.StateRunning}
	service.Buses["sess-leave"] = bus

	srv := newStreamServer(t, service)
	conn := dialStream(t, srv, "sess-leave")

	conn.Close(websocket.StatusNormalClosure, "done watching")

	deadline := time.Now().Add(5 * time.Second)
	for service.Unsubscribed() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never unsubscribed after client close")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.CloseWith(models.ProgressEvent{Kind: models.EventSessionCompleted})
}
