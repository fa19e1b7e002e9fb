// package server contains the HTTP and WebSocket surface of the discovery service
package server

import (
	"context"
	"net/http"

	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the discovery service.
// Implementations handle specific endpoint groups (sessions, artists, progress streams).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// SessionService is the slice of the discovery orchestrator the handlers
// depend on. *discovery.Orchestrator satisfies it.
type SessionService interface {
	Start(ctx context.Context, req models.SessionRequest) (string, error)
	Cancel(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (*models.Session, error)
	Subscribe(id string) (*progress.Subscription, error)
	Unsubscribe(id string, subscriber int)
	ActiveCount() int
}
