// Package server provides HTTP routing, middleware, and the REST/WebSocket surface of the discovery service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] and [Recover] are the two middlewares the serve command installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-prefixed patterns,
// so the mux enforces methods and fills path wildcards.
//
// # Session API
//
// [SessionHandler] exposes the orchestrator over REST:
//
//	POST   /api/v1/sessions             start a discovery session (202 + session_id)
//	GET    /api/v1/sessions             list persisted sessions
//	GET    /api/v1/sessions/{id}        one session snapshot, live or stored
//	DELETE /api/v1/sessions/{id}        request cancellation (202)
//	GET    /api/v1/sessions/{id}/events the session's journaled progress events
//	GET    /api/v1/artists              recently discovered artists
//	GET    /api/v1/healthz              liveness and active session count
//
// Errors reply as JSON with the pipeline's error kind; InvalidRequest maps to
// 400, Busy to 409, NotFound to 404, RateLimited to 429.
//
// # Progress Streaming
//
// [StreamHandler] upgrades GET /ws/sessions/{id} and relays the live event
// stream as JSON text messages, closing after the terminal event. Late
// subscribers get no replay; the events endpoint serves history instead.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
