// Package quota provides cost-aware admission control and response caching
// for outbound operations.
//
// A [Limiter] holds the process-wide daily unit budget plus per-service
// request-rate limiters; every named operation has a fixed unit cost
// (youtube.search is expensive, plain fetches are free). A [Budget] scopes a
// session's max_cost_units on top of the shared limiter. The [Cache] is a
// TTL+LRU map keyed by operation and canonicalized parameters; it is always
// consulted before the limiter, so a cache hit never consumes budget.
package quota
