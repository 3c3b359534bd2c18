// Package refreshguard provides a token-based authentication session core with
// stateless JWT access tokens, rotating opaque refresh tokens, pluggable
// refresh-token persistence, and reuse detection that revokes stolen sessions.
//
// The package is designed for concurrent server workloads: Manager methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The manager itself is stateless; all refresh-token state
// lives behind the [store.Store] interface, so any number of Manager instances
// may run against the same store with no coordination beyond the store's
// conditional writes.
//
// # Architecture boundaries
//
// refreshguard is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (Claims, TokenPair, MetricsSnapshot, AuditEvent).
// Flow orchestration lives under internal/ and is never exported. Token
// signing lives in the jwt sub-package and persistence backends in the store
// sub-package.
//
// # What this package must NOT do
//
//   - Verify passwords or manage user accounts. Callers authenticate the
//     principal first and hand the verified identity to [Manager.Issue].
//   - Perform HTTP routing, cookie handling, or any transport concern.
//   - Expose Redis or Postgres clients in its public API beyond construction.
//
// # Performance contract
//
// ValidateAccess is the hot path. It is purely cryptographic: no store
// round-trips, no allocation beyond the returned claims. Issue and Refresh are
// allowed one conditional store write per call; Refresh's MarkUsed is the only
// serialization point and is scoped to a single token ID.
package refreshguard
