// Package store defines the refresh-token persistence contract and its
// backends: Redis (production default), Postgres, and an in-memory store for
// tests and embedded use.
//
// # Design
//
// The store never initiates lifecycle transitions on its own; it persists
// exactly the state the manager hands it. The one non-negotiable guarantee a
// backend must provide is that MarkUsed is a single atomic conditional
// update: compare-and-set, never read-then-write. Everything the manager's
// replay protection promises rests on that.
//
// # What this package must NOT do
//
//   - Decide whether a token may be refreshed; it only reports record state.
//   - Import the root package or internal/ (no import cycles).
package store
