package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for a token ID.
var ErrNotFound = errors.New("refresh token record not found")

// ErrConflict is returned when a record with the same token ID already
// exists. With 256-bit random IDs this is cryptographically negligible;
// the manager treats it as fatal-retry-once.
var ErrConflict = errors.New("refresh token id conflict")

// ErrAlreadyConsumed is returned by MarkUsed when the record is no longer in
// the active state. The manager converts it into a reuse-detection event;
// it never crosses the manager boundary.
var ErrAlreadyConsumed = errors.New("refresh token already consumed")

// ErrUnavailable wraps backend transport failures. Callers treat it as
// retryable.
var ErrUnavailable = errors.New("store unavailable")

// Record is a persisted refresh-token row. Timestamps are UTC epoch seconds.
// Used and Invalidated are terminal: once set they are never cleared, and
// ExpiresAt is fixed at creation; rotation creates a new Record rather than
// extending an old one.
type Record struct {
	TokenID     string
	SessionID   string
	Principal   string
	CreatedAt   int64
	ExpiresAt   int64
	Used        bool
	Invalidated bool
	RotatedFrom string
}

// Active reports whether the record can still satisfy a refresh at the given
// time.
func (r *Record) Active(now int64) bool {
	return r != nil && !r.Used && !r.Invalidated && r.ExpiresAt > now
}

// Store is the persistence contract consumed by the session manager.
//
// All methods honor ctx cancellation and deadlines. MarkUsed MUST be a single
// atomic conditional write scoped to one token ID; no other method requires
// cross-row coordination.
type Store interface {
	// Create inserts a new record. Returns ErrConflict when the token ID is
	// already present.
	Create(ctx context.Context, rec *Record) error

	// Get returns the record for tokenID, or ErrNotFound.
	Get(ctx context.Context, tokenID string) (*Record, error)

	// MarkUsed flips Used to true if and only if the record is currently
	// neither used nor invalidated. Returns ErrAlreadyConsumed otherwise and
	// ErrNotFound when no record exists. Exactly one concurrent caller can
	// observe success for a given token ID.
	MarkUsed(ctx context.Context, tokenID string) error

	// InvalidateSession marks every record sharing sessionID as invalidated.
	// Idempotent.
	InvalidateSession(ctx context.Context, sessionID string) error

	// DeleteExpiredBefore removes records with ExpiresAt strictly below
	// cutoff and returns how many were deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error)
}
