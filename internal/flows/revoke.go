package flows

import "context"

// RevokeFailureKind classifies revoke flow failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureStore
)

// RevokeResult carries revoke failure metadata.
type RevokeResult struct {
	Failure   RevokeFailureKind
	Err       error
	SessionID string
}

type RevokeSessionStore interface {
	InvalidateSession(ctx context.Context, sessionID string) error
}

// RevokeDeps captures revoke flow dependencies.
type RevokeDeps struct {
	Store RevokeSessionStore
}

// RunRevoke invalidates every refresh record in the session. Revoking a
// session that is already dead or never existed succeeds; the operation is
// idempotent by contract.
func RunRevoke(ctx context.Context, sessionID string, deps RevokeDeps) RevokeResult {
	if err := deps.Store.InvalidateSession(ctx, sessionID); err != nil {
		return RevokeResult{
			Failure:   RevokeFailureStore,
			Err:       err,
			SessionID: sessionID,
		}
	}
	return RevokeResult{SessionID: sessionID}
}
