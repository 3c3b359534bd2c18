package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/refreshguard/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureValidate
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureRevoked
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureNewTokenID
	RefreshFailureRotate
	RefreshFailureAccessToken
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SessionID    string
	Principal    string
	TokenID      string
	AccessToken  string
	RefreshToken string
}

type RefreshTokenStore interface {
	Get(ctx context.Context, tokenID string) (*store.Record, error)
	MarkUsed(ctx context.Context, tokenID string) error
	Create(ctx context.Context, rec *store.Record) error
	InvalidateSession(ctx context.Context, sessionID string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ValidateTokenID  func(string) error
	NewTokenID       func() (string, error)
	Now              func() time.Time
	RefreshTTL       time.Duration
	IssueAccessToken func(principal, sessionID string) (string, error)
	Store            RefreshTokenStore
	NotFound         error
	AlreadyConsumed  error
	Conflict         error
	Warn             func(string, ...any)
}

// RunRefresh executes refresh rotation: conditional consume of the presented
// token, creation of its successor, and access-token issuance.
//
// MarkUsed is the commit point. Once it succeeds, any later failure
// invalidates the whole session rather than leaving the presented token
// replayable; a client that hits this retries through Issue.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if err := deps.ValidateTokenID(refreshToken); err != nil {
		return RefreshResult{
			Failure: RefreshFailureValidate,
			Err:     err,
		}
	}

	rec, err := deps.Store.Get(ctx, refreshToken)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return RefreshResult{
				Failure: RefreshFailureNotFound,
				Err:     err,
			}
		}
		return RefreshResult{
			Failure: RefreshFailureStore,
			Err:     err,
		}
	}

	now := deps.Now().UTC()

	if rec.ExpiresAt <= now.Unix() {
		return RefreshResult{
			Failure:   RefreshFailureExpired,
			SessionID: rec.SessionID,
			Principal: rec.Principal,
		}
	}
	if rec.Invalidated {
		return RefreshResult{
			Failure:   RefreshFailureRevoked,
			SessionID: rec.SessionID,
			Principal: rec.Principal,
		}
	}
	if rec.Used {
		// Terminal state, so acting on the snapshot is race-free. Presenting
		// a consumed token means it leaked; kill the session.
		deps.failClosed(ctx, rec.SessionID)
		return RefreshResult{
			Failure:   RefreshFailureReuse,
			SessionID: rec.SessionID,
			Principal: rec.Principal,
		}
	}

	if err := deps.Store.MarkUsed(ctx, refreshToken); err != nil {
		switch {
		case deps.AlreadyConsumed != nil && errors.Is(err, deps.AlreadyConsumed):
			// Lost the consume race or the session was revoked between Get
			// and MarkUsed. Either way this presentation is a replay.
			deps.failClosed(ctx, rec.SessionID)
			return RefreshResult{
				Failure:   RefreshFailureReuse,
				Err:       err,
				SessionID: rec.SessionID,
				Principal: rec.Principal,
			}
		case deps.NotFound != nil && errors.Is(err, deps.NotFound):
			return RefreshResult{
				Failure:   RefreshFailureNotFound,
				Err:       err,
				SessionID: rec.SessionID,
				Principal: rec.Principal,
			}
		default:
			return RefreshResult{
				Failure:   RefreshFailureStore,
				Err:       err,
				SessionID: rec.SessionID,
				Principal: rec.Principal,
			}
		}
	}

	// Commit point passed. Failures below must not leave the presented
	// token's session usable without a successor.
	successor := &store.Record{
		SessionID:   rec.SessionID,
		Principal:   rec.Principal,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(deps.RefreshTTL).Unix(),
		RotatedFrom: refreshToken,
	}

	var created bool
	for attempt := 0; attempt < 2; attempt++ {
		id, err := deps.NewTokenID()
		if err != nil {
			deps.failClosed(ctx, rec.SessionID)
			return RefreshResult{
				Failure:   RefreshFailureNewTokenID,
				Err:       err,
				SessionID: rec.SessionID,
				Principal: rec.Principal,
			}
		}

		successor.TokenID = id
		err = deps.Store.Create(ctx, successor)
		if err == nil {
			created = true
			break
		}
		if deps.Conflict != nil && errors.Is(err, deps.Conflict) && attempt == 0 {
			if deps.Warn != nil {
				deps.Warn("refreshguard: token ID collision on rotate, redrawing")
			}
			continue
		}
		deps.failClosed(ctx, rec.SessionID)
		return RefreshResult{
			Failure:   RefreshFailureRotate,
			Err:       err,
			SessionID: rec.SessionID,
			Principal: rec.Principal,
		}
	}
	if !created {
		deps.failClosed(ctx, rec.SessionID)
		return RefreshResult{
			Failure:   RefreshFailureRotate,
			SessionID: rec.SessionID,
			Principal: rec.Principal,
		}
	}

	accessToken, err := deps.IssueAccessToken(rec.Principal, rec.SessionID)
	if err != nil {
		deps.failClosed(ctx, rec.SessionID)
		return RefreshResult{
			Failure:   RefreshFailureAccessToken,
			Err:       err,
			SessionID: rec.SessionID,
			Principal: rec.Principal,
		}
	}

	return RefreshResult{
		SessionID:    rec.SessionID,
		Principal:    rec.Principal,
		TokenID:      successor.TokenID,
		AccessToken:  accessToken,
		RefreshToken: successor.TokenID,
	}
}

func (d RefreshDeps) failClosed(ctx context.Context, sessionID string) {
	if err := d.Store.InvalidateSession(ctx, sessionID); err != nil && d.Warn != nil {
		d.Warn("refreshguard: fail-closed session invalidation failed")
	}
}
