package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/refreshguard/store"
)

// IssueFailureKind classifies issue flow failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureNewTokenID
	IssueFailureCreate
	IssueFailureAccessToken
)

// IssueResult carries either the issued token pair or failure metadata.
type IssueResult struct {
	Failure      IssueFailureKind
	Err          error
	SessionID    string
	TokenID      string
	AccessToken  string
	RefreshToken string
}

type IssueTokenStore interface {
	Create(ctx context.Context, rec *store.Record) error
}

// IssueDeps captures issue flow dependencies.
type IssueDeps struct {
	NewSessionID     func() string
	NewTokenID       func() (string, error)
	Now              func() time.Time
	RefreshTTL       time.Duration
	IssueAccessToken func(principal, sessionID string) (string, error)
	Store            IssueTokenStore
	Conflict         error
	Warn             func(string, ...any)
}

// RunIssue creates a fresh session with one refresh record and a signed
// access token. A token-ID collision retries the draw once; the ID space
// makes a second collision a store defect, not chance.
func RunIssue(ctx context.Context, principal string, deps IssueDeps) IssueResult {
	sessionID := deps.NewSessionID()
	now := deps.Now().UTC().Unix()
	expiresAt := deps.Now().UTC().Add(deps.RefreshTTL).Unix()

	var tokenID string
	for attempt := 0; attempt < 2; attempt++ {
		id, err := deps.NewTokenID()
		if err != nil {
			return IssueResult{
				Failure:   IssueFailureNewTokenID,
				Err:       err,
				SessionID: sessionID,
			}
		}

		err = deps.Store.Create(ctx, &store.Record{
			TokenID:   id,
			SessionID: sessionID,
			Principal: principal,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			tokenID = id
			break
		}
		if deps.Conflict != nil && errors.Is(err, deps.Conflict) && attempt == 0 {
			if deps.Warn != nil {
				deps.Warn("refreshguard: token ID collision on issue, redrawing")
			}
			continue
		}
		return IssueResult{
			Failure:   IssueFailureCreate,
			Err:       err,
			SessionID: sessionID,
		}
	}

	accessToken, err := deps.IssueAccessToken(principal, sessionID)
	if err != nil {
		return IssueResult{
			Failure:   IssueFailureAccessToken,
			Err:       err,
			SessionID: sessionID,
			TokenID:   tokenID,
		}
	}

	return IssueResult{
		SessionID:    sessionID,
		TokenID:      tokenID,
		AccessToken:  accessToken,
		RefreshToken: tokenID,
	}
}
