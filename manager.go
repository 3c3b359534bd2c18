package refreshguard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/refreshguard/internal/flows"
	"github.com/MrEthical07/refreshguard/jwt"
	"github.com/MrEthical07/refreshguard/store"
)

// Manager defines a public type used by refreshguard APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config  Config
	store   store.Store
	codec   *jwt.Codec
	flows   flows.Deps
	audit   *auditDispatcher
	metrics *Metrics
	sweeper *sweeper
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// Issue describes the issue operation and its observable behavior.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Issue(ctx context.Context, principal string) (string, string, error) {
	result, err := m.IssueWithResult(ctx, principal)
	if err != nil {
		return "", "", err
	}
	return result.AccessToken, result.RefreshToken, nil
}

// IssueWithResult creates a fresh session for principal and returns the full
// [TokenPair]. Each call produces an independent session; concurrent sessions
// for one principal never interfere.
func (m *Manager) IssueWithResult(ctx context.Context, principal string) (*TokenPair, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}

	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, ErrPrincipalRequired
	}

	result := flows.RunIssue(ctx, principal, m.flows.Issue)
	if result.Failure != flows.IssueFailureNone {
		m.metricInc(MetricIssueFailure)
		m.emitAudit(ctx, AuditEventIssue, false, principal, result.SessionID, result.Err, nil)
		return nil, m.mapStoreError(result.Err)
	}

	m.metricInc(MetricIssueSuccess)
	m.emitAudit(ctx, AuditEventIssue, true, principal, result.SessionID, nil, nil)

	return &TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		SessionID:    result.SessionID,
		Principal:    principal,
	}, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	result, err := m.RefreshWithResult(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	return result.AccessToken, result.RefreshToken, nil
}

// RefreshWithResult rotates refreshToken and returns the successor
// [TokenPair]. The presented token is consumed exactly once; under concurrent
// presentation one caller wins and the rest observe reuse, which revokes the
// session.
func (m *Manager) RefreshWithResult(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}

	result := flows.RunRefresh(ctx, refreshToken, m.flows.Refresh)

	switch result.Failure {
	case flows.RefreshFailureNone:
		m.metricInc(MetricRefreshSuccess)
		m.emitAudit(ctx, AuditEventRefresh, true, result.Principal, result.SessionID, nil, nil)
		return &TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			SessionID:    result.SessionID,
			Principal:    result.Principal,
		}, nil

	case flows.RefreshFailureValidate, flows.RefreshFailureNotFound:
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, AuditEventRefresh, false, result.Principal, result.SessionID, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "unknown_token",
			}
		})
		return nil, ErrRefreshInvalid

	case flows.RefreshFailureExpired:
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, AuditEventRefresh, false, result.Principal, result.SessionID, ErrRefreshExpired, func() map[string]string {
			return map[string]string{
				"reason": "expired",
			}
		})
		return nil, ErrRefreshExpired

	case flows.RefreshFailureRevoked:
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, AuditEventRefresh, false, result.Principal, result.SessionID, ErrSessionRevoked, func() map[string]string {
			return map[string]string{
				"reason": "revoked",
			}
		})
		return nil, ErrSessionRevoked

	case flows.RefreshFailureReuse:
		m.metricInc(MetricRefreshReuseDetected)
		m.metricInc(MetricSessionRevoked)
		m.emitAudit(ctx, AuditEventRefreshReuse, false, result.Principal, result.SessionID, ErrRefreshReuse, nil)
		return nil, errors.Join(ErrSessionRevoked, ErrRefreshReuse)

	case flows.RefreshFailureNewTokenID, flows.RefreshFailureRotate, flows.RefreshFailureAccessToken:
		// The flow already invalidated the session to keep the consumed
		// token's lineage closed.
		m.metricInc(MetricRefreshFailure)
		m.metricInc(MetricSessionRevoked)
		m.emitAudit(ctx, AuditEventRefresh, false, result.Principal, result.SessionID, result.Err, func() map[string]string {
			return map[string]string{
				"reason": "rotate_failed",
			}
		})
		return nil, m.mapStoreError(result.Err)

	default:
		m.metricInc(MetricRefreshFailure)
		m.emitAudit(ctx, AuditEventRefresh, false, result.Principal, result.SessionID, result.Err, nil)
		return nil, m.mapStoreError(result.Err)
	}
}

// Revoke invalidates every refresh record in sessionID. Revoking an unknown
// or already-revoked session succeeds; outstanding access tokens are not
// recalled and simply age out.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}

	result := flows.RunRevoke(ctx, sessionID, m.flows.Revoke)
	if result.Failure != flows.RevokeFailureNone {
		m.emitAudit(ctx, AuditEventRevoke, false, "", sessionID, result.Err, nil)
		return m.mapStoreError(result.Err)
	}

	m.metricInc(MetricSessionRevoked)
	m.emitAudit(ctx, AuditEventRevoke, true, "", sessionID, nil, nil)
	return nil
}

// RevokeByAccessToken decodes tokenStr and revokes the session it belongs
// to. The token must verify; a forged token cannot name a session to kill.
func (m *Manager) RevokeByAccessToken(ctx context.Context, tokenStr string) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}

	claims, err := m.codec.Decode(tokenStr)
	if err != nil {
		return err
	}
	return m.Revoke(ctx, claims.SID)
}

// ValidateAccess verifies an access token without touching the store. The
// hot path stays stateless: a token issued before Revoke remains valid until
// its own expiry.
func (m *Manager) ValidateAccess(ctx context.Context, tokenStr string) (*Claims, error) {
	if m == nil || m.codec == nil {
		return nil, ErrManagerNotReady
	}

	var start time.Time
	if m.metrics.LatencyEnabled() {
		start = time.Now()
	}

	decoded, err := m.codec.Decode(tokenStr)
	if err != nil {
		m.metricInc(MetricValidateFailure)
		return nil, err
	}

	claims := &Claims{
		Principal: decoded.Principal(),
		SessionID: decoded.SID,
	}
	if decoded.IssuedAt != nil {
		claims.IssuedAt = decoded.IssuedAt.Unix()
	}
	if decoded.ExpiresAt != nil {
		claims.ExpiresAt = decoded.ExpiresAt.Unix()
	}

	m.metricInc(MetricValidateSuccess)
	if m.metrics.LatencyEnabled() {
		m.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	return claims, nil
}

// SweepNow runs one expiry sweep synchronously and returns the number of
// deleted records. Available whether or not the background sweeper is
// enabled.
func (m *Manager) SweepNow(ctx context.Context) (int64, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}
	return m.sweepOnce(ctx)
}

func (m *Manager) sweepOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-m.config.Sweeper.Grace).Unix()

	deleted, err := m.store.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		m.metricInc(MetricSweepError)
		m.emitAudit(ctx, AuditEventSweep, false, "", "", err, nil)
		return deleted, m.mapStoreError(err)
	}

	if m.metrics != nil {
		m.metrics.Add(MetricSweepDeleted, uint64(deleted))
	}
	m.emitAudit(ctx, AuditEventSweep, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"deleted": strconv.FormatInt(deleted, 10),
		}
	})
	return deleted, nil
}

func (m *Manager) mapStoreError(err error) error {
	if err == nil {
		return ErrStoreUnavailable
	}
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// emitAudit builds events lazily so the disabled path costs a nil check.
func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principal string,
	sessionID string,
	err error,
	metaFn func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Principal: principal,
		SessionID: sessionID,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	m.audit.Emit(ctx, event)
}

func warnf(format string, args ...any) {
	log.Printf(format, args...)
}
