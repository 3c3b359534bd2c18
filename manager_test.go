package refreshguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/refreshguard/internal"
	"github.com/MrEthical07/refreshguard/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func managerTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-secret-key")
	cfg.Sweeper.Enabled = false
	return cfg
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *redis.Client, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	manager, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return manager, rdb, func() {
		manager.Close()
		mr.Close()
	}
}

func TestIssueReturnsWorkingPair(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}
	if pair.Principal != "alice" {
		t.Fatalf("unexpected principal %q", pair.Principal)
	}
	if pair.SessionID == "" {
		t.Fatal("expected session ID")
	}

	claims, err := manager.ValidateAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.Principal != "alice" {
		t.Fatalf("unexpected claims principal %q", claims.Principal)
	}
	if claims.SessionID != pair.SessionID {
		t.Fatalf("claims session %q does not match pair session %q", claims.SessionID, pair.SessionID)
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Fatalf("claims time bounds inverted: iat=%d exp=%d", claims.IssuedAt, claims.ExpiresAt)
	}
}

func TestIssueRequiresPrincipal(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	if _, _, err := manager.Issue(context.Background(), "  "); !errors.Is(err, ErrPrincipalRequired) {
		t.Fatalf("expected ErrPrincipalRequired, got %v", err)
	}
}

func TestIssueCreatesIndependentSessions(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	first, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	second, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	if first.SessionID == second.SessionID {
		t.Fatal("expected distinct sessions per issuance")
	}

	if err := manager.Revoke(context.Background(), first.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if _, _, err := manager.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("revoking one session must not affect another: %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	next, err := manager.RefreshWithResult(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}
	if next.SessionID != pair.SessionID {
		t.Fatalf("rotation changed session: %q -> %q", pair.SessionID, next.SessionID)
	}
	if next.Principal != "alice" {
		t.Fatalf("unexpected principal %q", next.Principal)
	}

	if _, err := manager.ValidateAccess(context.Background(), next.AccessToken); err != nil {
		t.Fatalf("rotated access token must validate: %v", err)
	}
}

func TestRotationChainConsumesPriors(t *testing.T) {
	cfg := managerTestConfig()
	mem := store.NewMemoryStore()

	manager, err := New().
		WithConfig(cfg).
		WithStore(mem).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer manager.Close()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	const n = 5
	chain := []string{pair.RefreshToken}
	current := pair.RefreshToken
	for i := 0; i < n; i++ {
		next, err := manager.RefreshWithResult(context.Background(), current)
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
		chain = append(chain, next.RefreshToken)
		current = next.RefreshToken
	}

	now := time.Now().UTC().Unix()
	for i, tokenID := range chain[:n] {
		rec, err := mem.Get(context.Background(), tokenID)
		if err != nil {
			t.Fatalf("get link %d failed: %v", i, err)
		}
		if !rec.Used {
			t.Fatalf("link %d must be consumed", i)
		}
		if rec.Active(now) {
			t.Fatalf("link %d must not be active", i)
		}
	}

	head, err := mem.Get(context.Background(), chain[n])
	if err != nil {
		t.Fatalf("get head failed: %v", err)
	}
	if !head.Active(now) {
		t.Fatal("chain head must be the single active record")
	}
	if head.RotatedFrom != chain[n-1] {
		t.Fatalf("head lineage %q does not point at prior link", head.RotatedFrom)
	}
}

func TestRefreshReuseRevokesSession(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	next, err := manager.RefreshWithResult(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// Replaying the consumed token is the theft signal.
	_, _, err = manager.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked on reuse, got %v", err)
	}
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse on reuse, got %v", err)
	}

	// The cascade must kill the latest token too.
	if _, _, err := manager.Refresh(context.Background(), next.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected cascaded revocation, got %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	unknown, err := internal.NewTokenID()
	if err != nil {
		t.Fatalf("token id generation failed: %v", err)
	}

	if _, _, err := manager.Refresh(context.Background(), unknown); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for unknown token, got %v", err)
	}
	if _, _, err := manager.Refresh(context.Background(), "not a token"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for malformed token, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	cfg := managerTestConfig()
	mem := store.NewMemoryStore()

	manager, err := New().
		WithConfig(cfg).
		WithStore(mem).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer manager.Close()

	tokenID, err := internal.NewTokenID()
	if err != nil {
		t.Fatalf("token id generation failed: %v", err)
	}

	now := time.Now().UTC().Unix()
	err = mem.Create(context.Background(), &store.Record{
		TokenID:   tokenID,
		SessionID: internal.NewSessionID(),
		Principal: "alice",
		CreatedAt: now - 7200,
		ExpiresAt: now - 3600,
	})
	if err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	if _, _, err := manager.Refresh(context.Background(), tokenID); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}

	// Expiry does not burn the record as reuse; the session stays intact.
	rec, err := mem.Get(context.Background(), tokenID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.Used || rec.Invalidated {
		t.Fatal("expired presentation must not consume or invalidate the record")
	}
}

func TestRevokeStopsRefresh(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := manager.Revoke(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if _, _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after revoke, got %v", err)
	}

	// Idempotent: revoking again, or revoking the unknown, still succeeds.
	if err := manager.Revoke(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
	if err := manager.Revoke(context.Background(), internal.NewSessionID()); err != nil {
		t.Fatalf("revoke of unknown session failed: %v", err)
	}
}

func TestRevokeByAccessToken(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := manager.RevokeByAccessToken(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("revoke by access token failed: %v", err)
	}
	if _, _, err := manager.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}

	if err := manager.RevokeByAccessToken(context.Background(), "garbage"); err == nil {
		t.Fatal("expected error for unverifiable token")
	}
}

func TestValidateAccessStatelessAfterRevoke(t *testing.T) {
	manager, _, done := newTestManager(t, managerTestConfig())
	defer done()

	pair, err := manager.IssueWithResult(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := manager.Revoke(context.Background(), pair.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	// Access tokens are self-contained; revocation only stops refresh.
	if _, err := manager.ValidateAccess(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("access token must stay valid until expiry: %v", err)
	}
}

func TestManagerNotReady(t *testing.T) {
	var manager *Manager

	if _, _, err := manager.Issue(context.Background(), "alice"); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady, got %v", err)
	}
	if _, _, err := manager.Refresh(context.Background(), "x"); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady, got %v", err)
	}
	if err := manager.Revoke(context.Background(), "x"); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady, got %v", err)
	}
}
