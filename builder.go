package refreshguard

import (
	"errors"
	"time"

	"github.com/MrEthical07/refreshguard/internal"
	"github.com/MrEthical07/refreshguard/internal/flows"
	"github.com/MrEthical07/refreshguard/jwt"
	"github.com/MrEthical07/refreshguard/store"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by refreshguard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides backend selection with an explicit [store.Store]. Use
// this to run on Postgres via [store.NewPostgresStore], or in-process via
// [store.NewMemoryStore]. When set, WithRedis is ignored.
func (b *Builder) WithStore(st store.Store) *Builder {
	b.store = st
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- TOKEN STORE --------
	tokenStore := b.store
	if tokenStore == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or explicit store required")
		}
		tokenStore = store.NewRedisStore(b.redis, cfg.Store.RedisPrefix, cfg.Store.RetentionGrace)
	}

	// -------- ACCESS CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		config: cfg,
		store:  tokenStore,
		codec:  codec,
	}

	manager.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	manager.metrics = NewMetrics(cfg.Metrics)
	manager.flows = buildFlowDeps(manager)

	if cfg.Sweeper.Enabled {
		manager.sweeper = newSweeper(manager, cfg.Sweeper)
	}

	b.built = true

	return manager, nil
}

func buildFlowDeps(m *Manager) flows.Deps {
	issueAccess := func(principal, sessionID string) (string, error) {
		return m.codec.Encode(principal, sessionID)
	}

	return flows.Deps{
		Issue: flows.IssueDeps{
			NewSessionID:     internal.NewSessionID,
			NewTokenID:       internal.NewTokenID,
			Now:              time.Now,
			RefreshTTL:       m.config.JWT.RefreshTTL,
			IssueAccessToken: issueAccess,
			Store:            m.store,
			Conflict:         store.ErrConflict,
			Warn:             warnf,
		},
		Refresh: flows.RefreshDeps{
			ValidateTokenID:  internal.ValidateTokenID,
			NewTokenID:       internal.NewTokenID,
			Now:              time.Now,
			RefreshTTL:       m.config.JWT.RefreshTTL,
			IssueAccessToken: issueAccess,
			Store:            m.store,
			NotFound:         store.ErrNotFound,
			AlreadyConsumed:  store.ErrAlreadyConsumed,
			Conflict:         store.ErrConflict,
			Warn:             warnf,
		},
		Revoke: flows.RevokeDeps{
			Store: m.store,
		},
	}
}
