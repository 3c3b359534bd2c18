package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore is a pgx-backed [Store]. MarkUsed is a single conditional
// UPDATE guarded by a rows-affected check, so the consume races at row level
// exactly as the contract requires.
//
// The table name is interpolated into SQL at construction time and must be a
// trusted identifier, never user input.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a [PostgresStore] over the given pool. table
// defaults to "refresh_tokens" when empty.
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	if table == "" {
		table = "refresh_tokens"
	}
	return &PostgresStore{
		pool:  pool,
		table: table,
	}
}

// EnsureSchema creates the backing table and indexes when they do not exist.
// Intended for embedded deployments and tests; production schemas are usually
// managed by a migration tool.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			token_id     text PRIMARY KEY,
			session_id   text NOT NULL,
			principal    text NOT NULL,
			created_at   bigint NOT NULL,
			expires_at   bigint NOT NULL,
			used         boolean NOT NULL DEFAULT false,
			invalidated  boolean NOT NULL DEFAULT false,
			rotated_from text
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expires_idx ON %s (expires_at)`, s.table, s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Create inserts rec; a primary-key violation maps to [ErrConflict].
func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(token_id, session_id, principal, created_at, expires_at, used, invalidated, rotated_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`, s.table)

	_, err := s.pool.Exec(ctx, query,
		rec.TokenID, rec.SessionID, rec.Principal,
		rec.CreatedAt, rec.ExpiresAt, rec.Used, rec.Invalidated, rec.RotatedFrom,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the record for tokenID, or [ErrNotFound].
func (s *PostgresStore) Get(ctx context.Context, tokenID string) (*Record, error) {
	query := fmt.Sprintf(`SELECT session_id, principal, created_at, expires_at, used, invalidated, COALESCE(rotated_from, '')
		FROM %s WHERE token_id = $1`, s.table)

	rec := &Record{TokenID: tokenID}
	err := s.pool.QueryRow(ctx, query, tokenID).Scan(
		&rec.SessionID, &rec.Principal, &rec.CreatedAt, &rec.ExpiresAt,
		&rec.Used, &rec.Invalidated, &rec.RotatedFrom,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

// MarkUsed is the single conditional write the rotation protocol depends on.
func (s *PostgresStore) MarkUsed(ctx context.Context, tokenID string) error {
	query := fmt.Sprintf(`UPDATE %s SET used = true
		WHERE token_id = $1 AND NOT used AND NOT invalidated`, s.table)

	tag, err := s.pool.Exec(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE token_id = $1)`, s.table)
	if err := s.pool.QueryRow(ctx, existsQuery, tokenID).Scan(&exists); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyConsumed
}

// InvalidateSession marks all records in the session as invalidated.
func (s *PostgresStore) InvalidateSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`UPDATE %s SET invalidated = true WHERE session_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteExpiredBefore bulk-deletes records expiring strictly before cutoff.
func (s *PostgresStore) DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
