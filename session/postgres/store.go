package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goCred/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the sessions table. Apply it through your migration tool or
// with [Store.Migrate].
const Schema = `
CREATE TABLE IF NOT EXISTS refresh_sessions (
	session_id  text        PRIMARY KEY,
	token_hash  bytea       NOT NULL UNIQUE,
	owner_id    text        NOT NULL,
	created_at  timestamptz NOT NULL,
	expires_at  timestamptz NOT NULL,
	revoked     boolean     NOT NULL DEFAULT false,
	ip_address  text        NOT NULL DEFAULT '',
	user_agent  text        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS refresh_sessions_owner_idx ON refresh_sessions (owner_id);
`

const (
	insertSessionSQL = `
INSERT INTO refresh_sessions (session_id, token_hash, owner_id, created_at, expires_at, revoked, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, false, $6, $7)`

	findSessionSQL = `
SELECT session_id, owner_id, created_at, expires_at, revoked, ip_address, user_agent
FROM refresh_sessions
WHERE token_hash = $1`

	revokeSessionSQL = `
UPDATE refresh_sessions SET revoked = true WHERE token_hash = $1`

	revokeActiveSessionSQL = `
UPDATE refresh_sessions SET revoked = true
WHERE token_hash = $1 AND NOT revoked AND expires_at >= $2`

	sessionStateSQL = `
SELECT revoked, expires_at FROM refresh_sessions WHERE token_hash = $1`
)

// Store is a PostgreSQL-backed session repository.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

// - 23505 unique violation → session.ErrConflict
// - no rows → session.ErrNotFound
// - anything else → session.ErrUnavailable
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return session.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return session.ErrConflict
	}

	return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
}

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.pool.Exec(ctx, insertSessionSQL,
		sess.ID,
		sess.TokenHash[:],
		sess.OwnerID,
		sess.CreatedAt.UTC(),
		sess.ExpiresAt.UTC(),
		sess.IPAddress,
		sess.UserAgent,
	)
	return mapError(err)
}

func (s *Store) FindByToken(ctx context.Context, hash session.TokenHash) (*session.Session, error) {
	sess := &session.Session{TokenHash: hash}

	err := s.pool.QueryRow(ctx, findSessionSQL, hash[:]).Scan(
		&sess.ID,
		&sess.OwnerID,
		&sess.CreatedAt,
		&sess.ExpiresAt,
		&sess.Revoked,
		&sess.IPAddress,
		&sess.UserAgent,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return sess, nil
}

func (s *Store) Revoke(ctx context.Context, hash session.TokenHash) error {
	tag, err := s.pool.Exec(ctx, revokeSessionSQL, hash[:])
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Rotate revokes oldHash and inserts next in one transaction.
func (s *Store) Rotate(ctx context.Context, oldHash session.TokenHash, next *session.Session, now time.Time) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback session rotation", "error", rErr)
		}
	}()

	tag, err := tx.Exec(ctx, revokeActiveSessionSQL, oldHash[:], now.UTC())
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return s.inactiveReason(ctx, tx, oldHash, now)
	}

	if _, err := tx.Exec(ctx, insertSessionSQL,
		next.ID,
		next.TokenHash[:],
		next.OwnerID,
		next.CreatedAt.UTC(),
		next.ExpiresAt.UTC(),
		next.IPAddress,
		next.UserAgent,
	); err != nil {
		return mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) inactiveReason(ctx context.Context, tx pgx.Tx, hash session.TokenHash, now time.Time) error {
	var (
		revoked   bool
		expiresAt time.Time
	)
	if err := tx.QueryRow(ctx, sessionStateSQL, hash[:]).Scan(&revoked, &expiresAt); err != nil {
		return mapError(err)
	}
	if revoked {
		return session.ErrRevoked
	}
	if expiresAt.Before(now) {
		return session.ErrExpired
	}
	return session.ErrRevoked
}
