package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"greencredits/pkg/platform/sentinel"
)

const Schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id         TEXT PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	password_digest BYTEA NOT NULL,
	role            TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
`

// PostgresStore persists users in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, email, password_digest, role, created_at)
		VALUES ($1, lower($2), $3, $4, $5)`,
		u.UserID, u.Email, u.PasswordDigest, u.Role, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert user %s: %w", u.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user %s: %w", u.Email, err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, email, password_digest, role, created_at
		FROM users WHERE email = lower($1)`, email,
	).Scan(&u.UserID, &u.Email, &u.PasswordDigest, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("email %s: %w", email, sentinel.ErrNotFound)
		}
		return User{}, fmt.Errorf("find user %s: %w", email, err)
	}
	return u, nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*InMemoryStore)(nil)
)
