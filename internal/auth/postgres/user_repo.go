// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package postgres persists registered users with PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/wardenmc/warden/internal/auth"
)

// poolIface is the pgx pool surface the repository uses. pgxpool.Pool and
// the pgxmock pool both satisfy it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Save upserts the user keyed by display name. Names differing only in
// case target the same row.
func (r *UserRepository) Save(ctx context.Context, u *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			display_name, identifier, credential_hash, hash_algorithm,
			account_mode, origin_address, created_at, registered_at,
			last_auth_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (LOWER(display_name)) DO UPDATE SET
			identifier = EXCLUDED.identifier,
			credential_hash = EXCLUDED.credential_hash,
			hash_algorithm = EXCLUDED.hash_algorithm,
			account_mode = EXCLUDED.account_mode,
			origin_address = EXCLUDED.origin_address,
			registered_at = EXCLUDED.registered_at,
			last_auth_at = EXCLUDED.last_auth_at
	`,
		u.Name,
		u.Identifier,
		u.CredentialHash,
		string(u.HashAlgorithm),
		string(u.Mode),
		u.Address,
		u.CreatedAt,
		nullableTime(u.RegisteredAt),
		nullableTime(u.LastAuthAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_SAVE_CONFLICT").
				With("name", u.Name).
				With("constraint", pgErr.ConstraintName).
				Wrap(err)
		}
		return oops.Code("USER_SAVE_FAILED").
			With("name", u.Name).
			Wrap(err)
	}
	return nil
}

// Delete removes the row for the display name.
func (r *UserRepository) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM users WHERE LOWER(display_name) = LOWER($1)`, name)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("name", name).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("name", name).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// LoadAll fetches every stored user.
func (r *UserRepository) LoadAll(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT display_name, identifier, credential_hash, hash_algorithm,
		       account_mode, origin_address, created_at, registered_at,
		       last_auth_at
		FROM users
	`)
	if err != nil {
		return nil, oops.Code("USER_LOAD_FAILED").
			With("operation", "query users").
			Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LOAD_FAILED").
				With("operation", "scan user").
				Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LOAD_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u            auth.User
		algorithm    string
		mode         string
		registeredAt *time.Time
		lastAuthAt   *time.Time
	)
	err := row.Scan(
		&u.Name,
		&u.Identifier,
		&u.CredentialHash,
		&algorithm,
		&mode,
		&u.Address,
		&u.CreatedAt,
		&registeredAt,
		&lastAuthAt,
	)
	if err != nil {
		return nil, err
	}
	u.HashAlgorithm = auth.Algorithm(algorithm)
	u.Mode = auth.AccountMode(mode)
	if registeredAt != nil {
		u.RegisteredAt = *registeredAt
	}
	if lastAuthAt != nil {
		u.LastAuthAt = *lastAuthAt
	}
	return &u, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
