// Copyright 2026 The Giftswap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, role, created_at, updated_at`

// Create inserts the user and its credentials in one transaction
func (r *UserRepository) Create(ctx context.Context, user *identity.User, credentials *identity.Credentials) error {
	now := time.Now()
	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, user.ID, user.Name, user.Email, string(user.Role), now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return identity.ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		if credentials == nil {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO credentials (user_id, password_hash, updated_at)
			VALUES ($1, $2, $3)
		`, user.ID, credentials.PasswordHash, now)
		if err != nil {
			return fmt.Errorf("failed to insert credentials: %w", err)
		}
		credentials.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

// GetCredentials retrieves user credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var creds identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&creds.UserID, &creds.PasswordHash, &creds.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &creds, nil
}

// Exists reports whether the id refers to a user
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

// Search matches name or email case-insensitively
func (r *UserRepository) Search(ctx context.Context, query string, limit int) ([]*identity.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(name) LIKE $1 OR LOWER(email) LIKE $1
		ORDER BY name, id
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(ctx context.Context, role authz.Role) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*identity.User, error) {
	var user identity.User
	var role string
	err := row.Scan(&user.ID, &user.Name, &user.Email, &role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Role = authz.Role(role)
	return &user, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
