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
	"fmt"

	"github.com/giftswap/giftswap/internal/authz"
)

// GrantRepository implements authz.GrantRepository
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Insert relies on the (user_id, permission_code) primary key for atomicity.
// The no-op DO UPDATE locks and returns the row that won, so a conflicting
// row deleted concurrently is retried as a fresh insert by Postgres.
// xmax is zero only on a row this statement inserted.
func (r *GrantRepository) Insert(ctx context.Context, g *authz.Grant) (bool, error) {
	var inserted bool
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO user_permissions (user_id, permission_code, resource_id, granted_at, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, permission_code) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, permission_code, resource_id, granted_at, granted_by, (xmax = 0)
	`, g.UserID, g.PermissionCode, g.ResourceID, g.GrantedAt, g.GrantedBy).Scan(
		&g.UserID, &g.PermissionCode, &g.ResourceID, &g.GrantedAt, &g.GrantedBy, &inserted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert grant: %w", err)
	}
	return inserted, nil
}

// Delete removes the grant if present
func (r *GrantRepository) Delete(ctx context.Context, userID, code string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_permissions WHERE user_id = $1 AND permission_code = $2
	`, userID, code)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// Exists reports whether the user holds exactly this code
func (r *GrantRepository) Exists(ctx context.Context, userID, code string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_permissions WHERE user_id = $1 AND permission_code = $2
		)
	`, userID, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// ListForUser returns all grants held by a user ordered by code
func (r *GrantRepository) ListForUser(ctx context.Context, userID string) ([]*authz.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT user_id, permission_code, resource_id, granted_at, granted_by
		FROM user_permissions
		WHERE user_id = $1
		ORDER BY permission_code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	grants := []*authz.Grant{}
	for rows.Next() {
		var g authz.Grant
		if err := rows.Scan(&g.UserID, &g.PermissionCode, &g.ResourceID, &g.GrantedAt, &g.GrantedBy); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

// DeleteByResource removes every grant scoped to resourceID
func (r *GrantRepository) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM user_permissions WHERE resource_id = $1`, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scoped grants: %w", err)
	}
	return tag.RowsAffected(), nil
}
