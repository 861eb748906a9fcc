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

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrMalformedCode     = errors.New("malformed permission code")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrUserNotFound      = errors.New("user not found")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
)

// ForbiddenError carries the reason an authorization check was denied.
type ForbiddenError struct {
	Code   string
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// Is lets callers match with errors.Is(err, ErrForbidden).
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// Permission describes a grantable capability.
// For scoped codes ResourceID is set and ResourceName may be filled in for display.
type Permission struct {
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	CreatedAt    time.Time  `json:"created_at"`
	ResourceID   string     `json:"resource_id,omitempty"`
	ResourceName string     `json:"resource_name,omitempty"`
	GrantedAt    *time.Time `json:"granted_at,omitempty"`
}

// Grant binds one user to one permission code.
type Grant struct {
	UserID         string    `json:"user_id"`
	PermissionCode string    `json:"permission_code"`
	ResourceID     string    `json:"resource_id,omitempty"`
	GrantedAt      time.Time `json:"granted_at"`
	GrantedBy      string    `json:"granted_by,omitempty"`
}

// GrantRepository persists grants. Implementations must make Insert and Delete
// atomic per (user_id, permission_code).
type GrantRepository interface {
	// Insert stores g unless a grant for the same pair exists.
	// It reports whether a row was created; when false, g is overwritten with the stored grant.
	Insert(ctx context.Context, g *Grant) (bool, error)

	// Delete removes the grant if present. Missing grants are not an error.
	Delete(ctx context.Context, userID, code string) error

	// Exists reports whether the user holds exactly this code.
	Exists(ctx context.Context, userID, code string) (bool, error)

	// ListForUser returns all grants held by a user ordered by code.
	ListForUser(ctx context.Context, userID string) ([]*Grant, error)

	// DeleteByResource removes every grant scoped to resourceID.
	DeleteByResource(ctx context.Context, resourceID string) (int64, error)
}

// UserLookup tells the store whether a user id refers to an existing user.
type UserLookup interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// ResourceLookup tells the store whether a scoped resource exists.
type ResourceLookup interface {
	ResourceExists(ctx context.Context, resource, resourceID string) (bool, error)
}

// ResourceNamer resolves human readable names for scoped resource ids.
type ResourceNamer interface {
	ResourceNames(ctx context.Context, resourceIDs []string) (map[string]string, error)
}
