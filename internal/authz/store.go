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
	"fmt"
	"log/slog"
	"time"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/observability/logger"
)

// Recorder receives permission metrics. All methods must be safe for concurrent use.
type Recorder interface {
	RecordDecision(ctx context.Context, resource string, allowed bool)
	RecordGrant(ctx context.Context, created bool)
	RecordRevoke(ctx context.Context)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(context.Context, string, bool) {}
func (nopRecorder) RecordGrant(context.Context, bool)            {}
func (nopRecorder) RecordRevoke(context.Context)                 {}

// Store is the only writer of the grant collection.
type Store struct {
	repo        GrantRepository
	catalog     *Catalog
	users       UserLookup
	resources   ResourceLookup
	auditLogger audit.Logger
	recorder    Recorder
}

// NewStore creates a permission store. resources may be nil, in which case
// scoped grants are not checked against existing resources.
func NewStore(
	repo GrantRepository,
	catalog *Catalog,
	users UserLookup,
	resources ResourceLookup,
	auditLogger audit.Logger,
) *Store {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Store{
		repo:        repo,
		catalog:     catalog,
		users:       users,
		resources:   resources,
		auditLogger: auditLogger,
		recorder:    nopRecorder{},
	}
}

// SetRecorder attaches a metrics recorder.
func (s *Store) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// Catalog returns the catalog the store validates against.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// Grant gives userID the permission code. Granting a held code returns the
// existing grant unchanged with created=false.
func (s *Store) Grant(ctx context.Context, userID string, code Code, grantedBy string) (*Grant, bool, error) {
	if err := code.Validate(); err != nil {
		return nil, false, err
	}

	tmpl, ok := s.catalog.Lookup(code.Resource, code.Action)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownPermission, code.Template())
	}
	if code.IsScoped() && !tmpl.Scopable {
		return nil, false, fmt.Errorf("%w: %s cannot be scoped", ErrMalformedCode, code.Template())
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, false, err
	}

	if err := s.requireResource(ctx, code); err != nil {
		return nil, false, err
	}

	g := &Grant{
		UserID:         userID,
		PermissionCode: code.String(),
		ResourceID:     code.ResourceID,
		GrantedAt:      time.Now().UTC(),
		GrantedBy:      grantedBy,
	}
	created, err := s.repo.Insert(ctx, g)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert grant: %w", err)
	}

	// A resource deleted between the check and the insert has already had its
	// scope revoked, so the row just written would dangle.
	if err := s.requireResource(ctx, code); err != nil {
		if derr := s.repo.Delete(ctx, userID, g.PermissionCode); derr != nil {
			slog.ErrorContext(ctx, "failed to remove grant on deleted resource",
				logger.UserID(userID), logger.PermissionCode(g.PermissionCode), logger.Error(derr))
		}
		return nil, false, err
	}

	s.recorder.RecordGrant(ctx, created)
	if created {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypePermissionGranted,
			ActorID:  grantedBy,
			Resource: userID,
			Metadata: map[string]any{"permission_code": g.PermissionCode},
		})
	}
	return g, created, nil
}

// Revoke removes the grant. Revoking a code the user does not hold succeeds.
func (s *Store) Revoke(ctx context.Context, userID string, code Code, revokedBy string) error {
	if err := code.Validate(); err != nil {
		return err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, code.String()); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	s.recorder.RecordRevoke(ctx)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionRevoked,
		ActorID:  revokedBy,
		Resource: userID,
		Metadata: map[string]any{"permission_code": code.String()},
	})
	return nil
}

// ListForUser returns the user's grants paired with catalog metadata, ordered by code.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Permission, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	grants, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	perms := make([]Permission, 0, len(grants))
	for _, g := range grants {
		perms = append(perms, s.describe(g))
	}
	return perms, nil
}

// GrantedCodes returns the raw codes held by the user without a user existence check.
func (s *Store) GrantedCodes(ctx context.Context, userID string) ([]string, error) {
	grants, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	codes := make([]string, 0, len(grants))
	for _, g := range grants {
		codes = append(codes, g.PermissionCode)
	}
	return codes, nil
}

// IsGranted is a direct membership test on the exact code.
func (s *Store) IsGranted(ctx context.Context, userID string, code Code) (bool, error) {
	ok, err := s.repo.Exists(ctx, userID, code.String())
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return ok, nil
}

// RevokeScope removes every grant scoped to resourceID, across all users.
func (s *Store) RevokeScope(ctx context.Context, resourceID, revokedBy string) (int64, error) {
	if resourceID == "" {
		return 0, fmt.Errorf("%w: empty resource id", ErrMalformedCode)
	}
	n, err := s.repo.DeleteByResource(ctx, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke scope: %w", err)
	}

	slog.DebugContext(ctx, "revoked scoped grants", logger.ResourceID(resourceID), logger.RowsAffected(n))
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeScopeRevoked,
		ActorID:  revokedBy,
		Resource: resourceID,
		Metadata: map[string]any{"count": n},
	})
	return n, nil
}

func (s *Store) requireUser(ctx context.Context, userID string) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}

func (s *Store) requireResource(ctx context.Context, code Code) error {
	if !code.IsScoped() || s.resources == nil {
		return nil
	}
	exists, err := s.resources.ResourceExists(ctx, code.Resource, code.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to check resource: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrResourceNotFound, code.Resource, code.ResourceID)
	}
	return nil
}

// describe attaches catalog metadata to a stored grant. Rows whose template
// has left the catalog keep their code and an empty description.
func (s *Store) describe(g *Grant) Permission {
	grantedAt := g.GrantedAt
	code, err := ParseCode(g.PermissionCode)
	if err != nil {
		return Permission{Code: g.PermissionCode, GrantedAt: &grantedAt}
	}
	p, ok := s.catalog.Resolve(code)
	if !ok {
		p = Permission{Code: g.PermissionCode, ResourceID: code.ResourceID}
	}
	p.GrantedAt = &grantedAt
	return p
}
