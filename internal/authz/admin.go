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
	"sort"
)

// ResourcePermissions is the scoped slice of a partition for one resource.
type ResourcePermissions struct {
	ResourceID   string       `json:"resource_id"`
	ResourceName string       `json:"resource_name"`
	Permissions  []Permission `json:"permissions"`
}

// PermissionGroups splits permissions into system and per-resource sets.
type PermissionGroups struct {
	System []Permission           `json:"system"`
	Scoped []*ResourcePermissions `json:"scoped"`
}

// AdminService lets a privileged caller inspect and change other users' grants.
type AdminService struct {
	store      *Store
	authorizer *Authorizer
	namer      ResourceNamer
}

// NewAdminService creates the admin surface. namer may be nil, in which case
// scoped permissions are labeled with their resource id.
func NewAdminService(store *Store, authorizer *Authorizer, namer ResourceNamer) *AdminService {
	return &AdminService{store: store, authorizer: authorizer, namer: namer}
}

// ListCatalog returns the unscoped catalog passing f.
func (s *AdminService) ListCatalog(f PermissionFilter) []Permission {
	return s.store.Catalog().List(f)
}

// ListCategories returns the catalog categories in sorted order.
func (s *AdminService) ListCategories() []string {
	return s.store.Catalog().Categories()
}

// ListGrantedPermissions returns the target's grants passing f.
func (s *AdminService) ListGrantedPermissions(ctx context.Context, caller Subject, userID string, f PermissionFilter) ([]Permission, error) {
	if err := s.authorizer.Require(ctx, caller, ResourceAdmin, ActionViewDashboard, ""); err != nil {
		return nil, err
	}

	perms, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.nameResources(ctx, perms); err != nil {
		return nil, err
	}
	return filter(perms, f), nil
}

// ListAvailablePermissions returns what could still be granted to the target:
// unscoped templates the target does not hold, and for each id in resourceIDs
// the scopable templates scoped to it that the target does not hold.
func (s *AdminService) ListAvailablePermissions(ctx context.Context, caller Subject, userID string, resourceIDs []string, f PermissionFilter) ([]Permission, error) {
	if err := s.authorizer.Require(ctx, caller, ResourceAdmin, ActionViewDashboard, ""); err != nil {
		return nil, err
	}

	granted, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		held[p.Code] = struct{}{}
	}

	catalog := s.store.Catalog()
	var out []Permission
	for _, t := range catalog.Templates() {
		if _, ok := held[t.Code().String()]; ok {
			continue
		}
		p, _ := catalog.Resolve(t.Code())
		out = append(out, p)
	}

	names, err := s.resourceNames(ctx, resourceIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range dedupe(resourceIDs) {
		name, known := names[id]
		if s.namer != nil && !known {
			continue
		}
		for _, t := range catalog.Templates() {
			if !t.Scopable {
				continue
			}
			code := t.Code().Scoped(id)
			if _, ok := held[code.String()]; ok {
				continue
			}
			p, _ := catalog.Resolve(code)
			p.ResourceName = name
			out = append(out, p)
		}
	}
	return filter(out, f), nil
}

// GrantToUser parses rawCode and grants it to the target.
// created reports whether a new grant was written.
func (s *AdminService) GrantToUser(ctx context.Context, caller Subject, targetUserID, rawCode string) (*Grant, bool, error) {
	if err := s.authorizer.Require(ctx, caller, ResourceAdmin, ActionManagePermissions, ""); err != nil {
		return nil, false, err
	}
	code, err := ParseCode(rawCode)
	if err != nil {
		return nil, false, err
	}
	return s.store.Grant(ctx, targetUserID, code, caller.UserID)
}

// RevokeFromUser parses rawCode and revokes it from the target.
func (s *AdminService) RevokeFromUser(ctx context.Context, caller Subject, targetUserID, rawCode string) error {
	if err := s.authorizer.Require(ctx, caller, ResourceAdmin, ActionManagePermissions, ""); err != nil {
		return err
	}
	code, err := ParseCode(rawCode)
	if err != nil {
		return err
	}
	return s.store.Revoke(ctx, targetUserID, code, caller.UserID)
}

// PartitionPermissions groups perms into system and scoped-by-resource sets.
// Scoped groups are labeled by the namer and sorted by name, then id.
func (s *AdminService) PartitionPermissions(ctx context.Context, perms []Permission) (*PermissionGroups, error) {
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Code)
	}
	idSet := ExtractResourceIDs(codes)
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	names, err := s.resourceNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &PermissionGroups{System: []Permission{}, Scoped: []*ResourcePermissions{}}
	byID := make(map[string]*ResourcePermissions, len(ids))
	for _, p := range perms {
		code, err := ParseCode(p.Code)
		if err != nil || !code.IsScoped() {
			out.System = append(out.System, p)
			continue
		}
		rp, ok := byID[code.ResourceID]
		if !ok {
			name := names[code.ResourceID]
			if name == "" {
				name = code.ResourceID
			}
			rp = &ResourcePermissions{ResourceID: code.ResourceID, ResourceName: name}
			byID[code.ResourceID] = rp
			out.Scoped = append(out.Scoped, rp)
		}
		if p.ResourceName == "" {
			p.ResourceName = rp.ResourceName
		}
		rp.Permissions = append(rp.Permissions, p)
	}

	sort.SliceStable(out.Scoped, func(i, j int) bool {
		if out.Scoped[i].ResourceName != out.Scoped[j].ResourceName {
			return out.Scoped[i].ResourceName < out.Scoped[j].ResourceName
		}
		return out.Scoped[i].ResourceID < out.Scoped[j].ResourceID
	})
	return out, nil
}

func (s *AdminService) nameResources(ctx context.Context, perms []Permission) error {
	ids := make([]string, 0)
	for _, p := range perms {
		if p.ResourceID != "" {
			ids = append(ids, p.ResourceID)
		}
	}
	names, err := s.resourceNames(ctx, ids)
	if err != nil {
		return err
	}
	for i := range perms {
		if perms[i].ResourceID != "" {
			perms[i].ResourceName = names[perms[i].ResourceID]
		}
	}
	return nil
}

func (s *AdminService) resourceNames(ctx context.Context, ids []string) (map[string]string, error) {
	ids = dedupe(ids)
	if s.namer == nil || len(ids) == 0 {
		return map[string]string{}, nil
	}
	names, err := s.namer.ResourceNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resource names: %w", err)
	}
	return names, nil
}

func filter(perms []Permission, f PermissionFilter) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
