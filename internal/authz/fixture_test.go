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

package authz_test

import (
	"context"
	"sync"
	"testing"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/store/memory"
)

// staticUsers is a UserLookup backed by a set.
type staticUsers struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func newStaticUsers(ids ...string) *staticUsers {
	u := &staticUsers{ids: make(map[string]struct{})}
	for _, id := range ids {
		u.ids[id] = struct{}{}
	}
	return u
}

func (u *staticUsers) UserExists(_ context.Context, id string) (bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.ids[id]
	return ok, nil
}

// staticGroups is a ResourceLookup and ResourceNamer over a fixed id to name map.
type staticGroups map[string]string

func (g staticGroups) ResourceExists(_ context.Context, _, id string) (bool, error) {
	_, ok := g[id]
	return ok, nil
}

func (g staticGroups) ResourceNames(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := g[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fixture struct {
	repo       *memory.GrantRepository
	store      *authz.Store
	authorizer *authz.Authorizer
	bundles    *authz.BundleGranter
	admin      *authz.AdminService
	audit      *audit.MemoryLogger
	groups     staticGroups
}

const (
	userA   = "user-a"
	userB   = "user-b"
	adminID = "admin-1"
	groupA  = "G123"
	groupB  = "G456"
)

var (
	alice = authz.Subject{UserID: userA, Role: authz.RoleUser}
	bob   = authz.Subject{UserID: userB, Role: authz.RoleUser}
	root  = authz.Subject{UserID: adminID, Role: authz.RoleAdmin}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   memory.NewGrantRepository(),
		audit:  &audit.MemoryLogger{},
		groups: staticGroups{groupA: "Family", groupB: "Office"},
	}
	catalog := authz.DefaultCatalog()
	f.store = authz.NewStore(f.repo, catalog, newStaticUsers(userA, userB, adminID), f.groups, f.audit)
	f.authorizer = authz.NewAuthorizer(f.store, catalog, f.audit)
	f.bundles = authz.NewBundleGranter(f.store, f.audit)
	f.admin = authz.NewAdminService(f.store, f.authorizer, f.groups)
	return f
}

func (f *fixture) grant(t *testing.T, userID, code string) {
	t.Helper()
	if _, _, err := f.store.Grant(context.Background(), userID, authz.MustParseCode(code), "test"); err != nil {
		t.Fatalf("grant %s to %s: %v", code, userID, err)
	}
}
