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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/store/memory"
)

// TestPurpose: Validates that granting the same code twice yields a single grant.
// Scope: Unit Test
// Security: Grant table uniqueness
// Expected: First grant reports created, second returns the existing grant unchanged without error.
// Test Case ID: AZ-STORE-01
func TestAuthz_Store_IdempotentGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := authz.MustParseCode("members:read:" + groupA)

	first, created, err := f.store.Grant(ctx, userA, code, adminID)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.store.Grant(ctx, userA, code, "someone-else")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.GrantedAt, second.GrantedAt)
	assert.Equal(t, adminID, second.GrantedBy)

	perms, err := f.store.ListForUser(ctx, userA)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
	assert.Len(t, f.audit.OfType(audit.TypePermissionGranted), 1)
}

// TestPurpose: Validates that revoking a code that was never granted succeeds.
// Scope: Unit Test
// Security: Idempotent revocation
// Expected: No error and no grants.
// Test Case ID: AZ-STORE-02
func TestAuthz_Store_IdempotentRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Revoke(ctx, userA, authz.MustParseCode("draws:execute:"+groupA), adminID))
	require.NoError(t, f.store.Revoke(ctx, userA, authz.MustParseCode("draws:execute:"+groupA), adminID))

	perms, err := f.store.ListForUser(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

// TestPurpose: Validates that grant followed by revoke restores the initial state.
// Scope: Unit Test
// Security: Revocation effectiveness
// Expected: IsGranted is false after the round trip.
// Test Case ID: AZ-STORE-03
func TestAuthz_Store_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := authz.MustParseCode("groups:update:" + groupA)

	ok, err := f.store.IsGranted(ctx, userA, code)
	require.NoError(t, err)
	require.False(t, ok)

	f.grant(t, userA, code.String())
	ok, err = f.store.IsGranted(ctx, userA, code)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.store.Revoke(ctx, userA, code, adminID))
	ok, err = f.store.IsGranted(ctx, userA, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates that scoped grants for one group never affect another group.
// Scope: Unit Test
// Security: Resource scoping isolation
// Expected: Granting and revoking on groupA leaves groupB unchanged.
// Test Case ID: AZ-STORE-04
func TestAuthz_Store_ScopingIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	onA := authz.MustParseCode("members:read:" + groupA)
	onB := authz.MustParseCode("members:read:" + groupB)

	f.grant(t, userA, onB.String())

	f.grant(t, userA, onA.String())
	ok, err := f.store.IsGranted(ctx, userA, onB)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.store.Revoke(ctx, userA, onA, adminID))
	ok, err = f.store.IsGranted(ctx, userA, onB)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestPurpose: Validates the permission count invariant.
// Scope: Unit Test
// Security: Grant table integrity
// Expected: N distinct new grants add exactly N entries; one revoke removes exactly one.
// Test Case ID: AZ-STORE-05
func TestAuthz_Store_CountInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.store.ListForUser(ctx, userB)
	require.NoError(t, err)

	codes := []string{"groups:create", "members:read", "draws:read:" + groupA, "exclusions:delete:" + groupB}
	for _, c := range codes {
		f.grant(t, userB, c)
	}
	after, err := f.store.ListForUser(ctx, userB)
	require.NoError(t, err)
	assert.Equal(t, len(before)+len(codes), len(after))

	require.NoError(t, f.store.Revoke(ctx, userB, authz.MustParseCode("members:read"), adminID))
	final, err := f.store.ListForUser(ctx, userB)
	require.NoError(t, err)
	assert.Equal(t, len(after)-1, len(final))
}

// TestPurpose: Validates the store's failure modes.
// Scope: Unit Test
// Security: Prevents grants of nonsense codes or to nonexistent principals
// Expected: Unknown user, unknown template, scoped admin code and unknown group are rejected with typed errors.
// Test Case ID: AZ-STORE-06
func TestAuthz_Store_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.store.Grant(ctx, "ghost", authz.MustParseCode("groups:read"), adminID)
	assert.ErrorIs(t, err, authz.ErrUserNotFound)

	err = f.store.Revoke(ctx, "ghost", authz.MustParseCode("groups:read"), adminID)
	assert.ErrorIs(t, err, authz.ErrUserNotFound)

	_, err = f.store.ListForUser(ctx, "ghost")
	assert.ErrorIs(t, err, authz.ErrUserNotFound)

	_, _, err = f.store.Grant(ctx, userA, authz.MustParseCode("groups:fly"), adminID)
	assert.ErrorIs(t, err, authz.ErrUnknownPermission)

	_, _, err = f.store.Grant(ctx, userA, authz.MustParseCode("admin:manage_permissions:"+groupA), adminID)
	assert.ErrorIs(t, err, authz.ErrMalformedCode)

	_, _, err = f.store.Grant(ctx, userA, authz.MustParseCode("groups:read:nope"), adminID)
	assert.ErrorIs(t, err, authz.ErrResourceNotFound)

	// arbitrary ids scope fine when no resource lookup is configured
	loose := authz.NewStore(f.repo, authz.DefaultCatalog(), newStaticUsers(userA), nil, nil)
	_, created, err := loose.Grant(ctx, userA, authz.MustParseCode("groups:read:anything"), adminID)
	require.NoError(t, err)
	assert.True(t, created)
}

// TestPurpose: Validates that listed grants carry catalog metadata resolved from their template.
// Scope: Unit Test
// Security: N/A
// Expected: Scoped codes inherit name, description and category of the unscoped template.
// Test Case ID: AZ-STORE-07
func TestAuthz_Store_ListForUserMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, userA, "members:notify:"+groupA)
	f.grant(t, userA, "admin:view_dashboard")

	perms, err := f.store.ListForUser(ctx, userA)
	require.NoError(t, err)
	require.Len(t, perms, 2)

	assert.Equal(t, "admin:view_dashboard", perms[0].Code)
	assert.Equal(t, authz.CategoryAdmin, perms[0].Category)
	assert.NotNil(t, perms[0].GrantedAt)

	assert.Equal(t, "members:notify:"+groupA, perms[1].Code)
	assert.Equal(t, "Notify members", perms[1].Name)
	assert.Equal(t, groupA, perms[1].ResourceID)
	assert.False(t, perms[1].CreatedAt.IsZero())
}

// TestPurpose: Validates that concurrent grants of the same code produce exactly one grant.
// Scope: Concurrency Test
// Security: Grant table uniqueness under contention
// Expected: Exactly one caller observes created=true and exactly one row exists.
// Test Case ID: AZ-STORE-08
func TestAuthz_Store_ConcurrentGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := authz.MustParseCode("exclusions:read:" + groupA)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := f.store.Grant(ctx, userA, code, fmt.Sprintf("worker-%d", i))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, f.repo.Len())
}

// TestPurpose: Validates that concurrent grant and revoke of the same code settle in a serial state.
// Scope: Concurrency Test
// Security: No half-granted state under contention
// Expected: After all operations the code is either granted once or not at all.
// Test Case ID: AZ-STORE-09
func TestAuthz_Store_ConcurrentGrantRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := authz.MustParseCode("draws:read:" + groupA)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := f.store.Grant(ctx, userA, code, adminID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.store.Revoke(ctx, userA, code, adminID))
		}()
	}
	wg.Wait()

	perms, err := f.store.ListForUser(ctx, userA)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(perms), 1)
	ok, err := f.store.IsGranted(ctx, userA, code)
	require.NoError(t, err)
	assert.Equal(t, len(perms) == 1, ok)
}

// TestPurpose: Validates that revoking a scope removes every grant on that resource for every user.
// Scope: Unit Test
// Security: No dangling permissions on deleted resources
// Expected: All grants scoped to groupA are gone; groupB and unscoped grants remain.
// Test Case ID: AZ-STORE-10
func TestAuthz_Store_RevokeScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.bundles.GrantGroupBundle(ctx, userA, groupA))
	f.grant(t, userB, "members:read:"+groupA)
	f.grant(t, userB, "members:read:"+groupB)
	f.grant(t, userB, "groups:create")

	n, err := f.store.RevokeScope(ctx, groupA, adminID)
	require.NoError(t, err)
	assert.Equal(t, int64(authz.GroupBundleSize+1), n)

	codesA, err := f.store.GrantedCodes(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, codesA)

	codesB, err := f.store.GrantedCodes(ctx, userB)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"groups:create", "members:read:" + groupB}, codesB)

	_, err = f.store.RevokeScope(ctx, "", adminID)
	assert.ErrorIs(t, err, authz.ErrMalformedCode)
}

// vanishingGroup reports the group as present on the first lookup only,
// as if it were deleted right after the pre-insert check.
type vanishingGroup struct {
	mu    sync.Mutex
	calls int
}

func (v *vanishingGroup) ResourceExists(context.Context, string, string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.calls == 1, nil
}

// TestPurpose: Validates that a grant on a group deleted mid-grant is not left behind.
// Scope: Unit Test
// Security: Scoped codes must always name an existing resource
// Expected: Grant returns ErrResourceNotFound and the user holds no code for the group.
// Test Case ID: AZ-STORE-11
func TestAuthz_Store_GrantOnVanishedResource(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewGrantRepository()
	groups := &vanishingGroup{}
	store := authz.NewStore(repo, authz.DefaultCatalog(), newStaticUsers(userA), groups, nil)

	_, _, err := store.Grant(ctx, userA, authz.MustParseCode("members:read:"+groupA), adminID)
	require.ErrorIs(t, err, authz.ErrResourceNotFound)
	assert.Equal(t, 2, groups.calls)

	codes, err := store.GrantedCodes(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, codes)
}
