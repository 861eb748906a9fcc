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

package group_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/group"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/giftswap/giftswap/internal/store/memory"
)

type env struct {
	svc      *group.Service
	store    *authz.Store
	admin    *authz.AdminService
	repo     *memory.GroupRepository
	notifier *group.RecordingNotifier
	audit    *audit.MemoryLogger
	owner    authz.Subject
	other    authz.Subject
	root     authz.Subject
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	users := identity.NewService(memory.NewUserRepository(), identity.NewPasswordHasher(1024, 1, 1, 16, 32), nil)
	repo := memory.NewGroupRepository()
	dir := group.NewDirectory(repo)
	logger := &audit.MemoryLogger{}
	catalog := authz.DefaultCatalog()

	store := authz.NewStore(memory.NewGrantRepository(), catalog, users, dir, logger)
	authorizer := authz.NewAuthorizer(store, catalog, logger)
	bundles := authz.NewBundleGranter(store, logger)
	notifier := &group.RecordingNotifier{}

	e := &env{
		svc:      group.NewService(repo, authorizer, store, bundles, notifier, logger),
		store:    store,
		admin:    authz.NewAdminService(store, authorizer, dir),
		repo:     repo,
		notifier: notifier,
		audit:    logger,
	}

	mk := func(name, email string, role authz.Role) authz.Subject {
		u, err := users.CreateUser(ctx, name, email, "password123", role)
		require.NoError(t, err)
		if role == authz.RoleUser {
			require.NoError(t, bundles.GrantSignupBundle(ctx, u.ID))
		}
		return u.Subject()
	}
	e.owner = mk("Olga Owner", "olga@example.com", authz.RoleUser)
	e.other = mk("Otto Other", "otto@example.com", authz.RoleUser)
	e.root = mk("Root", "root@example.com", authz.RoleAdmin)
	return e
}

func ptr[T any](v T) *T { return &v }

func (e *env) createGroup(t *testing.T, subject authz.Subject, name string) *group.Group {
	t.Helper()
	g, err := e.svc.CreateGroup(context.Background(), subject, group.GroupInput{Name: ptr(name)})
	require.NoError(t, err)
	return g
}

// TestPurpose: Validates that creating a group grants the creator exactly the 14 code bundle.
// Scope: Unit Test
// Security: Creator capabilities are bounded to the new group
// Expected: 14 scoped grants for the creator on the new group and none on other groups.
// Test Case ID: GRP-SVC-01
func TestGroup_Service_CreateGrantsBundle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	g1 := e.createGroup(t, e.owner, "Family")
	g2 := e.createGroup(t, e.owner, "Office")

	perms, err := e.store.ListForUser(ctx, e.owner.UserID)
	require.NoError(t, err)

	perGroup := map[string]int{}
	for _, p := range perms {
		perGroup[p.ResourceID]++
	}
	assert.Equal(t, authz.GroupBundleSize, perGroup[g1.ID])
	assert.Equal(t, authz.GroupBundleSize, perGroup[g2.ID])
	assert.Equal(t, 1, perGroup[""], "only groups:create is unscoped")
	assert.Len(t, e.audit.OfType(audit.TypeGroupCreated), 2)
}

// TestPurpose: Validates that group creation requires groups:create.
// Scope: Unit Test
// Security: Creation gate
// Expected: A user whose groups:create was revoked is forbidden; an admin without grants may create.
// Test Case ID: GRP-SVC-02
func TestGroup_Service_CreateRequiresPermission(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.admin.RevokeFromUser(ctx, e.root, e.other.UserID, "groups:create"))
	_, err := e.svc.CreateGroup(ctx, e.other, group.GroupInput{Name: ptr("Nope")})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	g := e.createGroup(t, e.root, "Admin group")
	assert.Equal(t, e.root.UserID, g.OwnerID)

	_, err = e.svc.CreateGroup(ctx, e.owner, group.GroupInput{})
	assert.ErrorIs(t, err, group.ErrValidation)
}

// TestPurpose: Validates that reads are authorized before the resource is loaded.
// Scope: Unit Test
// Security: No existence leak to unauthorized callers
// Expected: A stranger gets ErrForbidden for both existing and missing groups; the owner gets ErrGroupNotFound for missing ones only.
// Test Case ID: GRP-SVC-03
func TestGroup_Service_NoExistenceLeak(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.createGroup(t, e.owner, "Family")

	_, err := e.svc.GetGroup(ctx, e.other, g.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = e.svc.GetGroup(ctx, e.other, "does-not-exist")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	got, err := e.svc.GetGroup(ctx, e.owner, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Family", got.Name)

	_, err = e.svc.GetGroup(ctx, e.root, "does-not-exist")
	assert.ErrorIs(t, err, group.ErrGroupNotFound)
}

// TestPurpose: Validates list visibility, search, sort and pagination.
// Scope: Unit Test
// Security: Users only list groups they may read
// Expected: Owners see their groups; strangers see none until granted; admins see all.
// Test Case ID: GRP-SVC-04
func TestGroup_Service_ListGroups(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, name := range []string{"Charlie", "alpha", "Bravo"} {
		e.createGroup(t, e.owner, name)
	}
	other := e.createGroup(t, e.other, "Delta")

	page, err := e.svc.ListGroups(ctx, e.owner, group.ListOptions{Sort: group.SortNameAsc})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	names := []string{}
	for _, g := range page.Groups {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"alpha", "Bravo", "Charlie"}, names)

	page, err = e.svc.ListGroups(ctx, e.owner, group.ListOptions{Sort: group.SortNameDesc, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Groups, 1)
	assert.Equal(t, "alpha", page.Groups[0].Name)

	page, err = e.svc.ListGroups(ctx, e.owner, group.ListOptions{Query: "rav"})
	require.NoError(t, err)
	require.Len(t, page.Groups, 1)
	assert.Equal(t, "Bravo", page.Groups[0].Name)

	page, err = e.svc.ListGroups(ctx, e.root, group.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)

	_, _, err = e.admin.GrantToUser(ctx, e.root, e.owner.UserID, "groups:read:"+other.ID)
	require.NoError(t, err)
	page, err = e.svc.ListGroups(ctx, e.owner, group.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)

	_, err = e.svc.ListGroups(ctx, e.owner, group.ListOptions{Sort: "size"})
	assert.ErrorIs(t, err, group.ErrValidation)
}

// TestPurpose: Validates that deleting a group revokes every grant scoped to it.
// Scope: Unit Test
// Security: No dangling scoped permissions
// Expected: Creator and third parties lose all grants on the group; grants on other groups survive.
// Test Case ID: GRP-SVC-05
func TestGroup_Service_DeleteCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doomed := e.createGroup(t, e.owner, "Doomed")
	kept := e.createGroup(t, e.owner, "Kept")
	_, _, err := e.admin.GrantToUser(ctx, e.root, e.other.UserID, "members:read:"+doomed.ID)
	require.NoError(t, err)

	err = e.svc.DeleteGroup(ctx, e.other, doomed.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	require.NoError(t, e.svc.DeleteGroup(ctx, e.owner, doomed.ID))

	for _, uid := range []string{e.owner.UserID, e.other.UserID} {
		codes, err := e.store.GrantedCodes(ctx, uid)
		require.NoError(t, err)
		assert.NotContains(t, authz.ExtractResourceIDs(codes), doomed.ID)
	}
	codes, err := e.store.GrantedCodes(ctx, e.owner.UserID)
	require.NoError(t, err)
	assert.Contains(t, authz.ExtractResourceIDs(codes), kept.ID)

	_, err = e.repo.GetGroup(ctx, doomed.ID)
	assert.ErrorIs(t, err, group.ErrGroupNotFound)
	assert.Len(t, e.audit.OfType(audit.TypeGroupDeleted), 1)
}

// TestPurpose: Validates member, exclusion and draw operations end to end.
// Scope: Unit Test
// Security: Every sub-resource operation is gated by its own scoped permission
// Expected: The owner manages the group; a stranger is forbidden until granted a blanket read.
// Test Case ID: GRP-SVC-06
func TestGroup_Service_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.createGroup(t, e.owner, "Family")
	e.svc.SetShuffle(seeded(42))

	var ids []string
	for _, name := range []string{"Ann", "Ben", "Cat"} {
		m, err := e.svc.AddMember(ctx, e.owner, g.ID, group.MemberInput{Name: ptr(name), Email: ptr(name + "@example.com")})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	_, err := e.svc.AddMember(ctx, e.owner, g.ID, group.MemberInput{Name: ptr("Dup"), Email: ptr("ann@example.com")})
	assert.ErrorIs(t, err, group.ErrDuplicateMember)

	_, err = e.svc.ListMembers(ctx, e.other, g.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, _, err = e.admin.GrantToUser(ctx, e.root, e.other.UserID, "members:read")
	require.NoError(t, err)
	list, err := e.svc.ListMembers(ctx, e.other, g.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	ex, err := e.svc.AddExclusion(ctx, e.owner, g.ID, group.ExclusionInput{GiverID: ids[0], ReceiverID: ids[1]})
	require.NoError(t, err)
	_, err = e.svc.AddExclusion(ctx, e.owner, g.ID, group.ExclusionInput{GiverID: ids[0], ReceiverID: ids[0]})
	assert.ErrorIs(t, err, group.ErrValidation)
	_, err = e.svc.AddExclusion(ctx, e.owner, g.ID, group.ExclusionInput{GiverID: ids[0], ReceiverID: "stranger"})
	assert.ErrorIs(t, err, group.ErrValidation)
	_, err = e.svc.AddExclusion(ctx, e.owner, g.ID, group.ExclusionInput{GiverID: ids[0], ReceiverID: ids[1]})
	assert.ErrorIs(t, err, group.ErrDuplicateExclusion)

	_, err = e.svc.GetDraw(ctx, e.owner, g.ID)
	assert.ErrorIs(t, err, group.ErrDrawNotFound)

	draw, err := e.svc.ExecuteDraw(ctx, e.owner, g.ID)
	require.NoError(t, err)
	require.Len(t, draw.Assignments, 3)
	for _, a := range draw.Assignments {
		if a.GiverID == ids[0] {
			assert.Equal(t, ids[2], a.ReceiverID, "Ann may only draw Cat")
		}
	}

	stored, err := e.svc.GetDraw(ctx, e.owner, g.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, draw.Assignments, stored.Assignments)

	require.NoError(t, e.svc.NotifyMember(ctx, e.owner, g.ID, ids[0], "Draw is done"))
	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Cat", sent[0].ReceiverName)
	assert.Equal(t, "Family", sent[0].GroupName)

	err = e.svc.NotifyMember(ctx, e.other, g.ID, ids[0], "hi")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	updated, err := e.svc.UpdateExclusion(ctx, e.owner, g.ID, ex.ID, group.ExclusionInput{GiverID: ids[1], ReceiverID: ids[0]})
	require.NoError(t, err)
	assert.Equal(t, ids[1], updated.GiverID)

	require.NoError(t, e.svc.RemoveMember(ctx, e.owner, g.ID, ids[0]))
	exclusions, err := e.svc.ListExclusions(ctx, e.owner, g.ID)
	require.NoError(t, err)
	assert.Empty(t, exclusions, "exclusions naming a removed member are dropped")

	renamed, err := e.svc.UpdateGroup(ctx, e.owner, g.ID, group.GroupInput{Name: ptr("Family 2026"), Budget: ptr(int64(30))})
	require.NoError(t, err)
	assert.Equal(t, "Family 2026", renamed.Name)
	assert.Equal(t, int64(30), renamed.Budget)

	_, err = e.svc.UpdateGroup(ctx, e.owner, g.ID, group.GroupInput{Budget: ptr(int64(-1))})
	assert.ErrorIs(t, err, group.ErrValidation)
}

// TestPurpose: Validates that the directory only resolves scopable resource types.
// Scope: Unit Test
// Security: Scoped grants must reference existing resources of matching type
// Expected: Existing groups resolve for every scopable type; admin and unknown ids do not.
// Test Case ID: GRP-SVC-07
func TestGroup_Directory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.createGroup(t, e.owner, "Family")
	dir := group.NewDirectory(e.repo)

	for _, r := range []string{authz.ResourceGroups, authz.ResourceMembers, authz.ResourceExclusions, authz.ResourceDraws} {
		ok, err := dir.ResourceExists(ctx, r, g.ID)
		require.NoError(t, err)
		assert.True(t, ok, r)
	}
	ok, err := dir.ResourceExists(ctx, authz.ResourceAdmin, g.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = dir.ResourceExists(ctx, authz.ResourceGroups, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := dir.ResourceNames(ctx, []string{g.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{g.ID: "Family"}, names)
}
