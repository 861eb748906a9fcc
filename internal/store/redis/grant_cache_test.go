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

package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/store/memory"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory stand-in for the go-redis commands the cache uses.
type fakeClient struct {
	mu       sync.Mutex
	data     map[string]string
	down     bool
	failIncr bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string]string)}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return goredis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return goredis.NewStatusResult("", errors.New("connection refused"))
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) MGet(_ context.Context, keys ...string) *goredis.SliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return goredis.NewSliceResult(nil, errors.New("connection refused"))
	}
	vals := make([]any, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			vals[i] = v
		}
	}
	return goredis.NewSliceResult(vals, nil)
}

func (f *fakeClient) Incr(_ context.Context, key string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down || f.failIncr {
		return goredis.NewIntResult(0, errors.New("connection refused"))
	}
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return goredis.NewIntResult(n, nil)
}

// countingRepo counts reads reaching the durable repository.
type countingRepo struct {
	*memory.GrantRepository
	mu    sync.Mutex
	lists int
}

func (r *countingRepo) ListForUser(ctx context.Context, userID string) ([]*authz.Grant, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	return r.GrantRepository.ListForUser(ctx, userID)
}

func newCache(t *testing.T) (*GrantCache, *countingRepo, *fakeClient) {
	t.Helper()
	inner := &countingRepo{GrantRepository: memory.NewGrantRepository()}
	client := newFakeClient()
	return NewGrantCache(inner, client, time.Minute), inner, client
}

func insert(t *testing.T, c *GrantCache, userID, code, resourceID string) {
	t.Helper()
	_, err := c.Insert(context.Background(), &authz.Grant{
		UserID: userID, PermissionCode: code, ResourceID: resourceID, GrantedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

// TestPurpose: Validates that repeated checks are served from the snapshot.
// Scope: Unit Test
// Expected: Only the first Exists reaches the durable repository.
// Test Case ID: RDS-01
func TestGrantCache_ServesFromSnapshot(t *testing.T) {
	c, inner, _ := newCache(t)
	ctx := context.Background()
	insert(t, c, "u1", "groups:read:G1", "G1")

	for i := 0; i < 3; i++ {
		ok, err := c.Exists(ctx, "u1", "groups:read:G1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.lists)
}

// TestPurpose: Validates that a revoke is visible to the next check.
// Scope: Unit Test
// Security: Revoked permissions must stop authorizing immediately
// Expected: Exists returns false right after Delete.
// Test Case ID: RDS-02
func TestGrantCache_RevokeInvalidates(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()
	insert(t, c, "u1", "draws:execute:G1", "G1")

	ok, err := c.Exists(ctx, "u1", "draws:execute:G1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Delete(ctx, "u1", "draws:execute:G1"))

	ok, err = c.Exists(ctx, "u1", "draws:execute:G1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates that scope revocation orphans snapshots of every user.
// Scope: Unit Test
// Security: Grants on a deleted group must not linger in cache
// Expected: Both users lose the scoped code; the unscoped code survives.
// Test Case ID: RDS-03
func TestGrantCache_DeleteByResourceBumpsGeneration(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()
	insert(t, c, "u1", "groups:read:G1", "G1")
	insert(t, c, "u2", "groups:read:G1", "G1")
	insert(t, c, "u2", "groups:create", "")

	for _, u := range []string{"u1", "u2"} {
		ok, err := c.Exists(ctx, u, "groups:read:G1")
		require.NoError(t, err)
		require.True(t, ok)
	}

	n, err := c.DeleteByResource(ctx, "G1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, u := range []string{"u1", "u2"} {
		ok, err := c.Exists(ctx, u, "groups:read:G1")
		require.NoError(t, err)
		assert.False(t, ok, u)
	}
	ok, err := c.Exists(ctx, "u2", "groups:create")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestPurpose: Validates that a Redis outage degrades reads to the durable repository.
// Scope: Unit Test
// Expected: Reads succeed with the client down; writes report the failed invalidation.
// Test Case ID: RDS-04
func TestGrantCache_FallsThroughWhenDown(t *testing.T) {
	c, inner, client := newCache(t)
	ctx := context.Background()
	_, err := inner.Insert(ctx, &authz.Grant{UserID: "u1", PermissionCode: "groups:create", GrantedAt: time.Now().UTC()})
	require.NoError(t, err)
	client.down = true

	ok, err := c.Exists(ctx, "u1", "groups:create")
	require.NoError(t, err)
	assert.True(t, ok)

	grants, err := c.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, grants, 1)
	assert.Equal(t, 2, inner.lists)

	err = c.Delete(ctx, "u1", "groups:create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate grant cache")
}

// TestPurpose: Validates the cache behind the real permission store.
// Scope: Unit Test
// Expected: Grant, check, revoke, check round-trips through the store.
// Test Case ID: RDS-05
func TestGrantCache_BehindStore(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()
	store := authz.NewStore(c, authz.DefaultCatalog(), userExists{"u1"}, nil, nil)

	code := authz.MustParseCode("members:notify:G9")
	_, created, err := store.Grant(ctx, "u1", code, "admin")
	require.NoError(t, err)
	assert.True(t, created)

	ok, err := store.IsGranted(ctx, "u1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Revoke(ctx, "u1", code, "admin"))
	ok, err = store.IsGranted(ctx, "u1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

// pausingRepo blocks ListForUser after the durable read until released.
type pausingRepo struct {
	*memory.GrantRepository
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *pausingRepo) ListForUser(ctx context.Context, userID string) ([]*authz.Grant, error) {
	grants, err := r.GrantRepository.ListForUser(ctx, userID)
	paused := false
	r.once.Do(func() { paused = true })
	if paused {
		close(r.read)
		<-r.release
	}
	return grants, err
}

// TestPurpose: Validates that a snapshot read before a revoke cannot outlive it.
// Scope: Unit Test
// Security: A revoked grant must not be served from cache after Revoke returns
// Expected: A fill racing a Delete lands on a dead key; Exists is false afterwards.
// Test Case ID: RDS-06
func TestGrantCache_RevokeWinsOverConcurrentFill(t *testing.T) {
	ctx := context.Background()
	inner := &pausingRepo{
		GrantRepository: memory.NewGrantRepository(),
		read:            make(chan struct{}),
		release:         make(chan struct{}),
	}
	_, err := inner.Insert(ctx, &authz.Grant{
		UserID: "u", PermissionCode: "members:read:G1", ResourceID: "G1", GrantedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	c := NewGrantCache(inner, newFakeClient(), time.Minute)

	done := make(chan []*authz.Grant)
	go func() {
		grants, _ := c.ListForUser(ctx, "u")
		done <- grants
	}()

	<-inner.read
	require.NoError(t, c.Delete(ctx, "u", "members:read:G1"))
	close(inner.release)
	stale := <-done
	require.Len(t, stale, 1)

	ok, err := c.Exists(ctx, "u", "members:read:G1")
	require.NoError(t, err)
	assert.False(t, ok, "revoked grant served from cache")
}

// TestPurpose: Validates that a failed invalidation is reported to the writer.
// Scope: Unit Test
// Security: A revoke must not report success while a snapshot may still allow it
// Expected: Delete returns an error when the version bump fails; a retry succeeds and invalidates.
// Test Case ID: RDS-07
func TestGrantCache_FailedBumpIsReturned(t *testing.T) {
	c, _, client := newCache(t)
	ctx := context.Background()
	insert(t, c, "u1", "draws:read:G1", "G1")

	ok, err := c.Exists(ctx, "u1", "draws:read:G1")
	require.NoError(t, err)
	require.True(t, ok)

	client.failIncr = true
	require.Error(t, c.Delete(ctx, "u1", "draws:read:G1"))

	client.failIncr = false
	require.NoError(t, c.Delete(ctx, "u1", "draws:read:G1"))
	ok, err = c.Exists(ctx, "u1", "draws:read:G1")
	require.NoError(t, err)
	assert.False(t, ok)
}

type userExists struct{ id string }

func (u userExists) UserExists(_ context.Context, id string) (bool, error) {
	return id == u.id, nil
}
