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

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/giftswap/giftswap/internal/authz"
)

type grantKey struct {
	userID string
	code   string
}

// GrantRepository implements authz.GrantRepository. A single mutex makes
// Insert and Delete atomic per key.
type GrantRepository struct {
	mu     sync.RWMutex
	grants map[grantKey]authz.Grant
}

// NewGrantRepository creates an empty grant repository
func NewGrantRepository() *GrantRepository {
	return &GrantRepository{grants: make(map[grantKey]authz.Grant)}
}

func (r *GrantRepository) Insert(_ context.Context, g *authz.Grant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := grantKey{g.UserID, g.PermissionCode}
	if existing, ok := r.grants[key]; ok {
		*g = existing
		return false, nil
	}
	r.grants[key] = *g
	return true, nil
}

func (r *GrantRepository) Delete(_ context.Context, userID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, grantKey{userID, code})
	return nil
}

func (r *GrantRepository) Exists(_ context.Context, userID, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[grantKey{userID, code}]
	return ok, nil
}

func (r *GrantRepository) ListForUser(_ context.Context, userID string) ([]*authz.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*authz.Grant{}
	for k, g := range r.grants {
		if k.userID == userID {
			c := g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PermissionCode < out[j].PermissionCode })
	return out, nil
}

func (r *GrantRepository) DeleteByResource(_ context.Context, resourceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, g := range r.grants {
		if g.ResourceID == resourceID {
			delete(r.grants, k)
			n++
		}
	}
	return n, nil
}

// Len returns the total number of stored grants.
func (r *GrantRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.grants)
}
