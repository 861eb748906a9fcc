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

// Package memory provides in-process repositories with the same contracts as
// the postgres store. They back dev mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	mu          sync.RWMutex
	users       map[string]*identity.User
	byEmail     map[string]string
	credentials map[string]*identity.Credentials
}

// NewUserRepository creates an empty user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:       make(map[string]*identity.User),
		byEmail:     make(map[string]string),
		credentials: make(map[string]*identity.Credentials),
	}
}

func (r *UserRepository) Create(_ context.Context, user *identity.User, creds *identity.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return identity.ErrUserAlreadyExists
	}
	u := *user
	r.users[u.ID] = &u
	r.byEmail[email] = u.ID
	if creds != nil {
		c := *creds
		r.credentials[u.ID] = &c
	}
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	out := *r.users[id]
	return &out, nil
}

func (r *UserRepository) GetCredentials(_ context.Context, userID string) (*identity.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.credentials[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	out := *c
	return &out, nil
}

func (r *UserRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

func (r *UserRepository) Search(_ context.Context, query string, limit int) ([]*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*identity.User
	for _, u := range r.users {
		if q == "" || strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(u.Email, q) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UserRepository) CountByRole(_ context.Context, role authz.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
