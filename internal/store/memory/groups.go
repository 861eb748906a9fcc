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
	"strings"
	"sync"

	"github.com/giftswap/giftswap/internal/group"
)

// GroupRepository implements group.Repository.
type GroupRepository struct {
	mu          sync.RWMutex
	groups      map[string]*group.Group
	members     map[string]*group.Member
	exclusions  map[string]*group.Exclusion
	assignments map[string][]group.Assignment
}

// NewGroupRepository creates an empty group repository
func NewGroupRepository() *GroupRepository {
	return &GroupRepository{
		groups:      make(map[string]*group.Group),
		members:     make(map[string]*group.Member),
		exclusions:  make(map[string]*group.Exclusion),
		assignments: make(map[string][]group.Assignment),
	}
}

func (r *GroupRepository) CreateGroup(_ context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *g
	r.groups[g.ID] = &c
	return nil
}

func (r *GroupRepository) GetGroup(_ context.Context, id string) (*group.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, group.ErrGroupNotFound
	}
	c := *g
	return &c, nil
}

func (r *GroupRepository) UpdateGroup(_ context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[g.ID]; !ok {
		return group.ErrGroupNotFound
	}
	c := *g
	r.groups[g.ID] = &c
	return nil
}

func (r *GroupRepository) DeleteGroup(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[id]; !ok {
		return group.ErrGroupNotFound
	}
	delete(r.groups, id)
	for mid, m := range r.members {
		if m.GroupID == id {
			delete(r.members, mid)
		}
	}
	for eid, e := range r.exclusions {
		if e.GroupID == id {
			delete(r.exclusions, eid)
		}
	}
	delete(r.assignments, id)
	return nil
}

func (r *GroupRepository) ListGroups(_ context.Context, f group.ListFilter) ([]*group.Group, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowed map[string]struct{}
	if f.IDs != nil {
		allowed = make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			allowed[id] = struct{}{}
		}
	}
	q := strings.ToLower(f.Query)

	var matched []*group.Group
	for _, g := range r.groups {
		if allowed != nil {
			if _, ok := allowed[g.ID]; !ok {
				continue
			}
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Name), q) &&
			!strings.Contains(strings.ToLower(g.Description), q) {
			continue
		}
		c := *g
		matched = append(matched, &c)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case group.SortNameAsc:
			if a.Name != b.Name {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
		case group.SortNameDesc:
			if a.Name != b.Name {
				return strings.ToLower(a.Name) > strings.ToLower(b.Name)
			}
		case group.SortCreatedAtAsc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *GroupRepository) GroupNames(_ context.Context, ids []string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if g, ok := r.groups[id]; ok {
			out[id] = g.Name
		}
	}
	return out, nil
}

func (r *GroupRepository) CreateMember(_ context.Context, m *group.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[m.GroupID]; !ok {
		return group.ErrGroupNotFound
	}
	if m.Email != "" {
		for _, other := range r.members {
			if other.GroupID == m.GroupID && other.Email == m.Email {
				return group.ErrDuplicateMember
			}
		}
	}
	c := *m
	r.members[m.ID] = &c
	return nil
}

func (r *GroupRepository) GetMember(_ context.Context, groupID, memberID string) (*group.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberID]
	if !ok || m.GroupID != groupID {
		return nil, group.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (r *GroupRepository) UpdateMember(_ context.Context, m *group.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.members[m.ID]
	if !ok || existing.GroupID != m.GroupID {
		return group.ErrMemberNotFound
	}
	if m.Email != "" {
		for _, other := range r.members {
			if other.ID != m.ID && other.GroupID == m.GroupID && other.Email == m.Email {
				return group.ErrDuplicateMember
			}
		}
	}
	c := *m
	r.members[m.ID] = &c
	return nil
}

func (r *GroupRepository) DeleteMember(_ context.Context, groupID, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok || m.GroupID != groupID {
		return group.ErrMemberNotFound
	}
	delete(r.members, memberID)
	for eid, e := range r.exclusions {
		if e.GiverID == memberID || e.ReceiverID == memberID {
			delete(r.exclusions, eid)
		}
	}
	delete(r.assignments, groupID)
	return nil
}

func (r *GroupRepository) ListMembers(_ context.Context, groupID string) ([]*group.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*group.Member{}
	for _, m := range r.members {
		if m.GroupID == groupID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *GroupRepository) CreateExclusion(_ context.Context, e *group.Exclusion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasExclusion(e) {
		return group.ErrDuplicateExclusion
	}
	c := *e
	r.exclusions[e.ID] = &c
	return nil
}

func (r *GroupRepository) GetExclusion(_ context.Context, groupID, exclusionID string) (*group.Exclusion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exclusions[exclusionID]
	if !ok || e.GroupID != groupID {
		return nil, group.ErrExclusionNotFound
	}
	c := *e
	return &c, nil
}

func (r *GroupRepository) UpdateExclusion(_ context.Context, e *group.Exclusion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.exclusions[e.ID]
	if !ok || existing.GroupID != e.GroupID {
		return group.ErrExclusionNotFound
	}
	if r.hasExclusion(e) {
		return group.ErrDuplicateExclusion
	}
	c := *e
	r.exclusions[e.ID] = &c
	return nil
}

func (r *GroupRepository) DeleteExclusion(_ context.Context, groupID, exclusionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exclusions[exclusionID]
	if !ok || e.GroupID != groupID {
		return group.ErrExclusionNotFound
	}
	delete(r.exclusions, exclusionID)
	return nil
}

func (r *GroupRepository) ListExclusions(_ context.Context, groupID string) ([]*group.Exclusion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*group.Exclusion{}
	for _, e := range r.exclusions {
		if e.GroupID == groupID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// hasExclusion reports whether another exclusion has the same giver and receiver.
func (r *GroupRepository) hasExclusion(e *group.Exclusion) bool {
	for _, other := range r.exclusions {
		if other.ID != e.ID && other.GroupID == e.GroupID &&
			other.GiverID == e.GiverID && other.ReceiverID == e.ReceiverID {
			return true
		}
	}
	return false
}

func (r *GroupRepository) ReplaceAssignments(_ context.Context, groupID string, a []group.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[groupID]; !ok {
		return group.ErrGroupNotFound
	}
	c := make([]group.Assignment, len(a))
	copy(c, a)
	r.assignments[groupID] = c
	return nil
}

func (r *GroupRepository) ListAssignments(_ context.Context, groupID string) ([]group.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]group.Assignment, len(r.assignments[groupID]))
	copy(out, r.assignments[groupID])
	return out, nil
}
