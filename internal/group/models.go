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

package group

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrExclusionNotFound  = errors.New("exclusion not found")
	ErrDrawNotFound       = errors.New("group has not been drawn")
	ErrDuplicateMember    = errors.New("member email already in group")
	ErrDuplicateExclusion = errors.New("exclusion already exists")
	ErrValidation         = errors.New("invalid input")
	ErrNotEnoughMembers   = errors.New("a draw needs at least two members")
	ErrDrawImpossible     = errors.New("no assignment satisfies the exclusions")
)

// Group is a gift exchange. It is the resource that scoped permissions name.
type Group struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	OwnerID     string     `json:"owner_id"`
	Budget      int64      `json:"budget"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Member is a participant of a group. Members are not necessarily users.
type Member struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Wishlist  string    `json:"wishlist,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Exclusion forbids GiverID from drawing ReceiverID.
type Exclusion struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	GiverID    string    `json:"giver_id"`
	ReceiverID string    `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Assignment is one giver to receiver pair of a draw.
type Assignment struct {
	GroupID    string    `json:"group_id"`
	GiverID    string    `json:"giver_id"`
	ReceiverID string    `json:"receiver_id"`
	DrawnAt    time.Time `json:"drawn_at"`
}

// Sort orders accepted by ListGroups.
const (
	SortNameAsc       = "name"
	SortNameDesc      = "-name"
	SortCreatedAtAsc  = "created_at"
	SortCreatedAtDesc = "-created_at"
)

// ListFilter is the repository-level group query.
// A nil IDs slice means all groups; an empty one means none.
type ListFilter struct {
	Query  string
	Sort   string
	IDs    []string
	Offset int
	Limit  int
}

// GroupRepository persists groups. DeleteGroup removes members, exclusions
// and assignments of the group.
type GroupRepository interface {
	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	UpdateGroup(ctx context.Context, g *Group) error
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context, f ListFilter) ([]*Group, int, error)
	GroupNames(ctx context.Context, ids []string) (map[string]string, error)
}

// MemberRepository persists members. DeleteMember removes exclusions that
// reference the member.
type MemberRepository interface {
	CreateMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, groupID, memberID string) (*Member, error)
	UpdateMember(ctx context.Context, m *Member) error
	DeleteMember(ctx context.Context, groupID, memberID string) error
	ListMembers(ctx context.Context, groupID string) ([]*Member, error)
}

// ExclusionRepository persists exclusions.
type ExclusionRepository interface {
	CreateExclusion(ctx context.Context, e *Exclusion) error
	GetExclusion(ctx context.Context, groupID, exclusionID string) (*Exclusion, error)
	UpdateExclusion(ctx context.Context, e *Exclusion) error
	DeleteExclusion(ctx context.Context, groupID, exclusionID string) error
	ListExclusions(ctx context.Context, groupID string) ([]*Exclusion, error)
}

// DrawRepository persists draw results.
type DrawRepository interface {
	// ReplaceAssignments atomically swaps the group's previous draw for a.
	ReplaceAssignments(ctx context.Context, groupID string, a []Assignment) error
	ListAssignments(ctx context.Context, groupID string) ([]Assignment, error)
}

// Repository is everything the group service persists.
type Repository interface {
	GroupRepository
	MemberRepository
	ExclusionRepository
	DrawRepository
}
