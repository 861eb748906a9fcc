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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/giftswap/giftswap/internal/group"
	"github.com/jackc/pgx/v5"
)

// GroupRepository implements group.Repository
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupColumns = `id, name, description, owner_id, budget, event_date, created_at, updated_at`

var groupOrder = map[string]string{
	group.SortNameAsc:       "LOWER(name) ASC, id ASC",
	group.SortNameDesc:      "LOWER(name) DESC, id ASC",
	group.SortCreatedAtAsc:  "created_at ASC, id ASC",
	group.SortCreatedAtDesc: "created_at DESC, id ASC",
}

// CreateGroup inserts a group
func (r *GroupRepository) CreateGroup(ctx context.Context, g *group.Group) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, g.ID, g.Name, g.Description, g.OwnerID, g.Budget, g.EventDate, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID
func (r *GroupRepository) GetGroup(ctx context.Context, id string) (*group.Group, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// UpdateGroup overwrites the mutable columns
func (r *GroupRepository) UpdateGroup(ctx context.Context, g *group.Group) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE groups SET
			name = $2,
			description = $3,
			budget = $4,
			event_date = $5,
			updated_at = $6
		WHERE id = $1
	`, g.ID, g.Name, g.Description, g.Budget, g.EventDate, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

// DeleteGroup removes the group; members, exclusions and assignments cascade.
func (r *GroupRepository) DeleteGroup(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

// ListGroups filters, sorts and pages groups. The total ignores paging.
func (r *GroupRepository) ListGroups(ctx context.Context, f group.ListFilter) ([]*group.Group, int, error) {
	var (
		where []string
		args  []any
	)
	if f.IDs != nil {
		args = append(args, f.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(f.Query))+"%")
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	order, ok := groupOrder[f.Sort]
	if !ok {
		order = groupOrder[group.SortCreatedAtDesc]
	}
	query := `SELECT ` + groupColumns + ` FROM groups` + clause + ` ORDER BY ` + order
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*group.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, total, rows.Err()
}

// GroupNames maps the known ids to their names
func (r *GroupRepository) GroupNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := r.db.pool.Query(ctx, `SELECT id, name FROM groups WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan group name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// CreateMember inserts a member
func (r *GroupRepository) CreateMember(ctx context.Context, m *group.Member) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO members (id, group_id, name, email, wishlist, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.GroupID, m.Name, m.Email, m.Wishlist, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrDuplicateMember
		}
		if isForeignKeyViolation(err) {
			return group.ErrGroupNotFound
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetMember retrieves a member of a group
func (r *GroupRepository) GetMember(ctx context.Context, groupID, memberID string) (*group.Member, error) {
	var m group.Member
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, group_id, name, email, wishlist, created_at
		FROM members
		WHERE group_id = $1 AND id = $2
	`, groupID, memberID).Scan(&m.ID, &m.GroupID, &m.Name, &m.Email, &m.Wishlist, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, group.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

// UpdateMember overwrites name, email and wishlist
func (r *GroupRepository) UpdateMember(ctx context.Context, m *group.Member) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE members SET name = $3, email = $4, wishlist = $5
		WHERE group_id = $1 AND id = $2
	`, m.GroupID, m.ID, m.Name, m.Email, m.Wishlist)
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrDuplicateMember
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrMemberNotFound
	}
	return nil
}

// DeleteMember removes the member, the exclusions naming it and the group's draw.
func (r *GroupRepository) DeleteMember(ctx context.Context, groupID, memberID string) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM members WHERE group_id = $1 AND id = $2`, groupID, memberID)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return group.ErrMemberNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("failed to clear draw: %w", err)
		}
		return nil
	})
}

// ListMembers returns the group's members in creation order
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]*group.Member, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, group_id, name, email, wishlist, created_at
		FROM members
		WHERE group_id = $1
		ORDER BY created_at, id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*group.Member{}
	for rows.Next() {
		var m group.Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Name, &m.Email, &m.Wishlist, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// CreateExclusion inserts an exclusion
func (r *GroupRepository) CreateExclusion(ctx context.Context, e *group.Exclusion) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO exclusions (id, group_id, giver_id, receiver_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.GroupID, e.GiverID, e.ReceiverID, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrDuplicateExclusion
		}
		if isForeignKeyViolation(err) {
			return group.ErrMemberNotFound
		}
		return fmt.Errorf("failed to create exclusion: %w", err)
	}
	return nil
}

// GetExclusion retrieves an exclusion of a group
func (r *GroupRepository) GetExclusion(ctx context.Context, groupID, exclusionID string) (*group.Exclusion, error) {
	var e group.Exclusion
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, group_id, giver_id, receiver_id, created_at
		FROM exclusions
		WHERE group_id = $1 AND id = $2
	`, groupID, exclusionID).Scan(&e.ID, &e.GroupID, &e.GiverID, &e.ReceiverID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, group.ErrExclusionNotFound
		}
		return nil, fmt.Errorf("failed to get exclusion: %w", err)
	}
	return &e, nil
}

// UpdateExclusion changes the giver and receiver
func (r *GroupRepository) UpdateExclusion(ctx context.Context, e *group.Exclusion) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE exclusions SET giver_id = $3, receiver_id = $4
		WHERE group_id = $1 AND id = $2
	`, e.GroupID, e.ID, e.GiverID, e.ReceiverID)
	if err != nil {
		if isUniqueViolation(err) {
			return group.ErrDuplicateExclusion
		}
		if isForeignKeyViolation(err) {
			return group.ErrMemberNotFound
		}
		return fmt.Errorf("failed to update exclusion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrExclusionNotFound
	}
	return nil
}

// DeleteExclusion removes an exclusion
func (r *GroupRepository) DeleteExclusion(ctx context.Context, groupID, exclusionID string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM exclusions WHERE group_id = $1 AND id = $2`, groupID, exclusionID)
	if err != nil {
		return fmt.Errorf("failed to delete exclusion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return group.ErrExclusionNotFound
	}
	return nil
}

// ListExclusions returns the group's exclusions ordered by id
func (r *GroupRepository) ListExclusions(ctx context.Context, groupID string) ([]*group.Exclusion, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, group_id, giver_id, receiver_id, created_at
		FROM exclusions
		WHERE group_id = $1
		ORDER BY id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	defer rows.Close()

	exclusions := []*group.Exclusion{}
	for rows.Next() {
		var e group.Exclusion
		if err := rows.Scan(&e.ID, &e.GroupID, &e.GiverID, &e.ReceiverID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		exclusions = append(exclusions, &e)
	}
	return exclusions, rows.Err()
}

// ReplaceAssignments swaps the previous draw for a in one transaction
func (r *GroupRepository) ReplaceAssignments(ctx context.Context, groupID string, a []group.Assignment) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM groups WHERE id = $1 FOR UPDATE`, groupID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return group.ErrGroupNotFound
			}
			return fmt.Errorf("failed to lock group: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM assignments WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("failed to clear draw: %w", err)
		}

		rows := make([][]any, 0, len(a))
		for _, as := range a {
			rows = append(rows, []any{groupID, as.GiverID, as.ReceiverID, as.DrawnAt})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"assignments"},
			[]string{"group_id", "giver_id", "receiver_id", "drawn_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to store draw: %w", err)
		}
		return nil
	})
}

// ListAssignments returns the group's current draw
func (r *GroupRepository) ListAssignments(ctx context.Context, groupID string) ([]group.Assignment, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT group_id, giver_id, receiver_id, drawn_at
		FROM assignments
		WHERE group_id = $1
		ORDER BY giver_id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	out := []group.Assignment{}
	for rows.Next() {
		var as group.Assignment
		if err := rows.Scan(&as.GroupID, &as.GiverID, &as.ReceiverID, &as.DrawnAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, as)
	}
	return out, rows.Err()
}

func scanGroup(row pgx.Row) (*group.Group, error) {
	var g group.Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.Budget, &g.EventDate, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
