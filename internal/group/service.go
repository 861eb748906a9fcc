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
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/id"
	"github.com/giftswap/giftswap/internal/observability/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/giftswap/giftswap/internal/group")

const (
	maxNameLength   = 100
	defaultPageSize = 10
	maxPageSize     = 100
)

// Authorizer is the enforcement side of authz used by the service.
type Authorizer interface {
	Authorize(ctx context.Context, subject authz.Subject, resource, action, resourceID string) (authz.Decision, error)
	Require(ctx context.Context, subject authz.Subject, resource, action, resourceID string) error
}

// Grants is the part of the permission store the service touches.
type Grants interface {
	GrantedCodes(ctx context.Context, userID string) ([]string, error)
	RevokeScope(ctx context.Context, resourceID, revokedBy string) (int64, error)
}

// BundleGranter writes the creator bundle of a new group.
type BundleGranter interface {
	GrantGroupBundle(ctx context.Context, creatorID, groupID string) error
}

// Service implements group, member, exclusion and draw operations.
// Every operation checks authorization before it reads the resource.
type Service struct {
	repo        Repository
	authorizer  Authorizer
	grants      Grants
	bundles     BundleGranter
	notifier    Notifier
	auditLogger audit.Logger
	shuffle     ShuffleFunc
	now         func() time.Time
}

// NewService creates a group service.
func NewService(
	repo Repository,
	authorizer Authorizer,
	grants Grants,
	bundles BundleGranter,
	notifier Notifier,
	auditLogger audit.Logger,
) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		repo:        repo,
		authorizer:  authorizer,
		grants:      grants,
		bundles:     bundles,
		notifier:    notifier,
		auditLogger: auditLogger,
		shuffle:     rand.Shuffle,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetShuffle replaces the draw randomness.
func (s *Service) SetShuffle(fn ShuffleFunc) {
	s.shuffle = fn
}

// -----------------------------------------------------------------------------
// Groups
// -----------------------------------------------------------------------------

// GroupInput carries the editable fields of a group. Nil fields are left
// unchanged on update.
type GroupInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Budget      *int64     `json:"budget"`
	EventDate   *time.Time `json:"event_date"`
}

// CreateGroup persists a group and grants its creator the group bundle.
// A failed bundle is logged and audited; the group is still returned.
func (s *Service) CreateGroup(ctx context.Context, subject authz.Subject, in GroupInput) (*Group, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceGroups, authz.ActionCreate, ""); err != nil {
		return nil, err
	}

	now := s.now()
	g := &Group{ID: id.NewUUIDv7(), OwnerID: subject.UserID, CreatedAt: now, UpdatedAt: now}
	if in.Name == nil {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := applyGroupInput(g, in); err != nil {
		return nil, err
	}

	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGroupCreated,
		ActorID:  subject.UserID,
		Resource: g.ID,
		Metadata: map[string]any{"name": g.Name},
	})

	if err := s.bundles.GrantGroupBundle(ctx, subject.UserID, g.ID); err != nil {
		slog.ErrorContext(ctx, "creator bundle incomplete",
			logger.GroupID(g.ID),
			logger.UserID(subject.UserID),
			logger.Error(err),
		)
	}
	return g, nil
}

// GetGroup returns a group the subject may read.
func (s *Service) GetGroup(ctx context.Context, subject authz.Subject, groupID string) (*Group, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceGroups, authz.ActionRead, groupID); err != nil {
		return nil, err
	}
	return s.repo.GetGroup(ctx, groupID)
}

// ListOptions is the public group listing query.
type ListOptions struct {
	Query    string
	Sort     string
	Page     int
	PageSize int
}

// GroupPage is one page of groups.
type GroupPage struct {
	Groups   []*Group `json:"groups"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// ListGroups returns the groups the subject may read. Admins and holders of
// unscoped groups:read see every group.
func (s *Service) ListGroups(ctx context.Context, subject authz.Subject, opts ListOptions) (*GroupPage, error) {
	switch opts.Sort {
	case "":
		opts.Sort = SortCreatedAtDesc
	case SortNameAsc, SortNameDesc, SortCreatedAtAsc, SortCreatedAtDesc:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", ErrValidation, opts.Sort)
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageSize > maxPageSize {
		opts.PageSize = maxPageSize
	}

	blanket, err := s.authorizer.Authorize(ctx, subject, authz.ResourceGroups, authz.ActionRead, "")
	if err != nil {
		return nil, err
	}

	f := ListFilter{
		Query:  strings.TrimSpace(opts.Query),
		Sort:   opts.Sort,
		Offset: (opts.Page - 1) * opts.PageSize,
		Limit:  opts.PageSize,
	}
	if !blanket.Allowed {
		ids, err := s.readableGroupIDs(ctx, subject.UserID)
		if err != nil {
			return nil, err
		}
		f.IDs = ids
	}

	groups, total, err := s.repo.ListGroups(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	if groups == nil {
		groups = []*Group{}
	}
	return &GroupPage{Groups: groups, Total: total, Page: opts.Page, PageSize: opts.PageSize}, nil
}

func (s *Service) readableGroupIDs(ctx context.Context, userID string) ([]string, error) {
	codes, err := s.grants.GrantedCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, raw := range codes {
		c, err := authz.ParseCode(raw)
		if err != nil || !c.IsScoped() {
			continue
		}
		if c.Resource == authz.ResourceGroups && c.Action == authz.ActionRead {
			ids = append(ids, c.ResourceID)
		}
	}
	return ids, nil
}

// UpdateGroup changes the non-nil fields of in.
func (s *Service) UpdateGroup(ctx context.Context, subject authz.Subject, groupID string, in GroupInput) (*Group, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceGroups, authz.ActionUpdate, groupID); err != nil {
		return nil, err
	}
	g, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := applyGroupInput(g, in); err != nil {
		return nil, err
	}
	g.UpdatedAt = s.now()
	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return g, nil
}

// DeleteGroup removes the group and revokes every grant scoped to it.
func (s *Service) DeleteGroup(ctx context.Context, subject authz.Subject, groupID string) error {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceGroups, authz.ActionDelete, groupID); err != nil {
		return err
	}
	if err := s.repo.DeleteGroup(ctx, groupID); err != nil {
		return err
	}

	revoked, err := s.grants.RevokeScope(ctx, groupID, subject.UserID)
	if err != nil {
		return fmt.Errorf("group deleted but scoped grants remain: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGroupDeleted,
		ActorID:  subject.UserID,
		Resource: groupID,
		Metadata: map[string]any{"revoked_grants": revoked},
	})
	return nil
}

func applyGroupInput(g *Group, in GroupInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > maxNameLength {
			return fmt.Errorf("%w: name must be 1-%d characters", ErrValidation, maxNameLength)
		}
		g.Name = name
	}
	if in.Description != nil {
		g.Description = strings.TrimSpace(*in.Description)
	}
	if in.Budget != nil {
		if *in.Budget < 0 {
			return fmt.Errorf("%w: budget must not be negative", ErrValidation)
		}
		g.Budget = *in.Budget
	}
	if in.EventDate != nil {
		d := in.EventDate.UTC()
		g.EventDate = &d
	}
	return nil
}

// -----------------------------------------------------------------------------
// Members
// -----------------------------------------------------------------------------

// MemberInput carries the editable fields of a member.
type MemberInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Wishlist *string `json:"wishlist"`
}

// ListMembers returns the members of a group.
func (s *Service) ListMembers(ctx context.Context, subject authz.Subject, groupID string) ([]*Member, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceMembers, authz.ActionRead, groupID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, groupID)
}

// AddMember adds a member to a group.
func (s *Service) AddMember(ctx context.Context, subject authz.Subject, groupID string, in MemberInput) (*Member, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceMembers, authz.ActionCreate, groupID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	m := &Member{ID: id.NewUUIDv7(), GroupID: groupID, CreatedAt: s.now()}
	if err := applyMemberInput(m, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMember changes the non-nil fields of in.
func (s *Service) UpdateMember(ctx context.Context, subject authz.Subject, groupID, memberID string, in MemberInput) (*Member, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceMembers, authz.ActionUpdate, groupID); err != nil {
		return nil, err
	}
	m, err := s.repo.GetMember(ctx, groupID, memberID)
	if err != nil {
		return nil, err
	}
	if err := applyMemberInput(m, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember deletes a member and the exclusions that name it.
func (s *Service) RemoveMember(ctx context.Context, subject authz.Subject, groupID, memberID string) error {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceMembers, authz.ActionDelete, groupID); err != nil {
		return err
	}
	return s.repo.DeleteMember(ctx, groupID, memberID)
}

// NotifyMember sends a message to one member. Once the group has been drawn
// the notification carries the member's receiver.
func (s *Service) NotifyMember(ctx context.Context, subject authz.Subject, groupID, memberID, message string) error {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceMembers, authz.ActionNotify, groupID); err != nil {
		return err
	}
	g, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	m, err := s.repo.GetMember(ctx, groupID, memberID)
	if err != nil {
		return err
	}

	n := Notification{
		GroupID:    g.ID,
		GroupName:  g.Name,
		MemberID:   m.ID,
		MemberName: m.Name,
		Email:      m.Email,
		Message:    strings.TrimSpace(message),
		SentBy:     subject.UserID,
	}

	assignments, err := s.repo.ListAssignments(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to load draw: %w", err)
	}
	for _, a := range assignments {
		if a.GiverID != m.ID {
			continue
		}
		if r, err := s.repo.GetMember(ctx, groupID, a.ReceiverID); err == nil {
			n.ReceiverName = r.Name
		}
		break
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to notify member: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMemberNotified,
		ActorID:  subject.UserID,
		Resource: m.ID,
		Metadata: map[string]any{"group_id": groupID},
	})
	return nil
}

func applyMemberInput(m *Member, in MemberInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > maxNameLength {
			return fmt.Errorf("%w: name must be 1-%d characters", ErrValidation, maxNameLength)
		}
		m.Name = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != "" && !strings.Contains(email, "@") {
			return fmt.Errorf("%w: invalid email", ErrValidation)
		}
		m.Email = email
	}
	if in.Wishlist != nil {
		m.Wishlist = strings.TrimSpace(*in.Wishlist)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Exclusions
// -----------------------------------------------------------------------------

// ExclusionInput names the giver and receiver of an exclusion.
type ExclusionInput struct {
	GiverID    string `json:"giver_id"`
	ReceiverID string `json:"receiver_id"`
}

// ListExclusions returns the exclusions of a group.
func (s *Service) ListExclusions(ctx context.Context, subject authz.Subject, groupID string) ([]*Exclusion, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceExclusions, authz.ActionRead, groupID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListExclusions(ctx, groupID)
}

// AddExclusion forbids giver from drawing receiver.
func (s *Service) AddExclusion(ctx context.Context, subject authz.Subject, groupID string, in ExclusionInput) (*Exclusion, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceExclusions, authz.ActionCreate, groupID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if err := s.validateExclusion(ctx, groupID, in); err != nil {
		return nil, err
	}

	e := &Exclusion{
		ID:         id.NewUUIDv7(),
		GroupID:    groupID,
		GiverID:    in.GiverID,
		ReceiverID: in.ReceiverID,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateExclusion(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateExclusion repoints an existing exclusion.
func (s *Service) UpdateExclusion(ctx context.Context, subject authz.Subject, groupID, exclusionID string, in ExclusionInput) (*Exclusion, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceExclusions, authz.ActionUpdate, groupID); err != nil {
		return nil, err
	}
	e, err := s.repo.GetExclusion(ctx, groupID, exclusionID)
	if err != nil {
		return nil, err
	}
	if err := s.validateExclusion(ctx, groupID, in); err != nil {
		return nil, err
	}
	e.GiverID = in.GiverID
	e.ReceiverID = in.ReceiverID
	if err := s.repo.UpdateExclusion(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveExclusion deletes an exclusion.
func (s *Service) RemoveExclusion(ctx context.Context, subject authz.Subject, groupID, exclusionID string) error {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceExclusions, authz.ActionDelete, groupID); err != nil {
		return err
	}
	return s.repo.DeleteExclusion(ctx, groupID, exclusionID)
}

func (s *Service) validateExclusion(ctx context.Context, groupID string, in ExclusionInput) error {
	if in.GiverID == "" || in.ReceiverID == "" {
		return fmt.Errorf("%w: giver_id and receiver_id are required", ErrValidation)
	}
	if in.GiverID == in.ReceiverID {
		return fmt.Errorf("%w: a member cannot exclude themselves", ErrValidation)
	}
	for _, memberID := range []string{in.GiverID, in.ReceiverID} {
		if _, err := s.repo.GetMember(ctx, groupID, memberID); err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				return fmt.Errorf("%w: member %s is not in the group", ErrValidation, memberID)
			}
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Draws
// -----------------------------------------------------------------------------

// DrawResult is the stored draw of a group.
type DrawResult struct {
	GroupID     string       `json:"group_id"`
	DrawnAt     time.Time    `json:"drawn_at"`
	Assignments []Assignment `json:"assignments"`
}

// GetDraw returns the current draw of a group.
func (s *Service) GetDraw(ctx context.Context, subject authz.Subject, groupID string) (*DrawResult, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceDraws, authz.ActionRead, groupID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListAssignments(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, ErrDrawNotFound
	}
	return &DrawResult{GroupID: groupID, DrawnAt: assignments[0].DrawnAt, Assignments: assignments}, nil
}

// ExecuteDraw runs a new draw, replacing any previous one.
func (s *Service) ExecuteDraw(ctx context.Context, subject authz.Subject, groupID string) (*DrawResult, error) {
	if err := s.authorizer.Require(ctx, subject, authz.ResourceDraws, authz.ActionExecute, groupID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	exclusions, err := s.repo.ListExclusions(ctx, groupID)
	if err != nil {
		return nil, err
	}

	_, span := tracer.Start(ctx, "group.Draw", trace.WithAttributes(
		attribute.String("group.id", groupID),
		attribute.Int("group.members", len(members)),
		attribute.Int("group.exclusions", len(exclusions)),
	))
	now := s.now()
	assignments, err := Draw(groupID, members, exclusions, s.shuffle, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		span.End()
		return nil, err
	}
	span.End()
	if err := s.repo.ReplaceAssignments(ctx, groupID, assignments); err != nil {
		return nil, fmt.Errorf("failed to store draw: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeDrawExecuted,
		ActorID:  subject.UserID,
		Resource: groupID,
		Metadata: map[string]any{"members": len(members), "exclusions": len(exclusions)},
	})
	return &DrawResult{GroupID: groupID, DrawnAt: now, Assignments: assignments}, nil
}
