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

package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/observability/logger"
)

// groupBundleTemplates is the fixed set granted to the creator of a group.
// Other components count on exactly 14 entries.
var groupBundleTemplates = []Code{
	{Resource: ResourceGroups, Action: ActionRead},
	{Resource: ResourceGroups, Action: ActionUpdate},
	{Resource: ResourceGroups, Action: ActionDelete},
	{Resource: ResourceMembers, Action: ActionCreate},
	{Resource: ResourceMembers, Action: ActionRead},
	{Resource: ResourceMembers, Action: ActionUpdate},
	{Resource: ResourceMembers, Action: ActionDelete},
	{Resource: ResourceMembers, Action: ActionNotify},
	{Resource: ResourceExclusions, Action: ActionCreate},
	{Resource: ResourceExclusions, Action: ActionRead},
	{Resource: ResourceExclusions, Action: ActionUpdate},
	{Resource: ResourceExclusions, Action: ActionDelete},
	{Resource: ResourceDraws, Action: ActionRead},
	{Resource: ResourceDraws, Action: ActionExecute},
}

// GroupBundleSize is the number of grants written for a new group.
const GroupBundleSize = 14

// signupTemplates are granted to every newly registered user.
var signupTemplates = []Code{
	{Resource: ResourceGroups, Action: ActionCreate},
}

// GroupBundle returns the creator bundle scoped to groupID.
func GroupBundle(groupID string) []Code {
	out := make([]Code, 0, len(groupBundleTemplates))
	for _, t := range groupBundleTemplates {
		out = append(out, t.Scoped(groupID))
	}
	return out
}

// SignupBundle returns the unscoped codes granted at registration.
func SignupBundle() []Code {
	out := make([]Code, len(signupTemplates))
	copy(out, signupTemplates)
	return out
}

// Granter is the write side of the store used by the bundle policy.
type Granter interface {
	Grant(ctx context.Context, userID string, code Code, grantedBy string) (*Grant, bool, error)
}

// FailedGrant is one code the bundle could not write.
type FailedGrant struct {
	Code Code
	Err  error
}

// PartialBundleError lists the codes that failed while the rest were written.
type PartialBundleError struct {
	UserID     string
	ResourceID string
	Failed     []FailedGrant
}

func (e *PartialBundleError) Error() string {
	codes := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		codes = append(codes, f.Code.String())
	}
	return fmt.Sprintf("partial bundle for user %s: %d grant(s) failed: %s",
		e.UserID, len(e.Failed), strings.Join(codes, ", "))
}

// Unwrap exposes the individual grant errors to errors.Is and errors.As.
func (e *PartialBundleError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Codes returns the failed codes in the order they were attempted.
func (e *PartialBundleError) Codes() []Code {
	out := make([]Code, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Code)
	}
	return out
}

// BundleGranter writes the auto-grant bundles through the store.
type BundleGranter struct {
	granter     Granter
	auditLogger audit.Logger
}

// NewBundleGranter creates a bundle granter.
func NewBundleGranter(granter Granter, auditLogger audit.Logger) *BundleGranter {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &BundleGranter{granter: granter, auditLogger: auditLogger}
}

// GrantGroupBundle grants the creator every code of the group bundle.
// It never stops at the first failure. Re-running it for the same pair is safe.
func (b *BundleGranter) GrantGroupBundle(ctx context.Context, creatorID, groupID string) error {
	err := b.grantAll(ctx, creatorID, groupID, GroupBundle(groupID))
	b.auditBundle(ctx, creatorID, groupID, err)
	return err
}

// GrantSignupBundle grants the registration defaults to a new user.
func (b *BundleGranter) GrantSignupBundle(ctx context.Context, userID string) error {
	return b.grantAllBy(ctx, userID, "", SignupBundle(), ActorSystemSignup)
}

// RetryFailed re-attempts only the codes listed in a previous failure.
func (b *BundleGranter) RetryFailed(ctx context.Context, prev *PartialBundleError) error {
	if prev == nil || len(prev.Failed) == 0 {
		return nil
	}
	err := b.grantAll(ctx, prev.UserID, prev.ResourceID, prev.Codes())
	b.auditBundle(ctx, prev.UserID, prev.ResourceID, err)
	return err
}

func (b *BundleGranter) grantAll(ctx context.Context, userID, resourceID string, codes []Code) error {
	return b.grantAllBy(ctx, userID, resourceID, codes, ActorSystemBundle)
}

func (b *BundleGranter) grantAllBy(ctx context.Context, userID, resourceID string, codes []Code, actor string) error {
	var failed []FailedGrant
	for _, code := range codes {
		if _, _, err := b.granter.Grant(ctx, userID, code, actor); err != nil {
			slog.WarnContext(ctx, "bundle grant failed",
				logger.UserID(userID),
				logger.PermissionCode(code.String()),
				logger.Error(err),
			)
			failed = append(failed, FailedGrant{Code: code, Err: err})
		}
	}
	if len(failed) > 0 {
		return &PartialBundleError{UserID: userID, ResourceID: resourceID, Failed: failed}
	}
	return nil
}

func (b *BundleGranter) auditBundle(ctx context.Context, userID, groupID string, err error) {
	if err == nil {
		b.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeBundleGranted,
			ActorID:  ActorSystemBundle,
			Resource: groupID,
			Metadata: map[string]any{"user_id": userID},
		})
		return
	}
	b.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeBundleFailed,
		ActorID:  ActorSystemBundle,
		Resource: groupID,
		Metadata: map[string]any{"user_id": userID, "error": err.Error()},
	})
}
