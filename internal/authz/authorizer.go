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
	"sort"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/observability/logger"
)

// How a decision was reached.
const (
	ViaAdmin    = "admin"
	ViaScoped   = "scoped"
	ViaUnscoped = "unscoped"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code"`
	Via     string `json:"via,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// GrantReader answers exact-code membership questions.
type GrantReader interface {
	IsGranted(ctx context.Context, userID string, code Code) (bool, error)
	GrantedCodes(ctx context.Context, userID string) ([]string, error)
}

// Authorizer decides whether a subject may act on a resource. It never writes.
type Authorizer struct {
	grants      GrantReader
	catalog     *Catalog
	auditLogger audit.Logger
	recorder    Recorder
}

// NewAuthorizer creates an authorizer over grants.
func NewAuthorizer(grants GrantReader, catalog *Catalog, auditLogger audit.Logger) *Authorizer {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Authorizer{
		grants:      grants,
		catalog:     catalog,
		auditLogger: auditLogger,
		recorder:    nopRecorder{},
	}
}

// SetRecorder attaches a metrics recorder.
func (a *Authorizer) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	a.recorder = r
}

// Authorize checks admin bypass, then the scoped code, then the unscoped
// blanket code for the same resource:action.
func (a *Authorizer) Authorize(ctx context.Context, subject Subject, resource, action, resourceID string) (Decision, error) {
	code := NewCode(resource, action, resourceID)
	d, err := a.decide(ctx, subject, code)
	if err != nil {
		return Decision{}, err
	}
	a.recorder.RecordDecision(ctx, resource, d.Allowed)
	return d, nil
}

func (a *Authorizer) decide(ctx context.Context, subject Subject, code Code) (Decision, error) {
	if err := code.Validate(); err != nil {
		return Decision{}, err
	}
	if subject.IsAdmin() {
		return Decision{Allowed: true, Code: code.String(), Via: ViaAdmin}, nil
	}

	ok, err := a.grants.IsGranted(ctx, subject.UserID, code)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check grant: %w", err)
	}
	if ok {
		via := ViaUnscoped
		if code.IsScoped() {
			via = ViaScoped
		}
		return Decision{Allowed: true, Code: code.String(), Via: via}, nil
	}

	if code.IsScoped() {
		ok, err = a.grants.IsGranted(ctx, subject.UserID, code.Template())
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check grant: %w", err)
		}
		if ok {
			return Decision{Allowed: true, Code: code.String(), Via: ViaUnscoped}, nil
		}
	}

	return Decision{
		Allowed: false,
		Code:    code.String(),
		Reason:  "missing permission: " + code.String(),
	}, nil
}

// Require is Authorize for enforcement paths: a denial becomes *ForbiddenError
// and is written to the audit log.
func (a *Authorizer) Require(ctx context.Context, subject Subject, resource, action, resourceID string) error {
	d, err := a.Authorize(ctx, subject, resource, action, resourceID)
	if err != nil {
		return err
	}
	if d.Allowed {
		return nil
	}

	slog.DebugContext(ctx, "authorization denied",
		logger.UserID(subject.UserID),
		logger.PermissionCode(d.Code),
		logger.Allowed(false),
	)
	a.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessDenied,
		ActorID:  subject.UserID,
		Resource: d.Code,
		Metadata: map[string]any{"reason": d.Reason},
	})
	return &ForbiddenError{Code: d.Code, Reason: d.Reason}
}

// Effective is what a subject may do, for display.
type Effective struct {
	All   bool     `json:"all_permissions"`
	Codes []string `json:"permissions"`
}

// EffectivePermissions reports admins as holding everything and everyone
// else as holding exactly their granted codes.
func (a *Authorizer) EffectivePermissions(ctx context.Context, subject Subject) (*Effective, error) {
	if subject.IsAdmin() {
		return &Effective{All: true, Codes: []string{}}, nil
	}
	codes, err := a.grants.GrantedCodes(ctx, subject.UserID)
	if err != nil {
		return nil, err
	}
	sort.Strings(codes)
	return &Effective{Codes: codes}, nil
}

// AllowedActions lists the catalog actions on resource the subject may perform.
func (a *Authorizer) AllowedActions(ctx context.Context, subject Subject, resource, resourceID string) ([]string, error) {
	var actions []string
	for _, t := range a.catalog.Templates() {
		if t.Resource != resource {
			continue
		}
		if resourceID != "" && !t.Scopable {
			continue
		}
		d, err := a.decide(ctx, subject, NewCode(resource, t.Action, resourceID))
		if err != nil {
			return nil, err
		}
		if d.Allowed {
			actions = append(actions, t.Action)
		}
	}
	return actions, nil
}
