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

package http

import (
	"context"

	"github.com/giftswap/giftswap/internal/authz"
)

type contextKey string

const (
	subjectKey contextKey = "subject"
)

// WithSubject stores the authenticated subject in ctx.
func WithSubject(ctx context.Context, s authz.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// GetSubject retrieves the authenticated subject from context.
func GetSubject(ctx context.Context) (authz.Subject, bool) {
	s, ok := ctx.Value(subjectKey).(authz.Subject)
	return s, ok
}

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if s, ok := GetSubject(ctx); ok {
		return s.UserID
	}
	return ""
}
