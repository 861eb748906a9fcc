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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event types
const (
	TypeLoginSuccess      = "login_success"
	TypeLoginFailed       = "login_failed"
	TypeUserCreated       = "user_created"
	TypePermissionGranted = "permission_granted"
	TypePermissionRevoked = "permission_revoked"
	TypeScopeRevoked      = "scope_revoked"
	TypeBundleGranted     = "bundle_granted"
	TypeBundleFailed      = "bundle_failed"
	TypeAccessDenied      = "access_denied"
	TypeGroupCreated      = "group_created"
	TypeGroupDeleted      = "group_deleted"
	TypeDrawExecuted      = "draw_executed"
	TypeMemberNotified    = "member_notified"
)

// Event represents an auditable action
type Event struct {
	Type      string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}

// MemoryLogger keeps events in memory. Tests use it to assert on audit trails.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryLogger) Log(_ context.Context, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of the recorded events.
func (m *MemoryLogger) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// OfType returns the recorded events with the given type.
func (m *MemoryLogger) OfType(eventType string) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

var secretMarkers = []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretMarkers {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
