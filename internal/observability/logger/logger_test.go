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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that attributes stored on the context appear on every record.
// Scope: Unit Test
// Security: Request and user ids are attached without each call site repeating them
// Expected: A JSON record logged with the context carries request_id and user_id alongside call-site attributes.
// Test Case ID: LOG-01
func TestLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", ServiceName: "giftswap", Output: &buf})

	ctx := WithAttrs(context.Background(), RequestID("req-1"))
	ctx = WithAttrs(ctx, UserID("user-1"))
	log.InfoContext(ctx, "granted", PermissionCode("groups:read:g1"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "granted", rec["msg"])
	assert.Equal(t, "giftswap", rec["service"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "user-1", rec["user_id"])
	assert.Equal(t, "groups:read:g1", rec["permission_code"])
}

// TestPurpose: Validates level parsing and filtering.
// Scope: Unit Test
// Security: N/A
// Expected: Known names parse, unknown names error, and records below the level are dropped.
// Test Case ID: LOG-02
func TestLogger_Levels(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)

	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

// TestPurpose: Validates that the fanout handler delivers to every sink.
// Scope: Unit Test
// Security: N/A
// Expected: Both sinks receive the record; a sink filtered by level is skipped.
// Test Case ID: LOG-03
func TestFanoutHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewFanoutHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h).With(Component("test"))

	log.Info("info record")
	log.Error("error record")

	assert.Contains(t, a.String(), "info record")
	assert.Contains(t, a.String(), "component=test")
	assert.NotContains(t, b.String(), "info record")
	assert.Contains(t, b.String(), "error record")
}
