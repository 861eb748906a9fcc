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

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that the CLI exposes its subcommands.
// Scope: Unit Test
// Security: N/A
// Expected: serve, migrate, bootstrap and reset are registered under the root command.
// Test Case ID: CLI-01
func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "bootstrap", "reset"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

// TestPurpose: Validates that reset refuses to run without confirmation.
// Scope: Unit Test
// Security: Destructive command guard
// Expected: Running reset without --yes fails before touching configuration or the database.
// Test Case ID: CLI-02
func TestResetCmd_RequiresConfirmation(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"reset"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}
