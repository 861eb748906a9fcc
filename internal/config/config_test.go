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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

// TestPurpose: Validates that environment variables override the YAML file.
// Scope: Unit Test
// Expected: File values apply, env values win where both are set.
// Test Case ID: CFG-01
func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "giftswap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  request_timeout: 30s
  trust_proxy: true
store:
  driver: postgres
database:
  password: from-file
redis:
  addr: localhost:6379
  grant_ttl: 1m
session:
  secret: `+secret+`
`), 0o600))

	t.Setenv(EnvConfigFile, path)
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("SESSION_LIFETIME", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Redis.GrantTTL)
	assert.Equal(t, 2*time.Hour, cfg.Session.Lifetime)
	assert.Equal(t, "giftswap", cfg.Database.User)
}

// TestPurpose: Validates configuration validation rules.
// Scope: Unit Test
// Security: Weak session secrets are refused at startup
// Expected: Each broken config reports an error; the default plus a secret passes.
// Test Case ID: CFG-02
func TestValidate(t *testing.T) {
	ok := Default()
	ok.Session.Secret = secret
	require.NoError(t, ok.Validate())

	cases := map[string]func(c *Config){
		"short secret":      func(c *Config) { c.Session.Secret = "short" },
		"unknown driver":    func(c *Config) { c.Store.Driver = "sqlite" },
		"postgres no pass":  func(c *Config) { c.Store.Driver = DriverPostgres },
		"zero rate limit":   func(c *Config) { c.RateLimit.Burst = 0 },
		"negative lifetime": func(c *Config) { c.Session.Lifetime = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.Session.Secret = secret
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

// TestPurpose: Validates that a malformed env value keeps the prior value.
// Scope: Unit Test
// Expected: A bad duration leaves the default in place.
// Test Case ID: CFG-03
func TestLoad_BadEnvValueKeepsDefault(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("SESSION_SECRET", secret)
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}
