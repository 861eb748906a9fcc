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
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/giftswap/giftswap/internal/observability/logger"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// EnvConfigFile names an optional YAML file loaded before environment overrides.
const EnvConfigFile = "CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
	Security      SecurityConfig      `yaml:"security"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, postgres
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"name"`
	SSLMode      string `yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the grant cache connection. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	GrantTTL time.Duration `yaml:"grant_ttl"`
}

// SessionConfig holds bearer token configuration
type SessionConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Lifetime time.Duration `yaml:"lifetime"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel          string  `yaml:"log_level"`
	LogFormat         string  `yaml:"log_format"`
	OTELEnabled       bool    `yaml:"otel_enabled"`
	ServiceName       string  `yaml:"service_name"`
	ServiceVersion    string  `yaml:"service_version"`
	TraceSamplingRate float64 `yaml:"trace_sampling_rate"`
}

// SecurityConfig holds password hashing parameters
type SecurityConfig struct {
	Argon2Memory      uint32 `yaml:"argon2_memory"`
	Argon2Iterations  uint32 `yaml:"argon2_iterations"`
	Argon2Parallelism uint8  `yaml:"argon2_parallelism"`
	Argon2SaltLength  uint32 `yaml:"argon2_salt_length"`
	Argon2KeyLength   uint32 `yaml:"argon2_key_length"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Store: StoreConfig{Driver: DriverMemory},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "giftswap",
			Database:     "giftswap",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{GrantTTL: 30 * time.Second},
		Session: SessionConfig{
			Issuer:   "giftswap",
			Lifetime: 24 * time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			ServiceName:       "giftswap",
			ServiceVersion:    "0.1.0",
			TraceSamplingRate: 1.0,
		},
		Security: SecurityConfig{
			Argon2Memory:      65536,
			Argon2Iterations:  3,
			Argon2Parallelism: 4,
			Argon2SaltLength:  16,
			Argon2KeyLength:   32,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = parseDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = parseDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = parseDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.RequestTimeout = parseDuration("SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.TrustProxy = parseBool("SERVER_TRUST_PROXY", c.Server.TrustProxy)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = parseInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = parseInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = parseInt("REDIS_DB", c.Redis.DB)
	c.Redis.GrantTTL = parseDuration("REDIS_GRANT_TTL", c.Redis.GrantTTL)

	c.Session.Secret = getEnv("SESSION_SECRET", c.Session.Secret)
	c.Session.Issuer = getEnv("SESSION_ISSUER", c.Session.Issuer)
	c.Session.Lifetime = parseDuration("SESSION_LIFETIME", c.Session.Lifetime)

	c.Observability.LogLevel = getEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.OTELEnabled = parseBool("OTEL_ENABLED", c.Observability.OTELEnabled)
	c.Observability.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Observability.ServiceName)
	c.Observability.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", c.Observability.ServiceVersion)
	c.Observability.TraceSamplingRate = parseFloat("OTEL_TRACE_SAMPLING_RATE", c.Observability.TraceSamplingRate)

	c.Security.Argon2Memory = uint32(parseInt("ARGON2_MEMORY", int(c.Security.Argon2Memory)))
	c.Security.Argon2Iterations = uint32(parseInt("ARGON2_ITERATIONS", int(c.Security.Argon2Iterations)))
	c.Security.Argon2Parallelism = uint8(parseInt("ARGON2_PARALLELISM", int(c.Security.Argon2Parallelism)))
	c.Security.Argon2SaltLength = uint32(parseInt("ARGON2_SALT_LENGTH", int(c.Security.Argon2SaltLength)))
	c.Security.Argon2KeyLength = uint32(parseInt("ARGON2_KEY_LENGTH", int(c.Security.Argon2KeyLength)))

	c.RateLimit.RequestsPerSecond = parseFloat("RATELIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = parseInt("RATELIMIT_BURST", c.RateLimit.Burst)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.Session.Lifetime <= 0 {
		errs = append(errs, errors.New("SESSION_LIFETIME must be positive"))
	}
	if _, err := logger.ParseLevel(c.Observability.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
