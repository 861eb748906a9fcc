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

// Package redis caches permission lookups in Redis in front of a durable
// grant repository.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/observability/logger"
	goredis "github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis commands the cache issues.
// *goredis.Client satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	MGet(ctx context.Context, keys ...string) *goredis.SliceCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
}

// Config holds connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

const (
	keyPrefix     = "giftswap:grants:"
	generationKey = keyPrefix + "generation"
	versionPrefix = keyPrefix + "ver:"
)

// GrantCache implements authz.GrantRepository. Reads are served from a
// per-user snapshot keyed by the global generation and the user's version,
// both read before the durable read. Every write bumps the user's version
// after the durable write, so a snapshot filled from a pre-write read lands
// on a key no later reader looks up. Scope revocations touch unknown users
// and bump the generation instead, which orphans every snapshot at once.
//
// Failed reads fall through to the inner repository. A failed bump is
// returned to the caller.
type GrantCache struct {
	inner  authz.GrantRepository
	client Client
	ttl    time.Duration
}

// NewGrantCache wraps inner. A zero ttl defaults to 30 seconds.
func NewGrantCache(inner authz.GrantRepository, client Client, ttl time.Duration) *GrantCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &GrantCache{inner: inner, client: client, ttl: ttl}
}

func (c *GrantCache) Insert(ctx context.Context, g *authz.Grant) (bool, error) {
	created, err := c.inner.Insert(ctx, g)
	if err != nil {
		return false, err
	}
	// Bumped on a no-op insert too, so retrying after a failed bump invalidates.
	if err := c.bumpVersion(ctx, g.UserID); err != nil {
		return created, err
	}
	return created, nil
}

func (c *GrantCache) Delete(ctx context.Context, userID, code string) error {
	if err := c.inner.Delete(ctx, userID, code); err != nil {
		return err
	}
	return c.bumpVersion(ctx, userID)
}

func (c *GrantCache) Exists(ctx context.Context, userID, code string) (bool, error) {
	grants, err := c.ListForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if g.PermissionCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (c *GrantCache) ListForUser(ctx context.Context, userID string) ([]*authz.Grant, error) {
	key, err := c.userKey(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "grant cache unavailable", logger.Error(err))
		return c.inner.ListForUser(ctx, userID)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var grants []*authz.Grant
		if jerr := json.Unmarshal(raw, &grants); jerr == nil {
			return grants, nil
		}
		slog.WarnContext(ctx, "discarding corrupt grant snapshot", logger.UserID(userID), logger.CacheKey(key))
	case !errors.Is(err, goredis.Nil):
		slog.WarnContext(ctx, "grant cache read failed", logger.CacheKey(key), logger.Error(err))
		return c.inner.ListForUser(ctx, userID)
	}

	grants, err := c.inner.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(grants); jerr == nil {
		if serr := c.client.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			slog.WarnContext(ctx, "grant cache write failed", logger.UserID(userID), logger.Error(serr))
		}
	}
	return grants, nil
}

func (c *GrantCache) DeleteByResource(ctx context.Context, resourceID string) (int64, error) {
	n, err := c.inner.DeleteByResource(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		slog.ErrorContext(ctx, "grant cache generation bump failed", logger.ResourceID(resourceID), logger.Error(err))
		return n, fmt.Errorf("failed to invalidate grant cache: %w", err)
	}
	return n, nil
}

func (c *GrantCache) bumpVersion(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, versionPrefix+userID).Err(); err != nil {
		slog.ErrorContext(ctx, "grant cache version bump failed", logger.UserID(userID), logger.Error(err))
		return fmt.Errorf("failed to invalidate grant cache: %w", err)
	}
	return nil
}

// userKey resolves the snapshot key from the current generation and user version.
func (c *GrantCache) userKey(ctx context.Context, userID string) (string, error) {
	vals, err := c.client.MGet(ctx, generationKey, versionPrefix+userID).Result()
	if err != nil {
		return "", err
	}
	if len(vals) != 2 {
		return "", fmt.Errorf("unexpected mget reply length %d", len(vals))
	}
	gen, err := counter(vals[0])
	if err != nil {
		return "", err
	}
	ver, err := counter(vals[1])
	if err != nil {
		return "", err
	}
	return keyPrefix + strconv.FormatInt(gen, 10) + ":" + strconv.FormatInt(ver, 10) + ":" + userID, nil
}

func counter(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cache counter %q: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid cache counter type %T", v)
	}
}
