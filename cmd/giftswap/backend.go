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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/config"
	"github.com/giftswap/giftswap/internal/group"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/giftswap/giftswap/internal/observability/logger"
	"github.com/giftswap/giftswap/internal/store/memory"
	"github.com/giftswap/giftswap/internal/store/postgres"
	"github.com/giftswap/giftswap/internal/store/redis"
)

// backend is the set of repositories chosen by the store driver.
type backend struct {
	users  identity.UserRepository
	grants authz.GrantRepository
	groups group.Repository
	ping   func(ctx context.Context) error
	closer []func()
}

func (b *backend) Close() {
	for i := len(b.closer) - 1; i >= 0; i-- {
		b.closer[i]()
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openBackend builds the repositories for cfg.Store.Driver and, when Redis
// is configured, fronts the grant repository with the grant cache.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{ping: func(context.Context) error { return nil }}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closer = append(b.closer, db.Close)
		b.users = postgres.NewUserRepository(db)
		b.grants = postgres.NewGrantRepository(db)
		b.groups = postgres.NewGroupRepository(db)
		b.ping = db.Ping
		slog.InfoContext(ctx, "connected to database", logger.Component("store"))
	case config.DriverMemory:
		b.users = memory.NewUserRepository()
		b.grants = memory.NewGrantRepository()
		b.groups = memory.NewGroupRepository()
		slog.WarnContext(ctx, "using in-memory store; data is lost on restart", logger.Component("store"))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.closer = append(b.closer, func() { _ = client.Close() })
		b.grants = redis.NewGrantCache(b.grants, client, cfg.Redis.GrantTTL)

		dbPing := b.ping
		b.ping = func(ctx context.Context) error {
			return errors.Join(dbPing(ctx), client.Ping(ctx).Err())
		}
		slog.InfoContext(ctx, "grant cache enabled", logger.Component("redis"))
	}
	return b, nil
}

func newPasswordHasher(cfg *config.Config) *identity.PasswordHasher {
	return identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
}
