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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/observability/logger"
)

const (
	EnvBootstrapAdminEmail    = "GIFTSWAP_BOOTSTRAP_ADMIN_EMAIL"
	EnvBootstrapAdminPassword = "GIFTSWAP_BOOTSTRAP_ADMIN_PASSWORD"
	EnvBootstrapAdminName     = "GIFTSWAP_BOOTSTRAP_ADMIN_NAME"
)

// BootstrapConfig names the first admin account.
type BootstrapConfig struct {
	Email    string
	Password string
	Name     string
}

// BootstrapConfigFromEnv reads the bootstrap admin from the environment.
func BootstrapConfigFromEnv() BootstrapConfig {
	name := os.Getenv(EnvBootstrapAdminName)
	if name == "" {
		name = "Administrator"
	}
	return BootstrapConfig{
		Email:    os.Getenv(EnvBootstrapAdminEmail),
		Password: os.Getenv(EnvBootstrapAdminPassword),
		Name:     name,
	}
}

// BootstrapService creates the first admin of an empty installation.
type BootstrapService struct {
	identityService *Service
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service) *BootstrapService {
	return &BootstrapService{identityService: identityService}
}

// Bootstrap creates the admin account described by cfg unless an admin
// already exists. It returns the created user, or nil when nothing was done.
func (s *BootstrapService) Bootstrap(ctx context.Context, cfg BootstrapConfig) (*User, error) {
	if cfg.Email == "" {
		return nil, nil
	}

	n, err := s.identityService.repo.CountByRole(ctx, authz.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if n > 0 {
		return nil, nil
	}

	user, err := s.identityService.CreateUser(ctx, cfg.Name, cfg.Email, cfg.Password, authz.RoleAdmin)
	if err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return nil, fmt.Errorf("bootstrap email %s belongs to a non-admin user: %w", cfg.Email, err)
		}
		return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	slog.InfoContext(ctx, "bootstrapped initial admin", logger.UserID(user.ID), logger.Email(user.Email))
	return user, nil
}
