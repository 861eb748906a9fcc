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
	"net/mail"
	"strings"
	"time"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/id"
)

const (
	minPasswordLength = 8
	maxNameLength     = 100
	defaultSearchSize = 50
)

// Service provides identity-related business logic
type Service struct {
	repo        UserRepository
	hasher      *PasswordHasher
	auditLogger audit.Logger
}

// NewService creates a new identity service
func NewService(repo UserRepository, hasher *PasswordHasher, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	return s.CreateUser(ctx, name, email, password, authz.RoleUser)
}

// CreateUser creates an account with an explicit role.
func (s *Service) CreateUser(ctx context.Context, name, email, password string, role authz.Role) (*User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !isStrongPassword(password) {
		return nil, ErrWeakPassword
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:        id.NewUUIDv7(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	creds := &Credentials{UserID: user.ID, PasswordHash: hash, UpdatedAt: now}

	if err := s.repo.Create(ctx, user, creds); err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  user.ID,
		Resource: user.ID,
		Metadata: map[string]any{"email": user.Email, "role": string(user.Role)},
	})

	return user, nil
}

// Authenticate authenticates a user with email and password
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: email,
			Metadata: map[string]any{"reason": "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	creds, err := s.repo.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, creds.PasswordHash)
	if err != nil || !valid {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{"reason": "invalid_password"},
		})
		return nil, ErrInvalidCredentials
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  user.ID,
		Resource: "login",
	})
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UserExists satisfies authz.UserLookup.
func (s *Service) UserExists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return s.repo.Exists(ctx, userID)
}

// SearchUsers lists users whose name or email contains query.
func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]*User, error) {
	if limit <= 0 || limit > defaultSearchSize {
		limit = defaultSearchSize
	}
	users, err := s.repo.Search(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if len(email) <= 3 || len(email) >= 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isStrongPassword(password string) bool {
	return len(password) >= minPasswordLength
}
