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
	"time"

	"github.com/giftswap/giftswap/internal/authz"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidName        = errors.New("invalid name")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrInvalidRole        = errors.New("invalid role")
)

// User represents a registered account. Role never changes after creation.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      authz.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Subject returns the authorization subject for the user.
func (u *User) Subject() authz.Subject {
	return authz.Subject{UserID: u.ID, Role: u.Role}
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create stores the user and its credentials. Returns ErrUserAlreadyExists
	// when the email is taken.
	Create(ctx context.Context, user *User, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email, case-insensitively
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// Exists reports whether the id refers to a user
	Exists(ctx context.Context, id string) (bool, error)

	// Search matches name or email, ordered by name. An empty query lists everyone.
	Search(ctx context.Context, query string, limit int) ([]*User, error)

	// CountByRole counts users holding role
	CountByRole(ctx context.Context, role authz.Role) (int, error)
}
