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

package authz

// -----------------------------------------------------------------------------
// Role Constants
// A user has exactly one role, fixed at creation.
// -----------------------------------------------------------------------------

// Role is the coarse role stored on a user.
type Role string

const (
	// RoleAdmin satisfies every authorization check without explicit grants.
	RoleAdmin Role = "admin"

	// RoleUser is checked against the grant table.
	RoleUser Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Subject is the actor of an authorization check.
type Subject struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the subject takes the admin bypass.
func (s Subject) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// -----------------------------------------------------------------------------
// Actor Constants
// Used as GrantedBy / audit actor for non-human writes.
// -----------------------------------------------------------------------------

const (
	// ActorSystemBundle marks grants written by the auto-grant policy.
	ActorSystemBundle = "system:auto_grant"

	// ActorSystemSignup marks grants written at registration.
	ActorSystemSignup = "system:signup"
)
