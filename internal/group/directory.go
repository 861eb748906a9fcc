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

package group

import (
	"context"
	"errors"

	"github.com/giftswap/giftswap/internal/authz"
)

// Directory resolves scoped permission ids to groups. Every scopable
// resource type (groups, members, exclusions, draws) is keyed by group id.
type Directory struct {
	repo GroupRepository
}

// NewDirectory creates a directory over repo.
func NewDirectory(repo GroupRepository) *Directory {
	return &Directory{repo: repo}
}

// ResourceExists satisfies authz.ResourceLookup.
func (d *Directory) ResourceExists(ctx context.Context, resource, resourceID string) (bool, error) {
	switch resource {
	case authz.ResourceGroups, authz.ResourceMembers, authz.ResourceExclusions, authz.ResourceDraws:
	default:
		return false, nil
	}
	_, err := d.repo.GetGroup(ctx, resourceID)
	if errors.Is(err, ErrGroupNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResourceNames satisfies authz.ResourceNamer.
func (d *Directory) ResourceNames(ctx context.Context, ids []string) (map[string]string, error) {
	return d.repo.GroupNames(ctx, ids)
}
