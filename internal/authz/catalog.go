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

import (
	"sort"
	"strings"
	"time"
)

// Resource vocabulary
const (
	ResourceGroups     = "groups"
	ResourceMembers    = "members"
	ResourceExclusions = "exclusions"
	ResourceDraws      = "draws"
	ResourceAdmin      = "admin"
)

// Action vocabulary
const (
	ActionRead              = "read"
	ActionCreate            = "create"
	ActionUpdate            = "update"
	ActionDelete            = "delete"
	ActionExecute           = "execute"
	ActionNotify            = "notify"
	ActionViewDashboard     = "view_dashboard"
	ActionManagePermissions = "manage_permissions"
)

// Categories used to filter the admin dashboard.
const (
	CategoryGroups     = "groups"
	CategoryMembers    = "members"
	CategoryExclusions = "exclusions"
	CategoryDraws      = "draws"
	CategoryAdmin      = "admin"
)

// Template is an unscoped catalog entry.
type Template struct {
	Resource    string
	Action      string
	Name        string
	Description string
	Category    string
	// Scopable templates may be granted per resource instance.
	Scopable bool
}

// Code returns the template's unscoped code.
func (t Template) Code() Code {
	return Code{Resource: t.Resource, Action: t.Action}
}

// DefaultTemplates is the fixed permission registry.
var DefaultTemplates = []Template{
	{ResourceGroups, ActionCreate, "Create groups", "Create new gift exchange groups", CategoryGroups, false},
	{ResourceGroups, ActionRead, "View groups", "View group details", CategoryGroups, true},
	{ResourceGroups, ActionUpdate, "Edit groups", "Change group name, budget and date", CategoryGroups, true},
	{ResourceGroups, ActionDelete, "Delete groups", "Delete a group and everything in it", CategoryGroups, true},

	{ResourceMembers, ActionCreate, "Add members", "Add members to a group", CategoryMembers, true},
	{ResourceMembers, ActionRead, "View members", "View the member list of a group", CategoryMembers, true},
	{ResourceMembers, ActionUpdate, "Edit members", "Change member details", CategoryMembers, true},
	{ResourceMembers, ActionDelete, "Remove members", "Remove members from a group", CategoryMembers, true},
	{ResourceMembers, ActionNotify, "Notify members", "Send notifications to group members", CategoryMembers, true},

	{ResourceExclusions, ActionCreate, "Add exclusions", "Prevent a member from drawing another", CategoryExclusions, true},
	{ResourceExclusions, ActionRead, "View exclusions", "View the exclusions of a group", CategoryExclusions, true},
	{ResourceExclusions, ActionUpdate, "Edit exclusions", "Change existing exclusions", CategoryExclusions, true},
	{ResourceExclusions, ActionDelete, "Remove exclusions", "Remove exclusions from a group", CategoryExclusions, true},

	{ResourceDraws, ActionRead, "View draw", "View the draw result of a group", CategoryDraws, true},
	{ResourceDraws, ActionExecute, "Run draw", "Run the gift exchange draw", CategoryDraws, true},

	{ResourceAdmin, ActionViewDashboard, "View admin dashboard", "Browse users and their permissions", CategoryAdmin, false},
	{ResourceAdmin, ActionManagePermissions, "Manage permissions", "Grant and revoke permissions of other users", CategoryAdmin, false},
}

// PermissionFilter narrows catalog or grant listings.
type PermissionFilter struct {
	Category string
	Search   string
}

// Match reports whether p passes the filter. Search is case-insensitive over
// code, name and description.
func (f PermissionFilter) Match(p Permission) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(p.Code), q) ||
		strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.ResourceName), q)
}

// Catalog is the process-wide registry of unscoped templates.
// Scoped variants are derived on demand.
type Catalog struct {
	templates map[string]Template
	order     []string
	createdAt time.Time
}

// NewCatalog builds a catalog from templates.
func NewCatalog(templates []Template) *Catalog {
	c := &Catalog{
		templates: make(map[string]Template, len(templates)),
		createdAt: time.Now().UTC().Truncate(time.Second),
	}
	for _, t := range templates {
		key := t.Code().String()
		if _, dup := c.templates[key]; !dup {
			c.order = append(c.order, key)
		}
		c.templates[key] = t
	}
	return c
}

// DefaultCatalog returns a catalog of DefaultTemplates.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultTemplates)
}

// Lookup finds the template for resource:action.
func (c *Catalog) Lookup(resource, action string) (Template, bool) {
	t, ok := c.templates[resource+codeSeparator+action]
	return t, ok
}

// Resolve returns the catalog metadata for a code. Scoped codes resolve
// against the template sharing resource:action.
func (c *Catalog) Resolve(code Code) (Permission, bool) {
	t, ok := c.Lookup(code.Resource, code.Action)
	if !ok {
		return Permission{}, false
	}
	if code.IsScoped() && !t.Scopable {
		return Permission{}, false
	}
	return Permission{
		Code:        code.String(),
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		CreatedAt:   c.createdAt,
		ResourceID:  code.ResourceID,
	}, true
}

// Templates returns templates in registration order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.templates[key])
	}
	return out
}

// List returns the unscoped permissions passing f, in registration order.
func (c *Catalog) List(f PermissionFilter) []Permission {
	out := make([]Permission, 0, len(c.order))
	for _, t := range c.Templates() {
		p, _ := c.Resolve(t.Code())
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the distinct categories in sorted order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, t := range c.templates {
		seen[t.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
