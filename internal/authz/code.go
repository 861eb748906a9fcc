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
	"fmt"
	"strings"
)

const codeSeparator = ":"

// Code is a parsed permission code: resource:action or resource:action:resourceId.
type Code struct {
	Resource   string
	Action     string
	ResourceID string
}

// NewCode builds a code. An empty resourceID yields an unscoped code.
func NewCode(resource, action, resourceID string) Code {
	return Code{Resource: resource, Action: action, ResourceID: resourceID}
}

// ParseCode splits a permission string into its segments.
func ParseCode(s string) (Code, error) {
	parts := strings.Split(s, codeSeparator)
	if len(parts) != 2 && len(parts) != 3 {
		return Code{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedCode, s, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return Code{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedCode, s)
		}
	}

	c := Code{Resource: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		c.ResourceID = parts[2]
	}
	return c, nil
}

// MustParseCode is ParseCode for literals known to be valid.
func MustParseCode(s string) Code {
	c, err := ParseCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the code by literal concatenation.
func (c Code) String() string {
	if c.ResourceID == "" {
		return c.Resource + codeSeparator + c.Action
	}
	return c.Resource + codeSeparator + c.Action + codeSeparator + c.ResourceID
}

// Validate checks a code built in memory against the grammar.
func (c Code) Validate() error {
	if c.Resource == "" || c.Action == "" {
		return fmt.Errorf("%w: %q has an empty segment", ErrMalformedCode, c.String())
	}
	for _, seg := range []string{c.Resource, c.Action, c.ResourceID} {
		if strings.Contains(seg, codeSeparator) {
			return fmt.Errorf("%w: segment %q contains %q", ErrMalformedCode, seg, codeSeparator)
		}
	}
	return nil
}

// IsScoped reports whether the code names a concrete resource instance.
func (c Code) IsScoped() bool {
	return c.ResourceID != ""
}

// Template returns the unscoped resource:action form.
func (c Code) Template() Code {
	return Code{Resource: c.Resource, Action: c.Action}
}

// Scoped returns the code scoped to resourceID.
func (c Code) Scoped(resourceID string) Code {
	return Code{Resource: c.Resource, Action: c.Action, ResourceID: resourceID}
}

// IsScoped reports whether a raw code string parses to a scoped code.
// Malformed strings are never scoped.
func IsScoped(code string) bool {
	c, err := ParseCode(code)
	return err == nil && c.IsScoped()
}

// ExtractResourceIDs collects the distinct resource ids referenced by scoped codes.
// Unscoped and malformed codes are ignored.
func ExtractResourceIDs(codes []string) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, raw := range codes {
		c, err := ParseCode(raw)
		if err != nil || !c.IsScoped() {
			continue
		}
		ids[c.ResourceID] = struct{}{}
	}
	return ids
}
