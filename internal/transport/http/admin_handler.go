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

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/go-chi/chi/v5"
)

const (
	defaultUserSearchLimit = 20
	maxUserSearchLimit     = 100
)

// AdminListUsers searches accounts by name or email
// @Summary Search users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name or email fragment"
// @Param limit query int false "Maximum results"
// @Success 200 {array} identity.User
// @Failure 403 {object} map[string]string
// @Router /admin/users [get]
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	caller := subjectFrom(r)
	if err := h.authorizer.Require(r.Context(), caller, authz.ResourceAdmin, authz.ActionViewDashboard, ""); err != nil {
		h.writeError(w, r, err)
		return
	}

	limit, err := optionalInt(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 {
		limit = defaultUserSearchLimit
	}
	limit = min(limit, maxUserSearchLimit)

	users, err := h.identityService.SearchUsers(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// AdminListCatalog lists every grantable permission template
// @Summary List permission catalog
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category"
// @Param q query string false "Search code, name and description"
// @Success 200 {array} authz.Permission
// @Router /admin/permissions [get]
func (h *Handler) AdminListCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.authorizer.Require(r.Context(), subjectFrom(r), authz.ResourceAdmin, authz.ActionViewDashboard, ""); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.admin.ListCatalog(permissionFilter(r)))
}

// AdminListCategories lists the catalog categories for filtering
// @Summary List permission categories
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} string
// @Failure 403 {object} map[string]string
// @Router /admin/permissions/categories [get]
func (h *Handler) AdminListCategories(w http.ResponseWriter, r *http.Request) {
	if err := h.authorizer.Require(r.Context(), subjectFrom(r), authz.ResourceAdmin, authz.ActionViewDashboard, ""); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.admin.ListCategories())
}

// AdminListGranted lists what a user holds
// @Summary List granted permissions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param category query string false "Category"
// @Param q query string false "Search"
// @Success 200 {array} authz.Permission
// @Failure 404 {object} map[string]string
// @Router /admin/users/{userID}/permissions [get]
func (h *Handler) AdminListGranted(w http.ResponseWriter, r *http.Request) {
	perms, err := h.admin.ListGrantedPermissions(r.Context(), subjectFrom(r),
		chi.URLParam(r, "userID"), permissionFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// AdminListAvailable lists what could still be granted to a user
// @Summary List available permissions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param resource_ids query string false "Comma separated resource ids to offer scoped codes for"
// @Param category query string false "Category"
// @Param q query string false "Search"
// @Success 200 {array} authz.Permission
// @Router /admin/users/{userID}/permissions/available [get]
func (h *Handler) AdminListAvailable(w http.ResponseWriter, r *http.Request) {
	perms, err := h.admin.ListAvailablePermissions(r.Context(), subjectFrom(r),
		chi.URLParam(r, "userID"), splitList(r.URL.Query().Get("resource_ids")), permissionFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

// AdminListGrouped lists a user's grants split into system and per-resource sets
// @Summary List granted permissions by resource
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} authz.PermissionGroups
// @Router /admin/users/{userID}/permissions/grouped [get]
func (h *Handler) AdminListGrouped(w http.ResponseWriter, r *http.Request) {
	perms, err := h.admin.ListGrantedPermissions(r.Context(), subjectFrom(r),
		chi.URLParam(r, "userID"), permissionFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	groups, err := h.admin.PartitionPermissions(r.Context(), perms)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// GrantRequest names the code to grant
type GrantRequest struct {
	PermissionCode string `json:"permission_code" example:"groups:read:0190b5a4-7c1e-7d3a-9f00-000000000001"`
}

// AdminGrant grants a permission code to a user
// @Summary Grant permission
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param request body GrantRequest true "Permission"
// @Success 201 {object} authz.Grant
// @Success 200 {object} authz.Grant "Already held"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{userID}/permissions [post]
func (h *Handler) AdminGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, created, err := h.admin.GrantToUser(r.Context(), subjectFrom(r),
		chi.URLParam(r, "userID"), req.PermissionCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, grant)
}

// AdminRevoke revokes a permission code from a user
// @Summary Revoke permission
// @Tags Admin
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param permissionCode path string true "Permission code"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{userID}/permissions/{permissionCode} [delete]
func (h *Handler) AdminRevoke(w http.ResponseWriter, r *http.Request) {
	code, err := permissionCodeParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	err = h.admin.RevokeFromUser(r.Context(), subjectFrom(r), chi.URLParam(r, "userID"), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// permissionCodeParam returns the code path segment with percent-escapes
// such as %3A decoded. chi matches on the raw path and leaves them in place.
func permissionCodeParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "permissionCode")
	code, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", authz.ErrMalformedCode, raw, err)
	}
	return code, nil
}

func permissionFilter(r *http.Request) authz.PermissionFilter {
	q := r.URL.Query()
	return authz.PermissionFilter{
		Category: q.Get("category"),
		Search:   q.Get("q"),
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
