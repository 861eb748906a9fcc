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
	"net/http"
	"strconv"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/group"
	"github.com/go-chi/chi/v5"
)

// GroupDetail is a group with what the caller may do on it, keyed by resource.
type GroupDetail struct {
	*group.Group
	AllowedActions map[string][]string `json:"allowed_actions"`
}

var groupScopedResources = []string{
	authz.ResourceGroups,
	authz.ResourceMembers,
	authz.ResourceExclusions,
	authz.ResourceDraws,
}

// ListGroups lists the groups the caller may read
// @Summary List groups
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param q query string false "Search name and description"
// @Param sort query string false "name, -name, created_at or -created_at"
// @Param page query int false "Page number, from 1"
// @Param page_size query int false "Page size"
// @Success 200 {object} group.GroupPage
// @Router /groups [get]
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid page")
		return
	}
	pageSize, err := optionalInt(q.Get("page_size"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid page_size")
		return
	}

	result, err := h.groups.ListGroups(r.Context(), subjectFrom(r), group.ListOptions{
		Query:    q.Get("q"),
		Sort:     q.Get("sort"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateGroup creates a group owned by the caller
// @Summary Create group
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body group.GroupInput true "Group"
// @Success 201 {object} group.Group
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /groups [post]
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var in group.GroupInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.groups.CreateGroup(r.Context(), subjectFrom(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, g)
}

// GetGroup returns one group
// @Summary Get group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 200 {object} GroupDetail
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{groupID} [get]
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	subject := subjectFrom(r)
	g, err := h.groups.GetGroup(r.Context(), subject, chi.URLParam(r, "groupID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	detail := GroupDetail{Group: g, AllowedActions: make(map[string][]string, len(groupScopedResources))}
	for _, resource := range groupScopedResources {
		actions, err := h.authorizer.AllowedActions(r.Context(), subject, resource, g.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if actions == nil {
			actions = []string{}
		}
		detail.AllowedActions[resource] = actions
	}
	respondJSON(w, http.StatusOK, detail)
}

// UpdateGroup changes the provided fields of a group
// @Summary Update group
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param request body group.GroupInput true "Fields to change"
// @Success 200 {object} group.Group
// @Router /groups/{groupID} [put]
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var in group.GroupInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.groups.UpdateGroup(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

// DeleteGroup removes a group and every grant scoped to it
// @Summary Delete group
// @Tags Groups
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 204
// @Router /groups/{groupID} [delete]
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.DeleteGroup(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers
// @Summary List members
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 200 {array} group.Member
// @Router /groups/{groupID}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.groups.ListMembers(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// AddMember
// @Summary Add member
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param request body group.MemberInput true "Member"
// @Success 201 {object} group.Member
// @Failure 409 {object} map[string]string
// @Router /groups/{groupID}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var in group.MemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.groups.AddMember(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// UpdateMember
// @Summary Update member
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param memberID path string true "Member ID"
// @Param request body group.MemberInput true "Fields to change"
// @Success 200 {object} group.Member
// @Router /groups/{groupID}/members/{memberID} [put]
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var in group.MemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.groups.UpdateMember(r.Context(), subjectFrom(r),
		chi.URLParam(r, "groupID"), chi.URLParam(r, "memberID"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// RemoveMember
// @Summary Remove member
// @Tags Members
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param memberID path string true "Member ID"
// @Success 204
// @Router /groups/{groupID}/members/{memberID} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.groups.RemoveMember(r.Context(), subjectFrom(r),
		chi.URLParam(r, "groupID"), chi.URLParam(r, "memberID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotifyRequest is an optional note sent with a member notification
type NotifyRequest struct {
	Message string `json:"message"`
}

// NotifyMember queues a notification to a member
// @Summary Notify member
// @Tags Members
// @Accept json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param memberID path string true "Member ID"
// @Param request body NotifyRequest false "Message"
// @Success 202
// @Router /groups/{groupID}/members/{memberID}/notify [post]
func (h *Handler) NotifyMember(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.groups.NotifyMember(r.Context(), subjectFrom(r),
		chi.URLParam(r, "groupID"), chi.URLParam(r, "memberID"), req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ListExclusions
// @Summary List exclusions
// @Tags Exclusions
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 200 {array} group.Exclusion
// @Router /groups/{groupID}/exclusions [get]
func (h *Handler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	exclusions, err := h.groups.ListExclusions(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exclusions)
}

// AddExclusion
// @Summary Add exclusion
// @Tags Exclusions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param request body group.ExclusionInput true "Exclusion"
// @Success 201 {object} group.Exclusion
// @Router /groups/{groupID}/exclusions [post]
func (h *Handler) AddExclusion(w http.ResponseWriter, r *http.Request) {
	var in group.ExclusionInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.groups.AddExclusion(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// UpdateExclusion
// @Summary Update exclusion
// @Tags Exclusions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param exclusionID path string true "Exclusion ID"
// @Param request body group.ExclusionInput true "Exclusion"
// @Success 200 {object} group.Exclusion
// @Router /groups/{groupID}/exclusions/{exclusionID} [put]
func (h *Handler) UpdateExclusion(w http.ResponseWriter, r *http.Request) {
	var in group.ExclusionInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.groups.UpdateExclusion(r.Context(), subjectFrom(r),
		chi.URLParam(r, "groupID"), chi.URLParam(r, "exclusionID"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// RemoveExclusion
// @Summary Remove exclusion
// @Tags Exclusions
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Param exclusionID path string true "Exclusion ID"
// @Success 204
// @Router /groups/{groupID}/exclusions/{exclusionID} [delete]
func (h *Handler) RemoveExclusion(w http.ResponseWriter, r *http.Request) {
	err := h.groups.RemoveExclusion(r.Context(), subjectFrom(r),
		chi.URLParam(r, "groupID"), chi.URLParam(r, "exclusionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDraw returns the stored draw
// @Summary Get draw
// @Tags Draws
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 200 {object} group.DrawResult
// @Failure 404 {object} map[string]string
// @Router /groups/{groupID}/draw [get]
func (h *Handler) GetDraw(w http.ResponseWriter, r *http.Request) {
	d, err := h.groups.GetDraw(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// ExecuteDraw draws a new assignment, replacing any previous one
// @Summary Execute draw
// @Tags Draws
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 201 {object} group.DrawResult
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /groups/{groupID}/draw [post]
func (h *Handler) ExecuteDraw(w http.ResponseWriter, r *http.Request) {
	d, err := h.groups.ExecuteDraw(r.Context(), subjectFrom(r), chi.URLParam(r, "groupID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
