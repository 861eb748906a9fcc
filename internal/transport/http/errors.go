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
	"errors"
	"log/slog"
	"net/http"

	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/group"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/giftswap/giftswap/internal/observability/logger"
)

// writeError maps domain errors to status codes. Denials always carry the
// same body so that callers cannot tell a hidden resource from a missing one.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")

	case errors.Is(err, identity.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")

	case errors.Is(err, authz.ErrMalformedCode),
		errors.Is(err, authz.ErrUnknownPermission),
		errors.Is(err, group.ErrValidation),
		errors.Is(err, group.ErrNotEnoughMembers),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrInvalidName),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, authz.ErrUserNotFound),
		errors.Is(err, authz.ErrResourceNotFound),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, group.ErrMemberNotFound),
		errors.Is(err, group.ErrExclusionNotFound),
		errors.Is(err, group.ErrDrawNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, identity.ErrUserAlreadyExists),
		errors.Is(err, group.ErrDuplicateMember),
		errors.Is(err, group.ErrDuplicateExclusion),
		errors.Is(err, group.ErrDrawImpossible):
		respondError(w, http.StatusConflict, err.Error())

	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
