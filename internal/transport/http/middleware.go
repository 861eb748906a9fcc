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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/giftswap/giftswap/internal/observability/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logger.WithAttrs(r.Context(), logger.RequestID(middleware.GetReqID(r.Context())))
			r = r.WithContext(ctx)

			slog.DebugContext(ctx, "http_request_start",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(ctx, "http_request_end",
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the bearer token and adds the subject to context
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := h.issuer.Verify(raw)
		if err != nil {
			slog.DebugContext(r.Context(), "rejected bearer token", logger.Error(err))
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := WithSubject(r.Context(), claims.Subject())
		ctx = logger.WithAttrs(ctx, logger.UserID(claims.RegisteredClaims.Subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
