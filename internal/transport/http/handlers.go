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

// @title Giftswap API
// @version 1.0.0
// @description Gift exchange groups with resource-scoped permissions
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/group"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/giftswap/giftswap/internal/observability/logger"
	"github.com/giftswap/giftswap/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

// Services are the domain dependencies of the HTTP layer.
type Services struct {
	Identity   *identity.Service
	Authorizer *authz.Authorizer
	Bundles    *authz.BundleGranter
	Admin      *authz.AdminService
	Groups     *group.Service
	Issuer     *session.Issuer
	Audit      audit.Logger

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ready reports backend health for /health when set.
	Ready func(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	authorizer      *authz.Authorizer
	bundles         *authz.BundleGranter
	admin           *authz.AdminService
	groups          *group.Service
	issuer          *session.Issuer
	auditLogger     audit.Logger
	metrics         http.Handler
	ready           func(ctx context.Context) error
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	auditLogger := s.Audit
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Handler{
		identityService: s.Identity,
		authorizer:      s.Authorizer,
		bundles:         s.Bundles,
		admin:           s.Admin,
		groups:          s.Groups,
		issuer:          s.Issuer,
		auditLogger:     auditLogger,
		metrics:         s.Metrics,
		ready:           s.Ready,
	}
}

// RouterConfig tunes the middleware stack
type RouterConfig struct {
	RequestTimeout time.Duration
	// TrustProxy rewrites RemoteAddr from proxy headers before rate limiting.
	TrustProxy bool
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Ops
	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", h.ListGroups)
				r.Post("/", h.CreateGroup)

				r.Route("/{groupID}", func(r chi.Router) {
					r.Get("/", h.GetGroup)
					r.Put("/", h.UpdateGroup)
					r.Delete("/", h.DeleteGroup)

					r.Get("/members", h.ListMembers)
					r.Post("/members", h.AddMember)
					r.Put("/members/{memberID}", h.UpdateMember)
					r.Delete("/members/{memberID}", h.RemoveMember)
					r.Post("/members/{memberID}/notify", h.NotifyMember)

					r.Get("/exclusions", h.ListExclusions)
					r.Post("/exclusions", h.AddExclusion)
					r.Put("/exclusions/{exclusionID}", h.UpdateExclusion)
					r.Delete("/exclusions/{exclusionID}", h.RemoveExclusion)

					r.Get("/draw", h.GetDraw)
					r.Post("/draw", h.ExecuteDraw)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/users", h.AdminListUsers)
				r.Get("/permissions", h.AdminListCatalog)
				r.Get("/permissions/categories", h.AdminListCategories)
				r.Route("/users/{userID}/permissions", func(r chi.Router) {
					r.Get("/", h.AdminListGranted)
					r.Post("/", h.AdminGrant)
					r.Get("/available", h.AdminListAvailable)
					r.Get("/grouped", h.AdminListGrouped)
					r.Delete("/{permissionCode}", h.AdminRevoke)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "giftswap",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "giftswap",
	})
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Name     string `json:"name" example:"Ann"`
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"secret123"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User  *identity.User `json:"user"`
	Token *session.Token `json:"token"`
}

// Register handles user registration
// @Summary Register a new user
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration Data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Registration stands even when the signup bundle is incomplete.
	if err := h.bundles.GrantSignupBundle(r.Context(), user.ID); err != nil {
		slog.ErrorContext(r.Context(), "signup bundle incomplete", logger.UserID(user.ID), logger.Error(err))
	}

	token, err := h.issuer.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"secret123"`
}

// Login handles user login
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// MeResponse is the caller plus what the UI may show them
type MeResponse struct {
	User *identity.User `json:"user"`
	*authz.Effective
}

// GetCurrentUser returns the caller and their effective permissions
// @Summary Get Current User
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubject(r.Context())

	user, err := h.identityService.GetUser(r.Context(), subject.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		h.writeError(w, r, err)
		return
	}

	effective, err := h.authorizer.EffectivePermissions(r.Context(), user.Subject())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MeResponse{User: user, Effective: effective})
}

// Helper functions
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON treats an empty body as the zero value.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := decodeJSON(w, r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func subjectFrom(r *http.Request) authz.Subject {
	s, _ := GetSubject(r.Context())
	return s
}
