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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/giftswap/giftswap/internal/audit"
	"github.com/giftswap/giftswap/internal/authz"
	"github.com/giftswap/giftswap/internal/config"
	"github.com/giftswap/giftswap/internal/group"
	"github.com/giftswap/giftswap/internal/identity"
	"github.com/giftswap/giftswap/internal/observability/logger"
	"github.com/giftswap/giftswap/internal/observability/metrics"
	"github.com/giftswap/giftswap/internal/observability/tracing"
	"github.com/giftswap/giftswap/internal/session"
	transportHTTP "github.com/giftswap/giftswap/internal/transport/http"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting giftswap", logger.String("version", Version))

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.TraceSamplingRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		tracer = &tracing.Tracer{}
	}
	defer tracer.Shutdown(context.Background())

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	permMetrics, err := metrics.NewPermissionMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to initialize permission metrics: %w", err)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// Run Bootstrap (ENV driven)
	if err := bootstrapAdmin(ctx, b, cfg); err != nil {
		return err
	}

	auditLogger := audit.NewSlogLogger()
	identityService := identity.NewService(b.users, newPasswordHasher(cfg), auditLogger)

	catalog := authz.DefaultCatalog()
	directory := group.NewDirectory(b.groups)
	store := authz.NewStore(b.grants, catalog, identityService, directory, auditLogger)
	store.SetRecorder(permMetrics)
	authorizer := authz.NewAuthorizer(store, catalog, auditLogger)
	authorizer.SetRecorder(permMetrics)
	bundles := authz.NewBundleGranter(store, auditLogger)

	groupService := group.NewService(b.groups, authorizer, store, bundles, group.LogNotifier{}, auditLogger)

	issuer, err := session.NewIssuer(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.Lifetime)
	if err != nil {
		return err
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Close()

	handler := transportHTTP.NewHandler(transportHTTP.Services{
		Identity:   identityService,
		Authorizer: authorizer,
		Bundles:    bundles,
		Admin:      authz.NewAdminService(store, authorizer, directory),
		Groups:     groupService,
		Issuer:     issuer,
		Audit:      auditLogger,
		Metrics:    meter.Handler(),
		Ready:      b.ping,
	})
	router := transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustProxy:     cfg.Server.TrustProxy,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// bootstrapAdmin creates the first admin from the environment. It does
// nothing once an admin exists.
func bootstrapAdmin(ctx context.Context, b *backend, cfg *config.Config) error {
	identityService := identity.NewService(b.users, newPasswordHasher(cfg), audit.NewSlogLogger())
	user, err := identity.NewBootstrapService(identityService).Bootstrap(ctx, identity.BootstrapConfigFromEnv())
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if user == nil {
		slog.InfoContext(ctx, "bootstrap skipped")
	}
	return nil
}
