// Copyright 2026 The Classdeck Authors
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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classdeck/classdeck/internal/audit"
	"github.com/classdeck/classdeck/internal/config"
	"github.com/classdeck/classdeck/internal/observability/logger"
	"github.com/classdeck/classdeck/internal/observability/metrics"
	"github.com/classdeck/classdeck/internal/observability/tracing"
	"github.com/classdeck/classdeck/internal/session"
	"github.com/classdeck/classdeck/internal/store/postgres"
	"github.com/classdeck/classdeck/internal/tenancy"
	"github.com/classdeck/classdeck/internal/tenantcache"
	transportHTTP "github.com/classdeck/classdeck/internal/transport/http"
	"github.com/classdeck/classdeck/internal/upstream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting classdeck gateway")

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize audit sink
	var auditLogger audit.Logger = audit.NewSlogLogger()
	if cfg.Audit.Backend == config.AuditBackendPostgres {
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Audit.Database.Host,
			Port:         cfg.Audit.Database.Port,
			User:         cfg.Audit.Database.User,
			Password:     cfg.Audit.Database.Password,
			Database:     cfg.Audit.Database.Database,
			SSLMode:      cfg.Audit.Database.SSLMode,
			MaxOpenConns: cfg.Audit.Database.MaxOpenConns,
			MaxIdleConns: cfg.Audit.Database.MaxIdleConns,
		})
		if err != nil {
			slog.Error("failed to connect to audit database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to audit database")
		auditLogger = postgres.NewAuditRepository(db)
	}

	// Initialize session binding
	binder, err := session.NewBinder(cfg.Session.Secret, cfg.Session.MaxAge, cfg.Session.UpdateAge)
	if err != nil {
		slog.Error("failed to initialize session binder", logger.Error(err))
		os.Exit(1)
	}
	cookies := session.NewCookiePolicy(
		cfg.Session.CookieName,
		cfg.CookieDomain(),
		cfg.IsProduction(),
		cfg.Session.MaxAge,
	)

	// Initialize hostname resolution
	resolver := tenancy.NewResolver(cfg.Tenancy.RootDomain, cfg.Tenancy.PreviewSuffix)

	// Initialize upstream client and tenant cache
	client := upstream.New(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	})
	tenants := tenantcache.New(client, cfg.Cache.FreshTTL, cfg.Cache.StaleTTL)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Close()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		cfg,
		binder,
		cookies,
		client,
		tenants,
		resolver,
		auditLogger,
		rateLimiter,
	)

	// Create router
	router := handler.NewRouter()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cache sweep goroutine
	go func() {
		ticker := time.NewTicker(cfg.Cache.StaleTTL)
		defer ticker.Stop()
		for range ticker.C {
			tenants.Sweep()
		}
	}()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
