// main wires configuration, stores, services, and the HTTP router, then runs
// the server until a shutdown signal arrives. Business logic lives in the
// internal service packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	adminhandler "ssoportal/internal/admin/handler"
	adminservice "ssoportal/internal/admin/service"
	adminstore "ssoportal/internal/admin/store"
	"ssoportal/internal/clients"
	"ssoportal/internal/flow"
	"ssoportal/internal/hydra"
	"ssoportal/internal/platform/config"
	"ssoportal/internal/platform/httpserver"
	"ssoportal/internal/platform/logger"
	"ssoportal/internal/platform/metrics"
	"ssoportal/internal/platform/middleware"
	"ssoportal/internal/platform/postgres"
	"ssoportal/internal/platform/redis"
	tenanthandler "ssoportal/internal/tenant/handler"
	"ssoportal/internal/tenant/resolver"
	tenantservice "ssoportal/internal/tenant/service"
	tenantstore "ssoportal/internal/tenant/store"
	httptransport "ssoportal/internal/transport/http"
	userhandler "ssoportal/internal/user/handler"
	userservice "ssoportal/internal/user/service"
	userstore "ssoportal/internal/user/store"
	"ssoportal/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ssoportal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if cache != nil {
		defer cache.Close()
		log.Info("redis cache enabled")
	}

	m := metrics.New()
	secret := []byte(cfg.JWTSecret)

	tenants := tenantstore.NewPostgres(db)
	admins := adminstore.NewPostgres(db)
	users := userstore.NewPostgres(db)
	runner := tx.NewSQLRunner(db)

	adminSvc := adminservice.New(admins, secret, cfg.AdminTokenTTL,
		adminservice.WithLogger(log),
		adminservice.WithMetrics(m),
	)
	tenantSvc := tenantservice.New(tenants, admins,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(m),
		tenantservice.WithTxRunner(runner),
	)
	userSvc := userservice.New(users, secret, cfg.UserTokenTTL, cfg.UserTokenRememberTTL,
		userservice.WithLogger(log),
		userservice.WithMetrics(m),
	)
	tenantResolver := resolver.New(tenants,
		resolver.WithCache(cache, config.TenantCacheTTL),
		resolver.WithInactivePolicy(cfg.ResolveInactiveTenants),
		resolver.WithLogger(log),
	)

	provider := hydra.New(cfg.HydraAdminURL,
		hydra.WithLogger(log),
		hydra.WithMetrics(m),
	)
	clientSvc := clients.New(provider, clients.WithLogger(log))

	flowOpts := []flow.Option{flow.WithLogger(log), flow.WithMetrics(m)}
	if !cfg.LogoutSkipConfirm {
		flowOpts = append(flowOpts, flow.WithLogoutConfirmation())
	}
	flows := flow.NewHandler(provider, userSvc, tenantResolver, flowOpts...)

	requireAdmin := middleware.RequireAdmin(adminSvc, log)
	router := httptransport.NewRouter(httptransport.Deps{
		Tenants: tenanthandler.New(tenantSvc, requireAdmin, log),
		Admins:  adminhandler.New(adminSvc, requireAdmin, log),
		Users:   userhandler.New(userSvc, requireAdmin, log),
		Clients: clients.NewHandler(clientSvc, requireAdmin, log),
		Flows:   flows,
		Health:  db.Ping,
		Logger:  log,
		Metrics: m,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
