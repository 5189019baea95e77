// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Command server runs the Portcullis authorization service: the HTTP
// endpoints for login, token rotation and guest provisioning, the
// authorization gate in front of them, and the supervised background
// services (audit subscriber, expiry sweepers).
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

	"github.com/portcullisproject/portcullis/internal/api"
	"github.com/portcullisproject/portcullis/internal/audit"
	"github.com/portcullisproject/portcullis/internal/config"
	"github.com/portcullisproject/portcullis/internal/gate"
	"github.com/portcullisproject/portcullis/internal/guest"
	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/routecache"
	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/store"
	"github.com/portcullisproject/portcullis/internal/supervisor"
	"github.com/portcullisproject/portcullis/internal/supervisor/services"
	"github.com/portcullisproject/portcullis/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("session_store", cfg.Security.SessionStore).
		Bool("guest_login", cfg.Security.GuestLoginEnabled).
		Bool("remote_check", cfg.Remote.URL != "").
		Msg("Configuration loaded")

	db, err := store.Open(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	sessions, err := openSessionStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	access := token.NewAccessManager(sessions, cfg.Security.AccessTokenTTL)
	refresh, err := token.NewRefreshManager(cfg.Security.JWTSecret, cfg.Security.RefreshTokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create refresh token manager")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit trail: handlers publish, the supervised subscriber persists.
	auditBus := audit.NewBus(cfg.Audit.Enabled, cfg.Audit.BufferSize)
	defer func() {
		if err := auditBus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit bus")
		}
	}()

	guests := guest.New(db, cfg.Security.GuestRoleKey)
	handler := api.NewHandler(cfg, db, access, refresh, guests, auditBus)

	// The gate consults the declared route policies on every request.
	// With a remote URL configured, permission checks are delegated;
	// otherwise they run against the local session store.
	resolver := routecache.NewResolver(api.RouteTable())
	resolver.Preload()

	localChecker := gate.NewLocalChecker(access)
	var checker gate.PermissionChecker = localChecker
	if cfg.Remote.URL != "" {
		checker = gate.NewRemoteChecker(&cfg.Remote, cfg.Security.InternalSecret)
		logging.Info().Str("url", cfg.Remote.URL).Msg("Using remote permission checks")
	}

	baseGate := gate.New(resolver, checker, cfg.Security.InternalSecret)
	var gateMW api.GateMiddleware = baseGate
	if cfg.Security.GateWorkers > 0 {
		asyncGate := gate.NewAsync(baseGate, cfg.Security.GateWorkers)
		defer asyncGate.Close()
		gateMW = asyncGate
		logging.Info().Int("workers", cfg.Security.GateWorkers).Msg("Gate decisions run on worker pool")
	}

	// The validation endpoint always checks against the local store, so it
	// is only mounted when this instance holds the sessions itself.
	var validate *api.ValidateHandler
	if cfg.Remote.URL == "" {
		validate = api.NewValidateHandler(handler, localChecker, cfg.Security.InternalSecret)
	}

	chiMW := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins:   cfg.Security.CORSOrigins,
		CORSAllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "Authorization"},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400,
		RateLimitRequests:    cfg.Security.RateLimitReqs,
		RateLimitWindow:      cfg.Security.RateLimitWindow,
		RateLimitDisabled:    cfg.Security.RateLimitDisabled,
	})

	router := api.NewRouter(handler, validate, chiMW, gateMW)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewSessionSweeperService(sessions, 5*time.Minute))
	tree.AddDataService(services.NewRefreshSweeperService(db, time.Hour))
	if badgerStore, ok := sessions.(*session.BadgerStore); ok {
		tree.AddDataService(services.NewBadgerGCService(badgerStore, 10*time.Minute))
	}
	tree.AddMessagingService(audit.NewSubscriber(auditBus, db))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// openSessionStore selects the session backend from configuration.
func openSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Security.SessionStore {
	case "badger":
		return session.OpenBadgerStore(cfg.Security.SessionStorePath)
	default:
		return session.NewMemoryStore(), nil
	}
}
