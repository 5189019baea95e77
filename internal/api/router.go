// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portcullisproject/portcullis/internal/middleware"
	"github.com/portcullisproject/portcullis/internal/routecache"
)

// GateMiddleware is the authorization gate applied in front of the routed
// handlers. Both the blocking and the worker-pool gates satisfy it.
type GateMiddleware interface {
	Middleware(next http.Handler) http.Handler
}

// Router wires handlers, middleware and the authorization gate into a Chi
// router.
type Router struct {
	handler       *Handler
	validate      *ValidateHandler
	chiMiddleware *ChiMiddleware
	gate          GateMiddleware
}

// NewRouter creates the API router. validate may be nil when the
// service-to-service endpoint is not mounted on this instance.
func NewRouter(handler *Handler, validate *ValidateHandler, chiMW *ChiMiddleware, gateMW GateMiddleware) *Router {
	return &Router{
		handler:       handler,
		validate:      validate,
		chiMiddleware: chiMW,
		gate:          gateMW,
	}
}

// RouteTable declares the access policy for every protected endpoint. The
// gate consults this table; endpoints absent from it pass through
// untouched, which keeps static assets and future additions from being
// silently locked out.
func RouteTable() []routecache.Route {
	return []routecache.Route{
		{Method: http.MethodPost, Pattern: "/auth/login", Policy: routecache.Anonymous()},
		{Method: http.MethodPost, Pattern: "/auth/refresh", Policy: routecache.Anonymous()},
		{Method: http.MethodPost, Pattern: "/auth/guest", Policy: routecache.Anonymous()},
		{Method: http.MethodGet, Pattern: "/auth/me", Policy: routecache.Expression("@ss.hasAnyRoles('admin,common,guest')")},
		{Method: http.MethodGet, Pattern: "/auth/routers", Policy: routecache.AuthOnly()},
		// Logout is anonymous so a caller with an already-expired session
		// still gets the success envelope; the handler revokes whatever
		// credentials the request happens to carry.
		{Method: http.MethodPost, Pattern: "/auth/logout", Policy: routecache.Anonymous()},
		{Method: http.MethodPost, Pattern: "/remote/auth/validate", Policy: routecache.Anonymous()},
		{Method: http.MethodGet, Pattern: "/health", Policy: routecache.Anonymous()},
		{Method: http.MethodGet, Pattern: "/health/*", Policy: routecache.Anonymous()},
		{Method: http.MethodGet, Pattern: "/metrics", Policy: routecache.Anonymous()},
	}
}

// chiMW adapts http.HandlerFunc middleware to Chi's shape.
func chiMW(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chiMW(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(router.gate.Middleware)

	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAuth())

		r.With(router.chiMiddleware.RateLimitLogin()).
			Post("/login", wrap("/auth/login", router.handler.Login))
		r.Post("/refresh", wrap("/auth/refresh", router.handler.Refresh))
		r.Post("/guest", wrap("/auth/guest", router.handler.GuestLogin))
		r.Post("/logout", wrap("/auth/logout", router.handler.Logout))
		r.Get("/me", wrap("/auth/me", router.handler.Me))
		r.Get("/routers", wrap("/auth/routers", router.handler.Routers))
	})

	if router.validate != nil {
		r.Route("/remote/auth", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Post("/validate", wrap("/remote/auth/validate", router.validate.Validate))
		})
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// wrap attaches request metrics under a stable endpoint label.
func wrap(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return middleware.PrometheusMetrics(endpoint, h)
}
