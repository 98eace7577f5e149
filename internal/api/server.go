// SPDX-License-Identifier: MIT

// Package api provides the HTTP operator surface of the tuning engine.
// All mutating endpoints funnel into the engine's entry points; the API
// layer itself holds no tuning state.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfleet/atrwac/internal/engine"
	"github.com/quantfleet/atrwac/internal/health"
)

// Server wires the engine and health manager into an HTTP router.
type Server struct {
	engine  *engine.Engine
	health  *health.Manager
	version string

	rateLimit       int
	rateLimitWindow time.Duration
}

// ServerOption allows functional configuration of the Server.
type ServerOption func(*Server)

// WithRateLimit overrides the per-IP request budget for the /api subtree.
func WithRateLimit(requests int, window time.Duration) ServerOption {
	return func(s *Server) {
		s.rateLimit = requests
		s.rateLimitWindow = window
	}
}

// New creates an API server around an engine.
func New(eng *engine.Engine, hm *health.Manager, version string, opts ...ServerOption) *Server {
	s := &Server{
		engine:          eng,
		health:          hm,
		version:         version,
		rateLimit:       600,
		rateLimitWindow: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with the canonical middleware stack.
// Probes and metrics sit outside the rate limit so orchestrators are
// never throttled away from them.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter(s.rateLimit, s.rateLimitWindow))

		r.Get("/status", s.handleStatus)
		r.Get("/rankings", s.handleRankings)
		r.Get("/agents/{id}", s.handleAgent)
		r.Get("/champions", s.handleChampions)
		r.Get("/history", s.handleHistory)
		r.Get("/resources", s.handleResources)
		r.Get("/config", s.handleGetConfig)

		r.Post("/config", s.handleUpdateConfig)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/prune/{id}", s.handleManualPrune)
	})

	return r
}
