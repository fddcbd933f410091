package server

import (
	"net/http"

	"github.com/agentstation/ordersync/internal/server/handlers"
	"github.com/agentstation/ordersync/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(
		s.client,
		s.cycles,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.logger,
	)

	s.registerRoutes(mux, h)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	// Avoid 404 noise from browsers
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Probes
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/health", h.HandleHealth)
	mux.HandleFunc("GET "+prefix+"/ready", h.HandleReady)

	// Records and the claim workflow
	mux.HandleFunc("GET "+prefix+"/records", h.HandleListRecords)
	mux.HandleFunc("GET "+prefix+"/records/{id}", h.HandleGetRecord)
	mux.HandleFunc("POST "+prefix+"/records/{id}/claim", h.HandleClaim)
	mux.HandleFunc("POST "+prefix+"/records/{id}/release", h.HandleRelease)
	mux.HandleFunc("POST "+prefix+"/records/{id}/handover", h.HandleHandover)
	mux.HandleFunc("GET "+prefix+"/archive", h.HandleArchive)

	// Cycles
	mux.HandleFunc("GET "+prefix+"/cycles/last", h.HandleLastCycle)
	mux.HandleFunc("POST "+prefix+"/sync", h.HandleSync)

	// Real-time endpoints
	mux.HandleFunc("GET "+prefix+"/updates/ws", h.HandleWebSocket)
	mux.HandleFunc("GET "+prefix+"/updates/stream", h.HandleSSE)

	if s.config.MetricsEnabled && s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	var chain []func(http.Handler) http.Handler
	chain = append(chain, middleware.Recovery(s.logger), middleware.Logger(s.logger))

	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		if cfg.AuthHeader != "" {
			authConfig.HeaderName = cfg.AuthHeader
		}
		authConfig.PublicPaths = []string{"/health", "/metrics", cfg.PathPrefix + "/health", cfg.PathPrefix + "/ready"}
		chain = append(chain, middleware.Auth(authConfig, s.logger))
	}

	return middleware.Chain(chain...)(handler)
}
