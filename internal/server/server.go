// Package server provides the HTTP surface of the Concierge gateway: the
// WebSocket chat endpoint, the synchronous chat endpoint, and the session
// REST API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/concierge-ai/concierge/internal/agent"
	"github.com/concierge-ai/concierge/internal/auth"
	"github.com/concierge-ai/concierge/internal/gateway"
	"github.com/concierge-ai/concierge/internal/store"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration. WriteTimeout stays
// zero: streaming connections must not be cut mid-turn.
func DefaultConfig() *Config {
	return &Config{
		Addr:        ":8081",
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server.
type Server struct {
	config   *Config
	router   *chi.Mux
	httpSrv  *http.Server
	verifier *auth.Verifier
	runtime  agent.Runtime
	sessions *store.SessionStore
	messages *store.MessageStore
	ws       *gateway.Handler
}

// New creates a Server.
func New(
	cfg *Config,
	verifier *auth.Verifier,
	runtime agent.Runtime,
	sessions *store.SessionStore,
	messages *store.MessageStore,
	ws *gateway.Handler,
) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		verifier: verifier,
		runtime:  runtime,
		sessions: sessions,
		messages: messages,
		ws:       ws,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
