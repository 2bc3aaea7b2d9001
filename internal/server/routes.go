package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	// Duplex chat; auth happens in-band via the first frame.
	r.Get("/ws/chat", s.ws.ServeHTTP)

	// Everything else authenticates via bearer token.
	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)

		r.Post("/chat", s.chat)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Delete("/", s.deleteSession)
				r.Get("/messages", s.listMessages)
			})
		})
	})
}
