package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aisetech/chat-relay/backend/internal/handler/health"
	"github.com/aisetech/chat-relay/backend/internal/handler/relay"
	middlewarePkg "github.com/aisetech/chat-relay/backend/internal/middleware"
)

// NewRouter wires HTTP routes to the relay and health handlers.
func NewRouter(relayHandler *relay.Handler, healthHandler *health.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// The widget dials ws(s)://host/ws directly.
	relayHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		healthHandler.RegisterRoutes(api)
	})

	return r
}
