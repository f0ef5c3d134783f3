package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aisetech/chat-relay/backend/pkg/utils"
)

// ConnectionCounter reports live transport connections.
type ConnectionCounter interface {
	Connected() int
}

// SessionCounter reports live dialogue sessions.
type SessionCounter interface {
	Len() int
}

// Handler serves the read-only liveness endpoint.
type Handler struct {
	connections       ConnectionCounter
	sessions          SessionCounter
	environment       string
	backendConfigured bool
}

// New creates the health handler.
func New(connections ConnectionCounter, sessions SessionCounter, environment string, backendConfigured bool) *Handler {
	return &Handler{
		connections:       connections,
		sessions:          sessions,
		environment:       environment,
		backendConfigured: backendConfigured,
	}
}

// RegisterRoutes mounts the health endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

type healthResponse struct {
	Status              string `json:"status"`
	ClientsConnected    int    `json:"clientsConnected"`
	ActiveConversations int    `json:"activeConversations"`
	Environment         string `json:"environment"`
	BackendStatus       string `json:"backendStatus"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	backendStatus := "missing"
	if h.backendConfigured {
		backendStatus = "configured"
	}

	utils.RespondJSON(w, http.StatusOK, healthResponse{
		Status:              "ok",
		ClientsConnected:    h.connections.Connected(),
		ActiveConversations: h.sessions.Len(),
		Environment:         h.environment,
		BackendStatus:       backendStatus,
	})
}
