package handlers

import (
	"io"
	"net/http"

	"github.com/Project-Sylos/Archivist/sdk"
)

// WelcomeMessage is served on the root path
const WelcomeMessage = "Welcome to the Alfresco Microservice"

// HealthHandler handles welcome and health check endpoints
type HealthHandler struct {
	BaseHandler
	archivist *sdk.Archivist
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(archivist *sdk.Archivist) *HealthHandler {
	return &HealthHandler{
		archivist: archivist,
	}
}

// Welcome handles the root endpoint
func (h *HealthHandler) Welcome(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, WelcomeMessage)
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, req *http.Request) {
	h.sendSuccess(w, "Archivist API is healthy", map[string]any{
		"connections": h.archivist.Connections(),
	})
}
