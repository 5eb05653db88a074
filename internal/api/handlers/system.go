package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Project-Sylos/Archivist/sdk"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	BaseHandler
	archivist *sdk.Archivist
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(archivist *sdk.Archivist) *SystemHandler {
	return &SystemHandler{
		archivist: archivist,
	}
}

// Reset handles the reset endpoint. Only the local repository can be reset.
func (h *SystemHandler) Reset(w http.ResponseWriter, req *http.Request) {
	if err := h.archivist.Reset(); err != nil {
		h.sendFailure(w, "Failed to reset repository", err)
		return
	}

	h.sendSuccess(w, "Repository reset successfully", nil)
}

// GetConfig handles the get config endpoint. Secrets are redacted.
func (h *SystemHandler) GetConfig(w http.ResponseWriter, req *http.Request) {
	config := *h.archivist.Config()
	if config.Repository.Password != "" {
		config.Repository.Password = "********"
	}
	h.sendSuccess(w, "Config retrieved successfully", config)
}

// GetStats handles the get stats endpoint
func (h *SystemHandler) GetStats(w http.ResponseWriter, req *http.Request) {
	stats := map[string]any{
		"connections":      h.archivist.Connections(),
		"connection_names": h.archivist.ConnectionNames(),
	}

	count, err := h.archivist.NodeCount()
	switch {
	case err == nil:
		stats["node_count"] = count
	case !errors.Is(err, sdk.ErrNotLocal):
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get stats: %v", err))
		return
	}

	h.sendSuccess(w, "Stats retrieved successfully", stats)
}
