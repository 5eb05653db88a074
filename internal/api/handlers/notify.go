package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Project-Sylos/Archivist/internal/api/models"
	"github.com/Project-Sylos/Archivist/sdk"
)

// NotifyHandler sends the configured notification email
type NotifyHandler struct {
	BaseHandler
	archivist *sdk.Archivist
}

// NewNotifyHandler creates a new notify handler
func NewNotifyHandler(archivist *sdk.Archivist) *NotifyHandler {
	return &NotifyHandler{
		archivist: archivist,
	}
}

// Send handles the notify endpoint. The body is optional.
func (h *NotifyHandler) Send(w http.ResponseWriter, req *http.Request) {
	var request models.NotifyRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email, err := h.archivist.Notify(req.Context(), request.Subject, request.Body)
	if err != nil {
		h.sendFailure(w, "Failed to send notification", err)
		return
	}

	h.sendSuccess(w, "Notification sent successfully", email)
}
