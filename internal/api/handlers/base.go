package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/gateway"
	"github.com/Project-Sylos/Archivist/internal/notify"
	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/internal/upload"
	"github.com/Project-Sylos/Archivist/sdk"
)

// BaseHandler provides common functionality for all API handlers
type BaseHandler struct{}

// sendJSON sends a JSON response with the given status code and data
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response with the given status code and message
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, types.APIResponse{
		Success: false,
		Message: message,
	})
}

// sendSuccess sends a success response with the given data
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, message string, data any) {
	h.sendJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// sendFailure sends err with the status it maps to. Upload failures carry
// the ticket, file and stage in the data field.
func (h *BaseHandler) sendFailure(w http.ResponseWriter, message string, err error) {
	resp := types.APIResponse{
		Success: false,
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var uerr *upload.UploadError
	if errors.As(err, &uerr) {
		resp.Data = map[string]string{
			"ticket": uerr.Ticket,
			"file":   uerr.File,
			"stage":  string(uerr.Stage),
		}
	}
	h.sendJSON(w, statusFor(err), resp)
}

// openGateway opens a gateway for the request, writing the failure if it
// cannot
func (h *BaseHandler) openGateway(w http.ResponseWriter, req *http.Request, archivist *sdk.Archivist) (*gateway.Gateway, bool) {
	gw, err := archivist.Gateway(req.Context())
	if err != nil {
		h.sendFailure(w, "Failed to connect to repository", err)
		return nil, false
	}
	return gw, true
}

// decodeJSON decodes the request body into dst, writing a 400 on failure
func (h *BaseHandler) decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var (
		argErr    *notify.ArgumentError
		statusErr *notify.StatusError
	)
	switch {
	case errors.Is(err, upload.ErrInvalidRequest),
		errors.Is(err, cmis.ErrInvalidArgument),
		errors.As(err, &argErr):
		return http.StatusBadRequest
	case errors.Is(err, cmis.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, cmis.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, cmis.ErrContentAlreadyExists), errors.Is(err, sdk.ErrNotLocal):
		return http.StatusConflict
	case errors.Is(err, cmis.ErrConnection), errors.As(err, &statusErr):
		return http.StatusBadGateway
	case errors.Is(err, notify.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
