package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/Project-Sylos/Archivist/internal/api/models"
	"github.com/Project-Sylos/Archivist/sdk"
)

// DocumentHandler handles document-related endpoints
type DocumentHandler struct {
	BaseHandler
	archivist *sdk.Archivist
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(archivist *sdk.Archivist) *DocumentHandler {
	return &DocumentHandler{
		archivist: archivist,
	}
}

// GetContent streams the document's content as the response body
func (h *DocumentHandler) GetContent(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	path, name := query.Get("path"), query.Get("name")
	if path == "" || name == "" {
		h.sendError(w, http.StatusBadRequest, "path and name are required")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	content, err := gw.ReadDocumentContent(req.Context(), path, name)
	if err != nil {
		h.sendFailure(w, "Failed to read document", err)
		return
	}
	defer content.Stream.Close()

	mimeType := content.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.FileName}))
	if content.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Length, 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, content.Stream)
}

// UpdateContent replaces a document's content with the given text
func (h *DocumentHandler) UpdateContent(w http.ResponseWriter, req *http.Request) {
	var request models.UpdateContentRequest
	if !h.decodeJSON(w, req, &request) {
		return
	}

	if request.Path == "" || request.Name == "" {
		h.sendError(w, http.StatusBadRequest, "path and name are required")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	doc, err := gw.UpdateDocumentContent(req.Context(), request.Path, request.Name, request.Content)
	if err != nil {
		h.sendFailure(w, "Failed to update document", err)
		return
	}

	h.sendSuccess(w, "Document updated successfully", doc)
}

// DeleteDocument handles the delete document endpoint
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	path, name := query.Get("path"), query.Get("name")
	if path == "" || name == "" {
		h.sendError(w, http.StatusBadRequest, "path and name are required")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	if err := gw.DeleteDocument(req.Context(), path, name); err != nil {
		h.sendFailure(w, "Failed to delete document", err)
		return
	}

	h.sendSuccess(w, "Document deleted successfully", nil)
}

// CopyDocument copies a document into another folder. A missing source,
// missing destination or name clash is reported with copied=false.
func (h *DocumentHandler) CopyDocument(w http.ResponseWriter, req *http.Request) {
	var request models.CopyDocumentRequest
	if !h.decodeJSON(w, req, &request) {
		return
	}

	if request.SourcePath == "" || request.Name == "" || request.DestinationPath == "" {
		h.sendError(w, http.StatusBadRequest, "source_path, name and destination_path are required")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	copied, err := gw.CopyDocument(req.Context(), request.SourcePath, request.Name, request.DestinationPath)
	if err != nil {
		h.sendFailure(w, "Failed to copy document", err)
		return
	}

	message := "Document copied successfully"
	if !copied {
		message = "Document was not copied"
	}
	h.sendSuccess(w, message, map[string]any{"copied": copied})
}
