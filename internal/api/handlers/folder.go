package handlers

import (
	"net/http"
	"strconv"

	"github.com/Project-Sylos/Archivist/internal/api/models"
	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/internal/utils"
	"github.com/Project-Sylos/Archivist/sdk"
)

// defaultPageSize is used when a listing request gives no max
const defaultPageSize = 100

// FolderHandler handles folder-related endpoints
type FolderHandler struct {
	BaseHandler
	archivist *sdk.Archivist
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(archivist *sdk.Archivist) *FolderHandler {
	return &FolderHandler{
		archivist: archivist,
	}
}

// ListChildren handles the list children endpoint
func (h *FolderHandler) ListChildren(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	path := query.Get("path")
	if path == "" {
		h.sendError(w, http.StatusBadRequest, "path is required")
		return
	}

	skip, err := intParam(query.Get("skip"), 0)
	if err != nil || skip < 0 {
		h.sendError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	maxItems, err := intParam(query.Get("max"), defaultPageSize)
	if err != nil || maxItems < 1 {
		h.sendError(w, http.StatusBadRequest, "max must be a positive integer")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	page, err := gw.ListChildren(req.Context(), path, skip, maxItems)
	if err != nil {
		h.sendFailure(w, "Failed to list children", err)
		return
	}

	h.sendSuccess(w, "Children retrieved successfully", page)
}

// CreateFolder handles the create folder endpoint
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, req *http.Request) {
	var request models.CreateFolderRequest
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
	created, err := gw.CreateFolder(req.Context(), request.Path, request.Name)
	if err != nil {
		h.sendFailure(w, "Failed to create folder", err)
		return
	}

	data := map[string]any{
		"path":    utils.JoinPath(request.Path, request.Name),
		"created": created,
	}
	if !created {
		h.sendSuccess(w, "Folder already exists", data)
		return
	}
	h.sendJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Message: "Folder created successfully",
		Data:    data,
	})
}

// RenameFolder handles the rename folder endpoint
func (h *FolderHandler) RenameFolder(w http.ResponseWriter, req *http.Request) {
	var request models.RenameFolderRequest
	if !h.decodeJSON(w, req, &request) {
		return
	}

	if request.Path == "" || request.NewName == "" {
		h.sendError(w, http.StatusBadRequest, "path and new_name are required")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	folder, err := gw.RenameFolder(req.Context(), request.Path, request.NewName)
	if err != nil {
		h.sendFailure(w, "Failed to rename folder", err)
		return
	}

	h.sendSuccess(w, "Folder renamed successfully", folder)
}

// DeleteFolder handles the delete folder endpoint. Nodes the repository
// could not remove are listed in the response.
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Query().Get("path")
	if path == "" {
		h.sendError(w, http.StatusBadRequest, "path is required")
		return
	}
	if utils.JoinPath(path) == "/" {
		h.sendError(w, http.StatusBadRequest, "Cannot delete root folder")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	failed, err := gw.DeleteFolderTree(req.Context(), path)
	if err != nil {
		h.sendFailure(w, "Failed to delete folder", err)
		return
	}

	if failed == nil {
		failed = []string{}
	}
	h.sendSuccess(w, "Folder deleted successfully", map[string]any{"failed": failed})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
