package handlers

import (
	"net/http"

	"github.com/Project-Sylos/Archivist/internal/utils"
	"github.com/Project-Sylos/Archivist/sdk"
)

// NodeHandler handles object and repository metadata endpoints
type NodeHandler struct {
	BaseHandler
	archivist *sdk.Archivist
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(archivist *sdk.Archivist) *NodeHandler {
	return &NodeHandler{
		archivist: archivist,
	}
}

// GetObject handles the get object endpoint. name is optional; without it
// the object at path itself is returned.
func (h *NodeHandler) GetObject(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	path, name := query.Get("path"), query.Get("name")
	if path == "" {
		h.sendError(w, http.StatusBadRequest, "path is required")
		return
	}

	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	obj, err := gw.ResolvePath(req.Context(), path, name)
	if err != nil {
		h.sendFailure(w, "Failed to resolve object", err)
		return
	}
	if obj == nil {
		h.sendError(w, http.StatusNotFound, "Object not found: "+utils.JoinPath(path, name))
		return
	}

	h.sendSuccess(w, "Object retrieved successfully", obj)
}

// GetRepositoryInfo handles the repository info endpoint
func (h *NodeHandler) GetRepositoryInfo(w http.ResponseWriter, req *http.Request) {
	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	h.sendSuccess(w, "Repository info retrieved successfully", gw.RepositoryInfo())
}

// GetTypes handles the type tree endpoint
func (h *NodeHandler) GetTypes(w http.ResponseWriter, req *http.Request) {
	gw, ok := h.openGateway(w, req, h.archivist)
	if !ok {
		return
	}
	trees, err := gw.TypeTree(req.Context())
	if err != nil {
		h.sendFailure(w, "Failed to get types", err)
		return
	}

	h.sendSuccess(w, "Types retrieved successfully", trees)
}
