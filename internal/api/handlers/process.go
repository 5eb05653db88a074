package handlers

import (
	"net/http"
	"strings"

	"github.com/Project-Sylos/Archivist/internal/upload"
	"github.com/Project-Sylos/Archivist/sdk"
)

// Fixed destination of the test endpoint
const (
	TestTicketNumber = "454444"
	TestFolderPath   = "/CI/Test"
)

// Multipart field names
const (
	fieldTicketNumber = "ticketNumber"
	fieldFolderPath   = "folderPath"
	fieldFiles        = "files"
)

// ProcessHandler files multipart uploads into ticket folders
type ProcessHandler struct {
	BaseHandler
	archivist *sdk.Archivist
	maxMemory int64
}

// NewProcessHandler creates a new process handler. maxMemory bounds how
// much of a form is held in memory before spilling to temp files.
func NewProcessHandler(archivist *sdk.Archivist, maxMemory int64) *ProcessHandler {
	return &ProcessHandler{
		archivist: archivist,
		maxMemory: maxMemory,
	}
}

// ProcessData handles the upload endpoint. It answers 200 with an empty
// body once every file is stored.
func (h *ProcessHandler) ProcessData(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(h.maxMemory); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer req.MultipartForm.RemoveAll()

	ticket := strings.TrimSpace(req.FormValue(fieldTicketNumber))
	folderPath := strings.TrimSpace(req.FormValue(fieldFolderPath))
	files := req.MultipartForm.File[fieldFiles]
	if ticket == "" || folderPath == "" || len(files) == 0 {
		h.sendError(w, http.StatusBadRequest, "ticketNumber, folderPath and files are required")
		return
	}

	h.process(w, req, ticket, folderPath)
}

// Test handles the test endpoint: the same upload into a fixed ticket
// folder, whatever the form says
func (h *ProcessHandler) Test(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(h.maxMemory); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer req.MultipartForm.RemoveAll()

	if len(req.MultipartForm.File[fieldFiles]) == 0 {
		h.sendError(w, http.StatusBadRequest, "files are required")
		return
	}

	h.process(w, req, TestTicketNumber, TestFolderPath)
}

func (h *ProcessHandler) process(w http.ResponseWriter, req *http.Request, ticket, folderPath string) {
	headers := req.MultipartForm.File[fieldFiles]
	files := make([]upload.File, len(headers))
	for i, fh := range headers {
		files[i] = upload.FromFileHeader(fh)
	}

	if _, err := h.archivist.UploadAll(req.Context(), ticket, folderPath, files); err != nil {
		h.sendFailure(w, "Failed to upload files", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
