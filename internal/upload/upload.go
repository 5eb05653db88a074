// Package upload files a ticket's attachments into the repository: it
// makes sure the ticket folder exists, then uploads each file beneath it.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/gateway"
	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/internal/utils"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for a missing ticket number, folder or file name
var ErrInvalidRequest = errors.New("invalid upload request")

// Stage names the step an upload failed in
type Stage string

const (
	StageValidate Stage = "validate"
	StageSession  Stage = "session"
	StageFolder   Stage = "folder"
	StageRead     Stage = "read"
	StageUpload   Stage = "upload"
)

// UploadError reports which file of which ticket failed, and where
type UploadError struct {
	Ticket string
	File   string
	Stage  Stage
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q for ticket %s failed at %s: %v", e.File, e.Ticket, e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// File is one uploaded attachment
type File interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Sessions hands out repository sessions by connection name
type Sessions interface {
	GetSession(ctx context.Context, name, username, password string) (cmis.Session, error)
}

// Result describes what an upload did
type Result struct {
	FolderPath      string       `json:"folder_path"`
	FolderCreated   bool         `json:"folder_created"`
	DocumentCreated bool         `json:"document_created"`
	Document        *cmis.Object `json:"document,omitempty"`
}

// Orchestrator runs uploads against the configured connection
type Orchestrator struct {
	sessions Sessions
	cfg      types.RepositoryConfig
	logger   *zap.Logger
}

// New creates an orchestrator. cfg supplies the connection name,
// credentials and the description set on every uploaded file.
func New(sessions Sessions, cfg types.RepositoryConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{sessions: sessions, cfg: cfg, logger: logger.Named("upload")}
}

// Upload ensures folderPath/ticket exists and uploads file into it. Every
// failure comes back as an *UploadError.
func (o *Orchestrator) Upload(ctx context.Context, ticket, folderPath string, file File) (*Result, error) {
	fail := func(stage Stage, err error) (*Result, error) {
		uerr := &UploadError{Ticket: ticket, File: file.Name(), Stage: stage, Err: err}
		o.logger.Error("upload failed",
			zap.String("ticket", ticket),
			zap.String("file", file.Name()),
			zap.String("stage", string(stage)),
			zap.Error(err))
		return nil, uerr
	}

	ticket = strings.TrimSpace(ticket)
	switch {
	case !utils.ValidName(ticket):
		return fail(StageValidate, fmt.Errorf("%w: bad ticket number %q", ErrInvalidRequest, ticket))
	case strings.TrimSpace(folderPath) == "":
		return fail(StageValidate, fmt.Errorf("%w: folder path is required", ErrInvalidRequest))
	case utils.HasDotSegment(folderPath):
		return fail(StageValidate, fmt.Errorf("%w: bad folder path %q", ErrInvalidRequest, folderPath))
	case file.Name() == "":
		return fail(StageValidate, fmt.Errorf("%w: file name is required", ErrInvalidRequest))
	case !utils.ValidName(file.Name()):
		return fail(StageValidate, fmt.Errorf("%w: bad file name %q", ErrInvalidRequest, file.Name()))
	}

	session, err := o.sessions.GetSession(ctx, o.cfg.ConnectionName, o.cfg.Username, o.cfg.Password)
	if err != nil {
		return fail(StageSession, err)
	}
	gw := gateway.New(session, o.logger)

	o.logger.Info("uploading file", zap.String("ticket", ticket), zap.String("file", file.Name()))

	result := &Result{FolderPath: utils.JoinPath(folderPath, ticket)}
	exists, err := gw.FolderExists(ctx, folderPath, ticket)
	if err != nil {
		return fail(StageFolder, err)
	}
	if !exists {
		if result.FolderCreated, err = gw.CreateFolder(ctx, folderPath, ticket); err != nil {
			return fail(StageFolder, err)
		}
	}

	req, err := o.readRequest(ticket, folderPath, file)
	if err != nil {
		return fail(StageRead, err)
	}

	doc, created, err := gw.UploadDocument(ctx, result.FolderPath, gateway.Document{
		Name:        req.FileName,
		MimeType:    req.MimeType,
		Content:     bytes.NewReader(req.Content),
		Size:        req.Size,
		Description: req.Description,
	})
	if err != nil {
		return fail(StageUpload, err)
	}
	result.Document = doc
	result.DocumentCreated = created

	o.logger.Info("document uploaded",
		zap.String("ticket", ticket),
		zap.String("path", utils.JoinPath(result.FolderPath, req.FileName)),
		zap.Bool("created", created))
	return result, nil
}

// readRequest drains the file into an UploadRequest, sniffing the MIME
// type when the client did not send a useful one
func (o *Orchestrator) readRequest(ticket, folderPath string, file File) (*types.UploadRequest, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.Name(), err)
	}
	if size := file.Size(); size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("short read of %s: got %d of %d bytes", file.Name(), len(data), size)
	}

	mimeType := file.ContentType()
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	return &types.UploadRequest{
		TicketNumber: ticket,
		FolderPath:   folderPath,
		FileName:     file.Name(),
		MimeType:     mimeType,
		Content:      data,
		Size:         int64(len(data)),
		Description:  o.cfg.FileDescription,
	}, nil
}

// FromFileHeader adapts a multipart form file
func FromFileHeader(fh *multipart.FileHeader) File {
	return fileHeader{fh}
}

type fileHeader struct {
	fh *multipart.FileHeader
}

// Name drops any directory part a client sent along with the file name
func (f fileHeader) Name() string {
	name := path.Base(strings.ReplaceAll(f.fh.Filename, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

func (f fileHeader) ContentType() string          { return f.fh.Header.Get("Content-Type") }
func (f fileHeader) Size() int64                  { return f.fh.Size }
func (f fileHeader) Open() (io.ReadCloser, error) { return f.fh.Open() }
