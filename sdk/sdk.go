// Package sdk is the public entry point to Archivist. It wires the
// repository binding, session registry, upload orchestrator and notifier
// from a single configuration.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/cmis/browser"
	"github.com/Project-Sylos/Archivist/internal/config"
	"github.com/Project-Sylos/Archivist/internal/db"
	"github.com/Project-Sylos/Archivist/internal/gateway"
	"github.com/Project-Sylos/Archivist/internal/logging"
	"github.com/Project-Sylos/Archivist/internal/notify"
	"github.com/Project-Sylos/Archivist/internal/registry"
	"github.com/Project-Sylos/Archivist/internal/repofs"
	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/internal/upload"
	"go.uber.org/zap"
)

// ErrNotLocal is returned by operations that only make sense against the
// embedded repository
var ErrNotLocal = errors.New("operation requires the local binding")

// Archivist owns every long-lived component of the service
type Archivist struct {
	cfg        *types.Config
	logger     *zap.Logger
	ownsLogger bool
	store      *db.DB // nil unless the local binding is configured
	registry   *registry.Registry
	uploader   *upload.Orchestrator
	notifier   *notify.Notifier
}

// New creates an Archivist from the config file at configPath and builds
// its logger from the logging section
func New(configPath string) (*Archivist, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a, err := NewWithConfig(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize Archivist: %w", err)
	}
	a.ownsLogger = true
	return a, nil
}

// NewWithConfig creates an Archivist from an already loaded config. The
// binding is chosen by cfg.Repository.Binding.
func NewWithConfig(cfg *types.Config, logger *zap.Logger) (*Archivist, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		binding cmis.Binding
		store   *db.DB
	)
	switch cfg.Repository.Binding {
	case types.BindingBrowser:
		binding = browser.NewBinding(browser.Options{
			URL:         cfg.Repository.URL,
			Compression: cfg.Repository.Compression,
			Timeout:     cfg.Repository.Timeout(),
		}, logger)
	case types.BindingLocal:
		var err error
		store, err = db.New(cfg.Repository.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open local repository: %w", err)
		}
		binding = db.NewBinding(store, cfg.Repository.ReadOnly)
	}

	a := NewWithBinding(cfg, binding, logger)
	a.store = store
	return a, nil
}

// NewWithBinding creates an Archivist over a caller-supplied binding.
// cfg is not validated.
func NewWithBinding(cfg *types.Config, binding cmis.Binding, logger *zap.Logger) *Archivist {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := registry.New(binding, logger)
	return &Archivist{
		cfg:      cfg,
		logger:   logger,
		registry: sessions,
		uploader: upload.New(sessions, cfg.Repository, logger),
		notifier: notify.NewNotifier(cfg.Notification, logger),
	}
}

// Gateway returns a gateway over the configured connection, negotiating
// the session on first use
func (a *Archivist) Gateway(ctx context.Context) (*gateway.Gateway, error) {
	repo := a.cfg.Repository
	session, err := a.registry.GetSession(ctx, repo.ConnectionName, repo.Username, repo.Password)
	if err != nil {
		return nil, err
	}
	return gateway.New(session, a.logger), nil
}

// Upload files one document into folderPath/ticket
func (a *Archivist) Upload(ctx context.Context, ticket, folderPath string, file upload.File) (*upload.Result, error) {
	return a.uploader.Upload(ctx, ticket, folderPath, file)
}

// UploadAll files every document in order and stops at the first failure,
// returning the results gathered so far. When notify_on_upload is set a
// notification follows a fully successful batch; a failed notification
// is logged and does not fail the upload.
func (a *Archivist) UploadAll(ctx context.Context, ticket, folderPath string, files []upload.File) ([]*upload.Result, error) {
	results := make([]*upload.Result, 0, len(files))
	for _, file := range files {
		result, err := a.uploader.Upload(ctx, ticket, folderPath, file)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	if a.cfg.Notification.NotifyOnUpload && len(results) > 0 {
		if _, err := a.notifier.Notify(ctx); err != nil {
			a.logger.Warn("upload notification failed",
				zap.String("ticket", ticket),
				zap.Error(err))
		}
	}
	return results, nil
}

// Notify sends the configured email. Non-empty subject and body replace
// the configured ones.
func (a *Archivist) Notify(ctx context.Context, subject, body string) (types.Email, error) {
	return a.notifier.NotifyWith(ctx, subject, body)
}

// AsFS returns a read-only filesystem over the repository folder at root
func (a *Archivist) AsFS(ctx context.Context, root string) (fs.FS, error) {
	gw, err := a.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	return repofs.New(ctx, gw, root), nil
}

// Connections returns the number of live repository sessions
func (a *Archivist) Connections() int {
	return a.registry.Len()
}

// ConnectionNames returns the names of the live repository sessions
func (a *Archivist) ConnectionNames() []string {
	return a.registry.Names()
}

// NodeCount returns the number of nodes in the local repository
func (a *Archivist) NodeCount() (int, error) {
	if a.store == nil {
		return 0, ErrNotLocal
	}
	return a.store.GetNodeCount()
}

// Reset empties the local repository, leaving only the root folder
func (a *Archivist) Reset() error {
	if a.store == nil {
		return ErrNotLocal
	}
	if a.cfg.Repository.ReadOnly {
		return fmt.Errorf("local repository is read-only: %w", cmis.ErrPermissionDenied)
	}
	a.logger.Warn("resetting local repository")
	return a.store.DeleteAllNodes()
}

// Config returns the active configuration
func (a *Archivist) Config() *types.Config {
	return a.cfg
}

// Logger returns the service logger
func (a *Archivist) Logger() *zap.Logger {
	return a.logger
}

// Close releases the local repository and flushes the logger when this
// Archivist built it. Call it during graceful shutdown.
func (a *Archivist) Close() error {
	var err error
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			err = fmt.Errorf("failed to close local repository: %w", cerr)
		}
	}
	if a.ownsLogger {
		// stderr sync fails on some platforms; nothing useful to do about it
		_ = a.logger.Sync()
	}
	return err
}

// Re-export types for convenience
type (
	Config      = types.Config
	Email       = types.Email
	APIResponse = types.APIResponse
	File        = upload.File
	Result      = upload.Result
	UploadError = upload.UploadError
)
