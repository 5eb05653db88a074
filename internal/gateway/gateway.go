// Package gateway performs folder and document operations against a
// repository session, checking allowable actions before each change.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/utils"
	"go.uber.org/zap"
)

// textMimeType is used for content written by UpdateDocumentContent
const textMimeType = "text/plain; charset=UTF-8"

// Document describes a file to upload
type Document struct {
	Name        string
	MimeType    string
	Content     io.Reader
	Size        int64
	Description string
}

// Gateway wraps one repository session
type Gateway struct {
	session cmis.Session
	logger  *zap.Logger
}

// New creates a gateway over session
func New(session cmis.Session, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{session: session, logger: logger.Named("gateway")}
}

// ResolvePath looks up the node at path/name. A missing node is not an
// error: it returns nil, nil. An empty name resolves path itself.
func (g *Gateway) ResolvePath(ctx context.Context, path, name string) (*cmis.Object, error) {
	full := utils.JoinPath(path, name)
	obj, err := g.session.GetObjectByPath(ctx, full)
	if err != nil {
		if cmis.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", full, err)
	}
	obj.Path = full
	return obj, nil
}

// FolderExists reports whether a folder lives at path/name
func (g *Gateway) FolderExists(ctx context.Context, path, name string) (bool, error) {
	obj, err := g.ResolvePath(ctx, path, name)
	if err != nil {
		return false, err
	}
	return obj != nil && obj.IsFolder(), nil
}

// CreateFolder creates path/name. It returns false when the folder is
// already there, including when a concurrent caller created it first.
func (g *Gateway) CreateFolder(ctx context.Context, path, name string) (bool, error) {
	existing, err := g.ResolvePath(ctx, path, name)
	if err != nil {
		return false, err
	}
	if existing != nil {
		g.logger.Info("folder already exists", zap.String("path", existing.Path))
		return false, nil
	}

	parent, err := g.folder(ctx, path)
	if err != nil {
		return false, err
	}
	if err := requireAction(parent, cmis.CanCreateFolder); err != nil {
		return false, err
	}

	folder, err := g.session.CreateFolder(ctx, parent.ID, name)
	if err != nil {
		if errors.Is(err, cmis.ErrContentAlreadyExists) {
			if again, rerr := g.ResolvePath(ctx, path, name); rerr == nil && again != nil {
				g.logger.Info("folder already exists", zap.String("path", again.Path))
				return false, nil
			}
		}
		return false, fmt.Errorf("failed to create folder %s: %w", utils.JoinPath(path, name), err)
	}

	fields := []zap.Field{zap.String("path", utils.JoinPath(path, name))}
	if folder != nil {
		fields = append(fields, zap.String("creator", folder.CreatedBy), zap.Time("created", folder.CreationDate))
	}
	g.logger.Info("created folder", fields...)
	return true, nil
}

// UploadDocument stores doc under the folder at path as a major version.
// It is a no-op returning the existing document and false when one with
// that name is already there. A folder holding the name is a conflict.
func (g *Gateway) UploadDocument(ctx context.Context, path string, doc Document) (*cmis.Object, bool, error) {
	existing, err := g.ResolvePath(ctx, path, doc.Name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return g.alreadyThere(existing)
	}

	parent, err := g.folder(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if err := requireAction(parent, cmis.CanCreateDocument); err != nil {
		return nil, false, err
	}

	props := cmis.DocumentProperties{
		Name:         doc.Name,
		ObjectTypeID: cmis.BaseTypeDocument,
		Description:  doc.Description,
	}
	content := &cmis.ContentStream{
		FileName: doc.Name,
		Length:   doc.Size,
		MimeType: doc.MimeType,
		Stream:   io.NopCloser(doc.Content),
	}
	created, err := g.session.CreateDocument(ctx, parent.ID, props, content, cmis.VersioningMajor)
	if err != nil {
		if errors.Is(err, cmis.ErrContentAlreadyExists) {
			if again, rerr := g.ResolvePath(ctx, path, doc.Name); rerr == nil && again != nil {
				return g.alreadyThere(again)
			}
		}
		return nil, false, fmt.Errorf("failed to upload %s: %w", utils.JoinPath(path, doc.Name), err)
	}
	if created == nil {
		// some repositories answer without the new object
		if created, err = g.ResolvePath(ctx, path, doc.Name); err != nil || created == nil {
			return nil, true, err
		}
	}
	created.Path = utils.JoinPath(path, doc.Name)

	g.logger.Info("created document",
		zap.String("path", created.Path),
		zap.String("version", created.VersionLabel),
		zap.String("mimeType", created.ContentStreamMimeType),
		zap.Int64("size", created.ContentStreamLength))
	return created, true, nil
}

func (g *Gateway) alreadyThere(existing *cmis.Object) (*cmis.Object, bool, error) {
	if !existing.IsDocument() {
		return nil, false, fmt.Errorf("%w: %s is not a document", cmis.ErrContentAlreadyExists, existing.Path)
	}
	g.logger.Info("document already exists", zap.String("path", existing.Path))
	return existing, false, nil
}

// UpdateDocumentContent replaces the content of path/name with text.
// Repositories that only allow updates through checkout get a warning,
// not an error.
func (g *Gateway) UpdateDocumentContent(ctx context.Context, path, name, text string) (*cmis.Object, error) {
	info := g.session.RepositoryInfo()
	if info.Capabilities.ContentStreamUpdatability != cmis.ContentStreamUpdatesAnytime {
		g.logger.Warn("updating content without a checkout is not supported by this repository",
			zap.String("product", info.ProductName),
			zap.String("version", info.ProductVersion))
	}

	doc, err := g.document(ctx, path, name)
	if err != nil {
		return nil, err
	}
	if err := requireAction(doc, cmis.CanSetContentStream); err != nil {
		return nil, err
	}

	data := []byte(text)
	content := &cmis.ContentStream{
		FileName: doc.Name,
		Length:   int64(len(data)),
		MimeType: textMimeType,
		Stream:   io.NopCloser(bytes.NewReader(data)),
	}
	updated, err := g.session.SetContentStream(ctx, doc.ID, content, true)
	if err != nil {
		return nil, fmt.Errorf("failed to update content of %s: %w", doc.Path, err)
	}
	if updated == nil {
		g.logger.Info("no new version was created by the content update", zap.String("path", doc.Path))
		updated = doc
	}
	updated.Path = doc.Path

	g.logger.Info("updated document content",
		zap.String("path", updated.Path),
		zap.String("version", updated.VersionLabel),
		zap.String("modifier", updated.LastModifiedBy))
	return updated, nil
}

// DeleteDocument removes every version of path/name
func (g *Gateway) DeleteDocument(ctx context.Context, path, name string) error {
	doc, err := g.document(ctx, path, name)
	if err != nil {
		return err
	}
	if err := requireAction(doc, cmis.CanDeleteObject); err != nil {
		return err
	}
	if err := g.session.Delete(ctx, doc.ID, true); err != nil {
		return fmt.Errorf("failed to delete %s: %w", doc.Path, err)
	}
	g.logger.Info("deleted document", zap.String("path", doc.Path))
	return nil
}

// DeleteFolderTree removes the folder at path with everything below it.
// Nodes the repository could not remove are logged and returned; they do
// not make the call fail.
func (g *Gateway) DeleteFolderTree(ctx context.Context, path string) ([]string, error) {
	info := g.session.RepositoryInfo()
	unfile := cmis.UnfileObjects
	if !info.Capabilities.Unfiling {
		g.logger.Warn("repository does not support unfiling, documents will be deleted from all folders",
			zap.String("product", info.ProductName),
			zap.String("version", info.ProductVersion))
		unfile = cmis.DeleteUnfiledObjects
	}

	folder, err := g.folder(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := requireAction(folder, cmis.CanDeleteTree); err != nil {
		return nil, err
	}

	failed, err := g.session.DeleteTree(ctx, folder.ID, true, unfile, true)
	if err != nil {
		return failed, fmt.Errorf("failed to delete folder tree %s: %w", folder.Path, err)
	}
	g.logger.Info("deleted folder tree", zap.String("path", folder.Path), zap.Int("failed", len(failed)))
	for _, id := range failed {
		g.logger.Warn("could not delete node", zap.String("id", id), zap.String("tree", folder.Path))
	}
	return failed, nil
}

// ReadDocumentContent opens the content of path/name. The caller closes
// the stream.
func (g *Gateway) ReadDocumentContent(ctx context.Context, path, name string) (*cmis.ContentStream, error) {
	doc, err := g.document(ctx, path, name)
	if err != nil {
		return nil, err
	}
	if err := requireAction(doc, cmis.CanGetContentStream); err != nil {
		return nil, err
	}
	content, err := g.session.GetContentStream(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", doc.Path, err)
	}
	if content.FileName == "" {
		content.FileName = doc.Name
	}
	g.logger.Debug("returning document stream", zap.String("path", doc.Path))
	return content, nil
}

// CopyDocument copies sourcePath/name into destPath. A missing source or
// destination, or a name clash at the destination, is logged and reported
// as false.
func (g *Gateway) CopyDocument(ctx context.Context, sourcePath, name, destPath string) (bool, error) {
	dest, err := g.ResolvePath(ctx, destPath, "")
	if err != nil {
		return false, err
	}
	if dest == nil || !dest.IsFolder() {
		g.logger.Error("cannot copy, destination folder not found",
			zap.String("document", name), zap.String("destination", destPath))
		return false, nil
	}

	doc, err := g.ResolvePath(ctx, sourcePath, name)
	if err != nil {
		return false, err
	}
	if doc == nil || !doc.IsDocument() {
		g.logger.Error("cannot copy, document not found",
			zap.String("path", utils.JoinPath(sourcePath, name)), zap.String("destination", destPath))
		return false, nil
	}
	if err := requireAction(dest, cmis.CanCreateDocument); err != nil {
		return false, err
	}

	if _, err := g.session.CopyDocument(ctx, doc.ID, dest.ID); err != nil {
		if errors.Is(err, cmis.ErrContentAlreadyExists) {
			g.logger.Error("cannot copy, document already exists in destination",
				zap.String("document", name), zap.String("destination", dest.Path))
			return false, nil
		}
		return false, fmt.Errorf("failed to copy %s to %s: %w", doc.Path, dest.Path, err)
	}
	g.logger.Info("copied document",
		zap.String("document", name),
		zap.String("from", utils.JoinPath(sourcePath)),
		zap.String("to", dest.Path))
	return true, nil
}

// RenameFolder gives the folder at path a new name
func (g *Gateway) RenameFolder(ctx context.Context, path, newName string) (*cmis.Object, error) {
	folder, err := g.folder(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := requireAction(folder, cmis.CanUpdateProperties); err != nil {
		return nil, err
	}
	updated, err := g.session.UpdateProperties(ctx, folder.ID, map[string]any{cmis.PropName: newName})
	if err != nil {
		return nil, fmt.Errorf("failed to rename %s: %w", folder.Path, err)
	}
	parent, _ := utils.SplitPath(folder.Path)
	if updated == nil {
		updated = folder
		updated.Name = newName
	}
	updated.Path = utils.JoinPath(parent, newName)

	g.logger.Info("renamed folder",
		zap.String("from", folder.Path),
		zap.String("to", updated.Path),
		zap.String("modifier", updated.LastModifiedBy))
	return updated, nil
}

// ListChildren returns one page of the folder at path
func (g *Gateway) ListChildren(ctx context.Context, path string, skip, maxItems int) (*cmis.ChildrenPage, error) {
	folder, err := g.folder(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := requireAction(folder, cmis.CanGetChildren); err != nil {
		return nil, err
	}
	page, err := g.session.GetChildren(ctx, folder.ID, skip, maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder.Path, err)
	}
	for _, child := range page.Objects {
		if child.Path == "" {
			child.Path = utils.JoinPath(folder.Path, child.Name)
		}
	}
	return page, nil
}

// WalkChildren pages through the folder at path, calling fn for every
// child. Returning an error from fn stops the walk.
func (g *Gateway) WalkChildren(ctx context.Context, path string, pageSize int, fn func(*cmis.Object) error) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	for skip := 0; ; {
		page, err := g.ListChildren(ctx, path, skip, pageSize)
		if err != nil {
			return err
		}
		for _, child := range page.Objects {
			if err := fn(child); err != nil {
				return err
			}
		}
		skip += len(page.Objects)
		if !page.HasMoreItems || len(page.Objects) == 0 {
			return nil
		}
	}
}

// Properties returns the raw property map of path/name
func (g *Gateway) Properties(ctx context.Context, path, name string) (map[string]any, error) {
	obj, err := g.ResolvePath(ctx, path, name)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, notFound("object", utils.JoinPath(path, name))
	}
	if err := requireAction(obj, cmis.CanGetProperties); err != nil {
		return nil, err
	}
	return obj.Properties, nil
}

// TypeTree returns every type the repository defines
func (g *Gateway) TypeTree(ctx context.Context) ([]*cmis.TypeTree, error) {
	trees, err := g.session.GetTypeDescendants(ctx, "", -1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get type descendants: %w", err)
	}
	return trees, nil
}

// Capabilities returns what the repository advertises
func (g *Gateway) Capabilities() cmis.Capabilities {
	return g.session.RepositoryInfo().Capabilities
}

// RepositoryInfo returns the session's repository description
func (g *Gateway) RepositoryInfo() cmis.RepositoryInfo {
	return g.session.RepositoryInfo()
}

func (g *Gateway) folder(ctx context.Context, path string) (*cmis.Object, error) {
	obj, err := g.ResolvePath(ctx, path, "")
	if err != nil {
		return nil, err
	}
	if obj == nil || !obj.IsFolder() {
		return nil, notFound("folder", utils.JoinPath(path))
	}
	return obj, nil
}

func (g *Gateway) document(ctx context.Context, path, name string) (*cmis.Object, error) {
	obj, err := g.ResolvePath(ctx, path, name)
	if err != nil {
		return nil, err
	}
	if obj == nil || !obj.IsDocument() {
		return nil, notFound("document", utils.JoinPath(path, name))
	}
	return obj, nil
}
