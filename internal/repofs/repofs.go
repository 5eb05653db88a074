// Package repofs presents a repository folder as a read-only fs.FS so
// that fs.WalkDir, fs.ReadFile and friends work against it.
package repofs

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/Project-Sylos/Archivist/internal/gateway"
	"github.com/Project-Sylos/Archivist/internal/utils"
)

// pageSize is how many children are fetched per GetChildren call
const pageSize = 200

// FS is an fs.FS rooted at a repository folder. Every Open is a
// round trip through the gateway; nothing is cached.
type FS struct {
	ctx  context.Context
	gw   *gateway.Gateway
	root string
}

// New returns a filesystem over the folder at root. ctx bounds every
// repository call made through it.
func New(ctx context.Context, gw *gateway.Gateway, root string) *FS {
	return &FS{ctx: ctx, gw: gw, root: utils.JoinPath(root)}
}

// Open implements fs.FS
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	full := f.root
	if name != "." {
		full = utils.JoinPath(f.root, name)
	}
	obj, err := f.gw.ResolvePath(f.ctx, full, "")
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: mapErr(err)}
	}
	if obj == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	if obj.IsFolder() {
		return &folder{obj: obj, list: func() ([]fs.DirEntry, error) {
			return f.list(name, full)
		}}, nil
	}

	parent, base := utils.SplitPath(full)
	return &document{obj: obj, open: func() (io.ReadCloser, error) {
		content, err := f.gw.ReadDocumentContent(f.ctx, parent, base)
		if err != nil {
			return nil, &fs.PathError{Op: "read", Path: name, Err: mapErr(err)}
		}
		return content.Stream, nil
	}}, nil
}

func (f *FS) list(name, full string) ([]fs.DirEntry, error) {
	var entries []fs.DirEntry
	err := f.gw.WalkChildren(f.ctx, full, pageSize, func(child *cmis.Object) error {
		entries = append(entries, NewDirEntry(child))
		return nil
	})
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: mapErr(err)}
	}
	return entries, nil
}

// mapErr turns repository errors into their io/fs equivalents where one
// exists
func mapErr(err error) error {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return fs.ErrNotExist
	case errors.Is(err, cmis.ErrPermissionDenied):
		return fs.ErrPermission
	}
	return err
}
