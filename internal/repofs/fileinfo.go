package repofs

import (
	"io/fs"
	"time"

	"github.com/Project-Sylos/Archivist/internal/cmis"
)

// objectFileInfo wraps a cmis.Object to implement fs.FileInfo
type objectFileInfo struct {
	obj *cmis.Object
}

// NewFileInfo creates a new fs.FileInfo from a cmis.Object
func NewFileInfo(obj *cmis.Object) fs.FileInfo {
	return &objectFileInfo{obj: obj}
}

// Name returns the base name of the object
func (fi *objectFileInfo) Name() string {
	return fi.obj.Name
}

// Size returns the content stream length for documents; 0 for folders
func (fi *objectFileInfo) Size() int64 {
	if fi.obj.IsFolder() {
		return 0
	}
	return fi.obj.ContentStreamLength
}

// Mode returns read-only mode bits
func (fi *objectFileInfo) Mode() fs.FileMode {
	if fi.obj.IsFolder() {
		return fs.ModeDir | 0555
	}
	return 0444
}

// ModTime returns the last modification date
func (fi *objectFileInfo) ModTime() time.Time {
	return fi.obj.LastModificationDate
}

// IsDir reports whether the object is a folder
func (fi *objectFileInfo) IsDir() bool {
	return fi.obj.IsFolder()
}

// Sys returns the underlying *cmis.Object
func (fi *objectFileInfo) Sys() any {
	return fi.obj
}
