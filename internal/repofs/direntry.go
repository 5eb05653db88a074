package repofs

import (
	"io/fs"

	"github.com/Project-Sylos/Archivist/internal/cmis"
)

// objectDirEntry wraps a cmis.Object to implement fs.DirEntry
type objectDirEntry struct {
	obj *cmis.Object
}

// NewDirEntry creates a new fs.DirEntry from a cmis.Object
func NewDirEntry(obj *cmis.Object) fs.DirEntry {
	return &objectDirEntry{obj: obj}
}

func (de *objectDirEntry) Name() string { return de.obj.Name }

func (de *objectDirEntry) IsDir() bool { return de.obj.IsFolder() }

func (de *objectDirEntry) Type() fs.FileMode {
	if de.obj.IsFolder() {
		return fs.ModeDir
	}
	return 0
}

func (de *objectDirEntry) Info() (fs.FileInfo, error) {
	return NewFileInfo(de.obj), nil
}
