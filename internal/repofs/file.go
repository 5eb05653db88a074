package repofs

import (
	"io"
	"io/fs"

	"github.com/Project-Sylos/Archivist/internal/cmis"
)

// document implements fs.File over a content stream. The stream is
// fetched on the first Read.
type document struct {
	obj    *cmis.Object
	open   func() (io.ReadCloser, error)
	stream io.ReadCloser
	closed bool
}

// folder implements fs.ReadDirFile. Entries are listed on the first
// ReadDir.
type folder struct {
	obj     *cmis.Object
	list    func() ([]fs.DirEntry, error)
	entries []fs.DirEntry
	listed  bool
}

func (f *document) Stat() (fs.FileInfo, error) {
	return NewFileInfo(f.obj), nil
}

func (f *document) Read(b []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	if f.stream == nil {
		stream, err := f.open()
		if err != nil {
			return 0, err
		}
		f.stream = stream
	}
	return f.stream.Read(b)
}

func (f *document) Close() error {
	if f.closed {
		return fs.ErrClosed
	}
	f.closed = true
	if f.stream != nil {
		return f.stream.Close()
	}
	return nil
}

func (d *folder) Stat() (fs.FileInfo, error) {
	return NewFileInfo(d.obj), nil
}

func (d *folder) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.obj.Path, Err: fs.ErrInvalid}
}

// ReadDir returns up to n entries in repository order. With n <= 0 it
// returns everything left and a nil error.
func (d *folder) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.listed {
		entries, err := d.list()
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.listed = true
	}

	if n <= 0 {
		result := d.entries
		d.entries = nil
		return result, nil
	}
	if len(d.entries) == 0 {
		return nil, io.EOF
	}

	count := min(n, len(d.entries))
	result := make([]fs.DirEntry, count)
	copy(result, d.entries[:count])
	d.entries = d.entries[count:]
	return result, nil
}

func (d *folder) Close() error {
	return nil
}
