package source

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/hupe1980/stagefetch/internal/fs"
)

// File streams an archive from the local filesystem.
type File struct {
	path string
	fs   fs.FileSystem
}

// NewFile creates a File source. A nil fsys selects fs.Default.
func NewFile(path string, fsys fs.FileSystem) *File {
	if fsys == nil {
		fsys = fs.Default
	}
	return &File{path: path, fs: fsys}
}

// Location implements Source.
func (s *File) Location() string { return s.path }

// Open implements Source. Missing and unreadable files are unavailable.
func (s *File) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := s.fs.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, 0, Unavailable(s.path, "cannot open file", err)
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, Unavailable(s.path, "is a directory", nil)
	}
	return f, info.Size(), nil
}
