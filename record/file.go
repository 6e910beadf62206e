package record

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/stagefetch/internal/fs"
)

// createExclusive creates path and its parent directories. It fails with an
// error satisfying errors.Is(err, os.ErrExist) when path already exists.
func createExclusive(fsys fs.FileSystem, path string) (fs.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// writeExclusive streams write into a new file. A partially written file is
// removed so a failed save leaves nothing behind.
func writeExclusive(fsys fs.FileSystem, path string, sync bool, write func(w io.Writer) error) error {
	f, err := createExclusive(fsys, path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = fsys.Remove(path)
		return err
	}
	if sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = fsys.Remove(path)
			return err
		}
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(path)
		return err
	}
	return nil
}
