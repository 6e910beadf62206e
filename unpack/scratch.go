package unpack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Scratch is a temporary directory for archive members that need to be
// read out of archive order.
type Scratch struct {
	dir string
}

// NewScratch creates a scratch directory inside parent. An empty parent
// selects os.TempDir().
func NewScratch(parent, pattern string) (*Scratch, error) {
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return nil, fmt.Errorf("unpack: create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string { return s.dir }

// Path returns the scratch path of a member.
func (s *Scratch) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Extract copies r into the scratch directory under the base name of name.
func (s *Scratch) Extract(name string, r io.Reader) (string, error) {
	p := s.Path(name)
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	return p, f.Close()
}

// Open opens an extracted member.
func (s *Scratch) Open(name string) (*os.File, error) {
	return os.Open(s.Path(name))
}

// Close removes the scratch directory.
func (s *Scratch) Close() error {
	return os.RemoveAll(s.dir)
}
