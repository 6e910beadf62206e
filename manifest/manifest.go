// Package manifest persists the ordered entry list of one dataset split.
//
// The manifest lives at <split folder>/0meta. It is written only when a
// registration session commits: the new content goes to a temporary file,
// is fsynced, renamed over 0meta and the folder is fsynced. The file is never
// modified in place, so "0meta exists" is a trustworthy signal that the split
// is complete.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/stagefetch/codec"
	"github.com/hupe1980/stagefetch/internal/fs"
	"github.com/hupe1980/stagefetch/record"
)

const (
	FileName       = "0meta"
	CurrentVersion = 1
	tmpSuffix      = ".tmp"
)

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")

	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")
)

// Manifest describes the persisted records of one split.
type Manifest[L comparable] struct {
	Version int               `json:"version"`
	Dataset string            `json:"dataset"`
	Codec   string            `json:"codec"`
	Entries []record.Entry[L] `json:"entries"`
}

// Store reads and atomically replaces the manifest of one split folder.
type Store[L comparable] struct {
	fs    fs.FileSystem
	dir   string
	codec codec.Codec
}

// NewStore creates a manifest store for dir. A nil fsys selects fs.Default.
func NewStore[L comparable](fsys fs.FileSystem, dir string) *Store[L] {
	if fsys == nil {
		fsys = fs.Default
	}
	return &Store[L]{fs: fsys, dir: dir, codec: codec.Default}
}

// Path returns the manifest path.
func (s *Store[L]) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Exists reports whether the manifest is present as a regular file.
func (s *Store[L]) Exists() bool {
	return fs.IsFile(s.fs, s.Path())
}

// Load reads the manifest. It returns ErrNotFound when there is none.
func (s *Store[L]) Load() (*Manifest[L], error) {
	data, err := fs.ReadFile(s.fs, s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path())
	}
	if err != nil {
		return nil, err
	}

	var m Manifest[L]
	if err := s.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", s.Path(), err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrIncompatibleVersion, m.Version, CurrentVersion)
	}
	return &m, nil
}

// Save atomically replaces the manifest with m.
func (s *Store[L]) Save(m *Manifest[L]) error {
	m.Version = CurrentVersion
	if m.Entries == nil {
		m.Entries = []record.Entry[L]{}
	}

	data, err := s.codec.Marshal(m)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	// Write to temp file first
	tmpPath := s.Path() + tmpSuffix
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	if err := s.fs.Rename(tmpPath, s.Path()); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	// Sync directory to persist rename
	return fs.SyncDir(s.fs, s.dir)
}

// Discard removes a leftover temporary manifest from an interrupted save.
func (s *Store[L]) Discard() error {
	err := s.fs.Remove(s.Path() + tmpSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ErrCodecMismatch is returned when a manifest was written by a different codec.
var ErrCodecMismatch = errors.New("codec mismatch")

// CheckCodec verifies that the manifest was written by the codec called name.
func (m *Manifest[L]) CheckCodec(name string) error {
	if m.Codec != name {
		return fmt.Errorf("%w: manifest has %q, codec is %q", ErrCodecMismatch, m.Codec, name)
	}
	return nil
}
