package registrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/stagefetch/internal/fs"
	"github.com/hupe1980/stagefetch/layout"
	"github.com/hupe1980/stagefetch/manifest"
	"github.com/hupe1980/stagefetch/record"
)

// Registrator persists the records of one split. It is not safe for
// concurrent use.
type Registrator[R any, L comparable] struct {
	name  string
	dir   string
	codec record.Codec[R]
	namer layout.Namer[L]
	store *manifest.Store[L]
	opts  options

	open      bool
	loaded    bool
	entries   []record.Entry[L]
	committed int
}

// resumer is implemented by namers that can skip the names already taken by
// committed entries, such as layout.Flat.
type resumer interface {
	Resume(n int)
}

// New creates a closed Registrator for the split folder baseDir/name.
func New[R any, L comparable](baseDir, name string, c record.Codec[R], namer layout.Namer[L], opts ...Option) *Registrator[R, L] {
	o := applyOptions(opts)
	dir := filepath.Join(baseDir, name)
	return &Registrator[R, L]{
		name:  name,
		dir:   dir,
		codec: c,
		namer: namer,
		store: manifest.NewStore[L](o.fs, dir),
		opts:  o,
	}
}

// Dumped reports whether the split baseDir/name has a committed manifest.
func Dumped(baseDir, name string) bool {
	return manifest.NewStore[record.NoLabel](fs.Default, filepath.Join(baseDir, name)).Exists()
}

// Name returns the split name.
func (r *Registrator[R, L]) Name() string { return r.name }

// Dir returns the split folder.
func (r *Registrator[R, L]) Dir() string { return r.dir }

// IsOpen reports whether a session is open.
func (r *Registrator[R, L]) IsOpen() bool { return r.open }

// AlreadyDumped reports whether the split has a committed manifest.
func (r *Registrator[R, L]) AlreadyDumped() bool {
	return r.store.Exists()
}

// Open starts a session. The split folder is created when missing and the
// committed entries, if any, are loaded so new records are appended.
func (r *Registrator[R, L]) Open() error {
	if r.open {
		return ErrAlreadyOpen
	}
	if err := r.opts.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("registrator: create %s: %w", r.dir, err)
	}
	if err := r.store.Discard(); err != nil {
		return err
	}
	if err := r.load(); err != nil {
		return err
	}
	r.open = true
	r.opts.logger.Debug("session opened", "split", r.name, "entries", len(r.entries))
	return nil
}

func (r *Registrator[R, L]) load() error {
	m, err := r.store.Load()
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		r.entries = nil
	case err != nil:
		return err
	default:
		if err := m.CheckCodec(r.codec.Name()); err != nil {
			return fmt.Errorf("registrator: %s: %w", r.name, err)
		}
		r.entries = m.Entries
		if rs, ok := r.namer.(resumer); ok {
			rs.Resume(len(m.Entries))
		}
	}
	r.loaded = true
	r.committed = len(r.entries)
	return nil
}

// Register names, stores and buffers one record.
func (r *Registrator[R, L]) Register(rec record.Record[R, L]) error {
	if !r.open {
		return ErrNotOpen
	}

	var prev string
	for {
		name := r.namer.Name(rec.Label)
		if name == prev {
			return &RegistrationError{Split: r.name, Path: name, cause: os.ErrExist}
		}
		prev = name

		path, err := r.codec.Save(rec.Value, filepath.Join(r.dir, filepath.FromSlash(name)))
		if errors.Is(err, os.ErrExist) {
			// Left over from an aborted session or appended earlier.
			continue
		}
		if err != nil {
			return &RegistrationError{Split: r.name, Path: name, cause: err}
		}

		rel, err := filepath.Rel(r.dir, path)
		if err != nil {
			return &RegistrationError{Split: r.name, Path: name, cause: err}
		}
		r.entries = append(r.entries, record.Entry[L]{Path: filepath.ToSlash(rel), Label: rec.Label})
		return nil
	}
}

// Close commits the session by atomically replacing the manifest. The
// session is closed afterwards even if the commit fails.
func (r *Registrator[R, L]) Close() error {
	if !r.open {
		return ErrNotOpen
	}
	r.open = false

	err := r.store.Save(&manifest.Manifest[L]{
		Dataset: r.name,
		Codec:   r.codec.Name(),
		Entries: r.entries,
	})
	if err != nil {
		r.opts.logger.Warn("manifest commit failed", "split", r.name, "error", err)
		return fmt.Errorf("registrator: commit %s: %w", r.name, err)
	}
	r.committed = len(r.entries)
	r.opts.logger.Debug("session committed", "split", r.name, "entries", len(r.entries))
	return nil
}

// Abort closes the session without committing. Record files written during
// the session are removed.
func (r *Registrator[R, L]) Abort() error {
	if !r.open {
		return ErrNotOpen
	}
	r.open = false

	var errs []error
	for _, e := range r.entries[r.committed:] {
		if err := r.opts.fs.Remove(filepath.Join(r.dir, filepath.FromSlash(e.Path))); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	r.entries = r.entries[:r.committed:r.committed]
	r.opts.logger.Debug("session aborted", "split", r.name)
	return errors.Join(errs...)
}

// Do opens a session, runs fn and commits on success. When fn fails or
// panics the session is aborted and nothing is committed.
func (r *Registrator[R, L]) Do(fn func() error) (err error) {
	if err := r.Open(); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = r.Abort()
			panic(p)
		}
	}()
	if err := fn(); err != nil {
		return errors.Join(err, r.Abort())
	}
	return r.Close()
}

// Entries returns a copy of the entries in insertion order. The committed
// manifest is read on first use when no session was opened yet.
func (r *Registrator[R, L]) Entries() ([]record.Entry[L], error) {
	if !r.loaded {
		if err := r.load(); err != nil {
			return nil, err
		}
	}
	out := make([]record.Entry[L], len(r.entries))
	copy(out, r.entries)
	return out, nil
}

// Clean removes the split folder. Any open session is aborted first.
func (r *Registrator[R, L]) Clean() error {
	if r.open {
		_ = r.Abort()
	}
	r.entries = nil
	r.loaded = false
	r.committed = 0
	return r.opts.fs.RemoveAll(r.dir)
}
