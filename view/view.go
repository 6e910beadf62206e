// Package view provides read-only, lazily loaded views over persisted
// records.
//
// A view holds the entry paths of a split and the loader that reads them.
// Constructing or slicing a view never touches the disk; each record is read
// when it is accessed.
package view

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/stagefetch/record"
)

// ErrIndexOutOfRange is returned for an index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("view: index out of range")

// LoadError reports a record that could not be loaded.
//
// The original underlying error can be accessed via errors.Unwrap.
type LoadError struct {
	Index int
	Path  string
	cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("view: load record %d (%s): %v", e.Index, e.Path, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }

// Dataset is an unlabeled view. It is safe for concurrent reads.
type Dataset[R any] struct {
	dir    string
	paths  []string
	loader record.Loader[R]
}

// New creates a view over paths, which are slash separated and relative to
// dir. The slice is retained and must not be modified afterwards.
func New[R any](dir string, paths []string, loader record.Loader[R]) *Dataset[R] {
	return &Dataset[R]{dir: dir, paths: paths[:len(paths):len(paths)], loader: loader}
}

// Dir returns the split folder the paths are relative to.
func (d *Dataset[R]) Dir() string { return d.dir }

// Len returns the number of records.
func (d *Dataset[R]) Len() int { return len(d.paths) }

// Path returns the file path of record i.
func (d *Dataset[R]) Path(i int) (string, error) {
	if i < 0 || i >= len(d.paths) {
		return "", fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(d.paths))
	}
	return filepath.Join(d.dir, filepath.FromSlash(d.paths[i])), nil
}

// At loads record i.
func (d *Dataset[R]) At(i int) (R, error) {
	var zero R
	path, err := d.Path(i)
	if err != nil {
		return zero, err
	}
	v, err := d.loader.Load(path)
	if err != nil {
		return zero, &LoadError{Index: i, Path: path, cause: err}
	}
	return v, nil
}

// Slice returns the view of records [i, j). It shares the loader and the
// entry paths with d. Slice panics if the bounds are invalid, like a slice
// expression.
func (d *Dataset[R]) Slice(i, j int) *Dataset[R] {
	checkBounds(i, j, len(d.paths))
	return &Dataset[R]{dir: d.dir, paths: d.paths[i:j:j], loader: d.loader}
}

// All iterates over the records in order. A load failure is yielded with the
// zero value and iteration continues if the caller asks for more.
func (d *Dataset[R]) All() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for i := range d.paths {
			if !yield(d.At(i)) {
				return
			}
		}
	}
}

// LoadAll loads every record using up to workers goroutines. A non-positive
// workers value loads sequentially.
func (d *Dataset[R]) LoadAll(ctx context.Context, workers int) ([]R, error) {
	out := make([]R, len(d.paths))

	g, gctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range d.paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := d.At(i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkBounds(i, j, n int) {
	if i < 0 || j < i || j > n {
		panic(fmt.Sprintf("view: slice bounds [%d:%d] out of range with length %d", i, j, n))
	}
}
