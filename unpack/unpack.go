// Package unpack turns a downloaded archive into records.
//
// An Unpacker reads the archive and hands each record to a Sink, switching the
// sink to the split the record belongs to first. The fetcher passes a
// registrator.Multi as the sink, so records land in per-split folders.
package unpack

import (
	"context"
	"io"
	"os"

	"github.com/hupe1980/stagefetch/layout"
	"github.com/hupe1980/stagefetch/record"
)

// Sink receives unpacked records.
type Sink[R any, L comparable] interface {
	// Switch routes subsequent records to split and returns the previous split.
	Switch(split string) (string, error)
	// Register persists one record in the current split.
	Register(rec record.Record[R, L]) error
}

// Unpacker extracts the records of an archive.
type Unpacker[R any, L comparable] interface {
	Unpack(ctx context.Context, a *Archive, sink Sink[R, L]) error
}

// NamespaceReader is implemented by unpackers whose archives carry label
// names. The namespace is read before any record is registered.
type NamespaceReader[L comparable] interface {
	Namespace(ctx context.Context, a *Archive) (layout.Namespace[L], error)
}

// Func adapts a function to the Unpacker interface.
type Func[R any, L comparable] func(ctx context.Context, a *Archive, sink Sink[R, L]) error

// Unpack implements Unpacker.
func (f Func[R, L]) Unpack(ctx context.Context, a *Archive, sink Sink[R, L]) error {
	return f(ctx, a, sink)
}

// Archive is a fully downloaded archive. It can be read any number of times.
type Archive struct {
	location string
	r        io.ReaderAt
	size     int64
	closer   io.Closer
}

// NewArchive wraps r, which holds size bytes downloaded from location.
func NewArchive(location string, r io.ReaderAt, size int64) *Archive {
	return &Archive{location: location, r: r, size: size}
}

// OpenArchive opens the downloaded file at path.
func OpenArchive(location, path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Archive{location: location, r: f, size: info.Size(), closer: f}, nil
}

// Location returns where the archive was downloaded from.
func (a *Archive) Location() string { return a.location }

// Size returns the archive size in bytes.
func (a *Archive) Size() int64 { return a.size }

// ReaderAt returns random access to the raw archive bytes.
func (a *Archive) ReaderAt() io.ReaderAt { return a.r }

// Reader returns a fresh sequential reader over the raw archive bytes.
func (a *Archive) Reader() io.Reader {
	return io.NewSectionReader(a.r, 0, a.size)
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
