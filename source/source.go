// Package source opens archive streams from candidate locations.
//
// Failures are split in two classes. An unavailable source (not found,
// forbidden, unreachable host) satisfies errors.Is(err, ErrUnavailable) and
// lets the caller move on to the next candidate. Every other failure is
// fatal.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrUnavailable marks a source that cannot serve the archive.
var ErrUnavailable = errors.New("source unavailable")

// Source is a location an archive can be streamed from.
type Source interface {
	// Location identifies the source in logs and errors.
	Location() string
	// Open starts streaming the archive. size is -1 when unknown.
	Open(ctx context.Context) (rc io.ReadCloser, size int64, err error)
}

// Downloader is implemented by sources that can write the archive straight
// into a random-access destination, such as a parallel ranged download.
type Downloader interface {
	Source
	Download(ctx context.Context, w io.WriterAt) (int64, error)
}

// UnavailableError reports why a source cannot serve the archive.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type UnavailableError struct {
	Location string
	Reason   string
	cause    error
}

// Unavailable wraps cause as an *UnavailableError.
func Unavailable(location, reason string, cause error) *UnavailableError {
	return &UnavailableError{Location: location, Reason: reason, cause: cause}
}

func (e *UnavailableError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("source %s unavailable: %s", e.Location, e.Reason)
	}
	return fmt.Sprintf("source %s unavailable: %s: %v", e.Location, e.Reason, e.cause)
}

func (e *UnavailableError) Unwrap() error { return e.cause }

// Is makes every *UnavailableError match ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// IsUnavailable reports whether err allows trying the next source.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
