package stagefetch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/stagefetch/manifest"
)

var (
	// ErrNoSources is returned by Fetch when a download is needed but no
	// source is configured.
	ErrNoSources = errors.New("no sources configured")

	// ErrNotFetched is returned by Load for a split without a committed manifest.
	ErrNotFetched = errors.New("dataset not fetched")

	// ErrCodecMismatch is returned when a split was written by another codec.
	ErrCodecMismatch = manifest.ErrCodecMismatch

	// ErrInvalidConfig is returned by NewFetcher for an incomplete Config.
	ErrInvalidConfig = errors.New("invalid config")
)

// SourceError is a fatal failure of one source. Fetch stops at the first
// SourceError without trying the remaining sources.
//
// The original underlying error can be accessed via errors.Unwrap.
type SourceError struct {
	Location string
	cause    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Location, e.cause)
}

func (e *SourceError) Unwrap() error { return e.cause }
