package source

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory serves an in-memory archive. It is intended for tests and records
// every Open call.
type Memory struct {
	location string
	data     []byte
	err      error

	mu       sync.Mutex
	attempts int
}

// NewMemory creates a source that streams data.
func NewMemory(location string, data []byte) *Memory {
	return &Memory{location: location, data: data}
}

// NewFailing creates a source whose Open always fails with err.
func NewFailing(location string, err error) *Memory {
	return &Memory{location: location, err: err}
}

// Location implements Source.
func (s *Memory) Location() string { return s.location }

// Open implements Source.
func (s *Memory) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if s.err != nil {
		return nil, 0, s.err
	}
	return io.NopCloser(bytes.NewReader(s.data)), int64(len(s.data)), nil
}

// Attempts returns how often Open was called.
func (s *Memory) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
