package registrator

import (
	"log/slog"

	"github.com/hupe1980/stagefetch/internal/fs"
)

type options struct {
	fs     fs.FileSystem
	logger *slog.Logger
}

// Option configures a Registrator.
type Option func(*options)

// WithFileSystem sets the filesystem the split folder and manifest live on.
// It should match the filesystem of the record codec.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithLogger sets the logger for session events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(opts []Option) options {
	o := options{fs: fs.Default}
	for _, fn := range opts {
		fn(&o)
	}
	if o.fs == nil {
		o.fs = fs.Default
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
