package record

import "github.com/hupe1980/stagefetch/internal/fs"

// Options configures the built-in codecs.
type Options struct {
	// FS is the filesystem records are written to. Defaults to fs.Default.
	FS fs.FileSystem
	// NoSync skips the per-record fsync. The manifest is always synced.
	NoSync bool
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{FS: fs.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	return opts
}

// WithFileSystem sets the filesystem used by a codec.
func WithFileSystem(fsys fs.FileSystem) func(o *Options) {
	return func(o *Options) {
		o.FS = fsys
	}
}
