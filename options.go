package stagefetch

import (
	"log/slog"
	"time"

	"github.com/hupe1980/stagefetch/internal/fs"
	"github.com/hupe1980/stagefetch/layout"
)

const defaultProgressInterval = 5 * time.Second

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	layout           layout.Strategy
	tempDir          string
	rateLimit        int64
	progressInterval time.Duration
	fs               fs.FileSystem
}

// Option configures a Fetcher.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		layout:           layout.StrategyFlat,
		progressInterval: defaultProgressInterval,
		fs:               fs.Default,
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel installs a text logger on stderr at level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLayout selects how record files are named inside a split folder.
// The default is layout.StrategyFlat.
func WithLayout(s layout.Strategy) Option {
	return func(o *options) {
		o.layout = s
	}
}

// WithTempDir sets the directory the archive is downloaded to. Defaults to
// os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithRateLimit caps the download rate in bytes per second. Zero disables
// the limit.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSec
	}
}

// WithProgressInterval sets how often download progress is logged. Zero
// disables progress logs.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

// withFileSystem sets the filesystem of the split folders.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}
