package stagefetch

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with stagefetch-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRunID tags every record with the id of one Fetch call.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// WithDataset adds the dataset folder.
func (l *Logger) WithDataset(dir string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", dir),
	}
}

// LogAttempt logs the outcome of one source attempt.
func (l *Logger) LogAttempt(ctx context.Context, location string, unavailable bool, err error) {
	switch {
	case err == nil:
		l.InfoContext(ctx, "source opened", "source", location)
	case unavailable:
		l.WarnContext(ctx, "source unavailable, trying next",
			"source", location,
			"error", err,
		)
	default:
		l.ErrorContext(ctx, "source failed",
			"source", location,
			"error", err,
		)
	}
}

// LogProgress logs an intermediate download state. total is negative when
// the size is unknown.
func (l *Logger) LogProgress(ctx context.Context, location string, n, total int64) {
	if total > 0 {
		l.InfoContext(ctx, "downloading",
			"source", location,
			"bytes", humanize.Bytes(uint64(n)),
			"total", humanize.Bytes(uint64(total)),
			"percent", n*100/total,
		)
		return
	}
	l.InfoContext(ctx, "downloading",
		"source", location,
		"bytes", humanize.Bytes(uint64(n)),
	)
}

// LogDownload logs a finished download.
func (l *Logger) LogDownload(ctx context.Context, location string, n int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "download failed",
			"source", location,
			"bytes", humanize.Bytes(uint64(n)),
			"error", err,
		)
		return
	}
	rate := "n/a"
	if s := d.Seconds(); s > 0 {
		rate = humanize.Bytes(uint64(float64(n)/s)) + "/s"
	}
	l.InfoContext(ctx, "download completed",
		"source", location,
		"bytes", humanize.Bytes(uint64(n)),
		"duration", d.Round(time.Millisecond),
		"rate", rate,
	)
}

// LogStore logs the records committed to one split.
func (l *Logger) LogStore(ctx context.Context, split string, records int) {
	l.InfoContext(ctx, "split stored",
		"split", split,
		"records", humanize.Comma(int64(records)),
	)
}

// LogFetch logs the outcome of a Fetch call.
func (l *Logger) LogFetch(ctx context.Context, cached bool, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"duration", d.Round(time.Millisecond),
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "fetch completed",
		"cached", cached,
		"duration", d.Round(time.Millisecond),
	)
}
