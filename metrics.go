package stagefetch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAttempt is called after each attempt to open a source.
	RecordAttempt(location string, err error)

	// RecordDownload is called after an archive download finished or failed.
	RecordDownload(bytes int64, duration time.Duration, err error)

	// RecordRegistration is called after each record registration.
	RecordRegistration(split string, err error)

	// RecordFetch is called after each Fetch. cached is true when the
	// dataset was already staged.
	RecordFetch(cached bool, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAttempt(string, error)                {}
func (NoopMetricsCollector) RecordDownload(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRegistration(string, error)           {}
func (NoopMetricsCollector) RecordFetch(bool, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	AttemptCount       atomic.Int64
	AttemptErrors      atomic.Int64
	DownloadCount      atomic.Int64
	DownloadErrors     atomic.Int64
	DownloadBytes      atomic.Int64
	DownloadTotalNanos atomic.Int64
	RegistrationCount  atomic.Int64
	RegistrationErrors atomic.Int64
	FetchCount         atomic.Int64
	FetchCached        atomic.Int64
	FetchErrors        atomic.Int64
}

// RecordAttempt implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAttempt(_ string, err error) {
	b.AttemptCount.Add(1)
	if err != nil {
		b.AttemptErrors.Add(1)
	}
}

// RecordDownload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDownload(bytes int64, duration time.Duration, err error) {
	b.DownloadCount.Add(1)
	b.DownloadBytes.Add(bytes)
	b.DownloadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DownloadErrors.Add(1)
	}
}

// RecordRegistration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRegistration(_ string, err error) {
	b.RegistrationCount.Add(1)
	if err != nil {
		b.RegistrationErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(cached bool, _ time.Duration, err error) {
	b.FetchCount.Add(1)
	if cached {
		b.FetchCached.Add(1)
	}
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AttemptCount:       b.AttemptCount.Load(),
		AttemptErrors:      b.AttemptErrors.Load(),
		DownloadCount:      b.DownloadCount.Load(),
		DownloadErrors:     b.DownloadErrors.Load(),
		DownloadBytes:      b.DownloadBytes.Load(),
		DownloadAvgNanos:   b.getAvgDownloadNanos(),
		RegistrationCount:  b.RegistrationCount.Load(),
		RegistrationErrors: b.RegistrationErrors.Load(),
		FetchCount:         b.FetchCount.Load(),
		FetchCached:        b.FetchCached.Load(),
		FetchErrors:        b.FetchErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgDownloadNanos() int64 {
	count := b.DownloadCount.Load()
	if count == 0 {
		return 0
	}
	return b.DownloadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AttemptCount       int64
	AttemptErrors      int64
	DownloadCount      int64
	DownloadErrors     int64
	DownloadBytes      int64
	DownloadAvgNanos   int64
	RegistrationCount  int64
	RegistrationErrors int64
	FetchCount         int64
	FetchCached        int64
	FetchErrors        int64
}
