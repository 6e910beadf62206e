package stagefetch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		WithRunID("run-1").
		WithDataset("/data/cifar")
	ctx := context.Background()

	l.LogAttempt(ctx, "http://a", true, errors.New("404"))
	l.LogProgress(ctx, "http://b", 512<<10, 1<<20)
	l.LogDownload(ctx, "http://b", 1<<20, time.Second, nil)
	l.LogStore(ctx, "cifar10_ls", 50000)
	l.LogFetch(ctx, false, time.Second, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 5)

	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "/data/cifar", lines[0]["dataset"])
	assert.Equal(t, "http://a", lines[0]["source"])

	assert.Equal(t, "524 kB", lines[1]["bytes"])
	assert.Equal(t, float64(50), lines[1]["percent"])

	assert.Equal(t, "1.0 MB/s", lines[2]["rate"])
	assert.Equal(t, "50,000", lines[3]["records"])
	assert.Equal(t, false, lines[4]["cached"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogFetch(context.Background(), true, 0, nil)
}

func TestBasicMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	mc.RecordAttempt("a", errors.New("404"))
	mc.RecordAttempt("b", nil)
	mc.RecordDownload(100, 2*time.Millisecond, nil)
	mc.RecordDownload(0, 0, errors.New("reset"))
	mc.RecordRegistration("ls", nil)
	mc.RecordFetch(true, 0, nil)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.AttemptCount)
	assert.Equal(t, int64(1), stats.AttemptErrors)
	assert.Equal(t, int64(2), stats.DownloadCount)
	assert.Equal(t, int64(1), stats.DownloadErrors)
	assert.Equal(t, int64(100), stats.DownloadBytes)
	assert.Equal(t, int64(time.Millisecond), stats.DownloadAvgNanos)
	assert.Equal(t, int64(1), stats.RegistrationCount)
	assert.Equal(t, int64(1), stats.FetchCached)

	var _ MetricsCollector = NoopMetricsCollector{}
}
