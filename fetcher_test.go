package stagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/stagefetch/internal/fs"
	"github.com/hupe1980/stagefetch/layout"
	"github.com/hupe1980/stagefetch/manifest"
	"github.com/hupe1980/stagefetch/record"
	"github.com/hupe1980/stagefetch/source"
	"github.com/hupe1980/stagefetch/unpack"
)

// byteUnpacker registers every archive byte as one record labeled by its
// position parity. All but the last byte go to "ls", the last one to "ts".
type byteUnpacker struct {
	calls   int
	failAt  int // 1-based record number to fail on, 0 never
	failErr error
}

func (u *byteUnpacker) Unpack(_ context.Context, a *unpack.Archive, sink unpack.Sink[[]byte, int]) error {
	u.calls++
	data, err := io.ReadAll(a.Reader())
	if err != nil {
		return err
	}
	if _, err := sink.Switch("ls"); err != nil {
		return err
	}
	for i, b := range data {
		if i == len(data)-1 {
			if _, err := sink.Switch("ts"); err != nil {
				return err
			}
		}
		if u.failAt > 0 && i+1 == u.failAt {
			return u.failErr
		}
		if err := sink.Register(record.New([]byte{b}, i%2)); err != nil {
			return err
		}
	}
	return nil
}

// namedUnpacker adds a label namespace to byteUnpacker.
type namedUnpacker struct {
	byteUnpacker
}

func (u *namedUnpacker) Namespace(context.Context, *unpack.Archive) (layout.Namespace[int], error) {
	return layout.NamespaceOf([]string{"even", "odd"}), nil
}

// orderedSource records the order sources were opened in.
type orderedSource struct {
	source.Source
	log *[]string
	mu  *sync.Mutex
}

func (s orderedSource) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	*s.log = append(*s.log, s.Location())
	s.mu.Unlock()
	return s.Source.Open(ctx)
}

func newFetcher(t *testing.T, base string, u unpack.Unpacker[[]byte, int], sources []source.Source, opts ...Option) *Fetcher[[]byte, int] {
	t.Helper()
	opts = append([]Option{WithTempDir(t.TempDir())}, opts...)
	f, err := NewFetcher(Config[[]byte, int]{
		BaseDir:  base,
		Splits:   []string{"ls", "ts"},
		Sources:  sources,
		Unpacker: u,
		Codec:    record.NewBytes(),
	}, opts...)
	require.NoError(t, err)
	return f
}

func TestFetch_TwoSplits(t *testing.T) {
	base := t.TempDir()
	src := source.NewMemory("mem://dataset", []byte("abcdef"))
	f := newFetcher(t, base, &byteUnpacker{}, []source.Source{src})

	assert.False(t, f.AlreadyDone())
	splits, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(base, "ls", manifest.FileName))
	assert.FileExists(t, filepath.Join(base, "ts", manifest.FileName))
	assert.True(t, f.AlreadyDone())

	ls, ts := splits["ls"], splits["ts"]
	require.Equal(t, 5, ls.Len())
	require.Equal(t, 1, ts.Len())

	first, err := ls.At(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), first.Value)
	assert.Equal(t, 0, first.Label)

	last, err := ts.At(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("f"), last.Value)
	assert.Equal(t, 1, last.Label)

	assert.Equal(t, []int{0, 1, 0, 1, 0}, ls.Labels())
}

func TestFetch_Idempotent(t *testing.T) {
	base := t.TempDir()
	src := source.NewMemory("mem://dataset", []byte("abcdef"))
	u := &byteUnpacker{}
	f := newFetcher(t, base, u, []source.Source{src})

	first, err := f.Fetch(context.Background())
	require.NoError(t, err)
	second, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, src.Attempts())
	assert.Equal(t, 1, u.calls)
	for _, name := range []string{"ls", "ts"} {
		assert.Equal(t, first[name].Entries(), second[name].Entries())
		for i := 0; i < first[name].Len(); i++ {
			a, err := first[name].At(i)
			require.NoError(t, err)
			b, err := second[name].At(i)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	}

	// A fresh fetcher over the same folder does not touch the network either.
	again := newFetcher(t, base, u, []source.Source{src})
	_, err = again.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.Attempts())
}

func TestFetch_FailOverOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	wrap := func(s source.Source) source.Source { return orderedSource{Source: s, log: &order, mu: &mu} }

	a := source.NewFailing("mem://a", source.Unavailable("mem://a", "404 Not Found", nil))
	b := source.NewFailing("mem://b", source.Unavailable("mem://b", "403 Forbidden", nil))
	c := source.NewMemory("mem://c", []byte("xyz"))

	base := t.TempDir()
	f := newFetcher(t, base, &byteUnpacker{}, []source.Source{wrap(a), wrap(b), wrap(c)})
	splits, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"mem://a", "mem://b", "mem://c"}, order)
	require.Equal(t, 2, splits["ls"].Len())
	rec, err := splits["ls"].At(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), rec.Value)
}

func TestFetch_OneLogLinePerAttempt(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a := source.NewFailing("mem://a", source.Unavailable("mem://a", "404 Not Found", nil))
	b := source.NewMemory("mem://b", []byte("xyz"))
	f := newFetcher(t, t.TempDir(), &byteUnpacker{}, []source.Source{a, b}, WithLogger(logger))
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	attempts := map[string][]string{}
	for _, line := range decodeLines(t, &buf) {
		switch msg, _ := line["msg"].(string); msg {
		case "source opened", "source unavailable, trying next", "source failed":
			loc, _ := line["source"].(string)
			attempts[loc] = append(attempts[loc], msg)
		}
	}
	assert.Equal(t, map[string][]string{
		"mem://a": {"source unavailable, trying next"},
		"mem://b": {"source opened"},
	}, attempts)
}

func TestFetch_FatalShortCircuit(t *testing.T) {
	boom := errors.New("tls: handshake failure")
	a := source.NewFailing("mem://a", boom)
	b := source.NewMemory("mem://b", []byte("ab"))

	base := t.TempDir()
	f := newFetcher(t, base, &byteUnpacker{}, []source.Source{a, b})
	_, err := f.Fetch(context.Background())

	var se *SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "mem://a", se.Location)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, b.Attempts())
	assert.False(t, f.AlreadyDone())
}

func TestFetch_AllUnavailable(t *testing.T) {
	errA := source.Unavailable("mem://a", "404 Not Found", nil)
	errB := source.Unavailable("mem://b", "unreachable", errors.New("connection refused"))

	f := newFetcher(t, t.TempDir(), &byteUnpacker{}, []source.Source{
		source.NewFailing("mem://a", errA),
		source.NewFailing("mem://b", errB),
	})
	_, err := f.Fetch(context.Background())
	assert.Equal(t, errB, err, "the last tolerated error is returned unchanged")
}

func TestFetch_NoSources(t *testing.T) {
	f := newFetcher(t, t.TempDir(), &byteUnpacker{}, nil)
	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mirror2/data.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("0123"))
	}))
	defer srv.Close()

	mc := &BasicMetricsCollector{}
	f := newFetcher(t, t.TempDir(), &byteUnpacker{}, []source.Source{
		source.NewHTTP(srv.URL + "/mirror1/data.bin"),
		source.NewHTTP(srv.URL + "/mirror2/data.bin"),
	}, WithMetricsCollector(mc), WithRateLimit(1<<20))

	splits, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, splits["ls"].Len())

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.AttemptCount)
	assert.Equal(t, int64(1), stats.AttemptErrors)
	assert.Equal(t, int64(4), stats.DownloadBytes)
	assert.Equal(t, int64(4), stats.RegistrationCount)
	assert.Equal(t, int64(1), stats.FetchCount)

	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), mc.GetStats().FetchCached)
}

func TestFetch_ManifestAtomicity(t *testing.T) {
	base := t.TempDir()
	src := source.NewMemory("mem://dataset", []byte("abcde"))
	boom := errors.New("corrupt member")
	f := newFetcher(t, base, &byteUnpacker{failAt: 3, failErr: boom}, []source.Source{src})

	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.AlreadyDone())
	assert.NoFileExists(t, filepath.Join(base, "ls", manifest.FileName))

	_, err = f.Load()
	assert.ErrorIs(t, err, ErrNotFetched)

	// A later run starts from scratch.
	ok := newFetcher(t, base, &byteUnpacker{}, []source.Source{src})
	splits, err := ok.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, splits["ls"].Len())
}

func TestFetch_RegistrationFailure(t *testing.T) {
	base := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(filepath.Join("ls", "2.bin"), fs.Fault{FailOnSync: true})

	f, err := NewFetcher(Config[[]byte, int]{
		BaseDir:  base,
		Splits:   []string{"ls", "ts"},
		Sources:  []source.Source{source.NewMemory("mem://dataset", []byte("abcdef"))},
		Unpacker: &byteUnpacker{},
		Codec:    record.NewBytes(record.WithFileSystem(ffs)),
	}, WithTempDir(t.TempDir()), withFileSystem(ffs))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background())
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.False(t, f.AlreadyDone())
	assert.NoFileExists(t, filepath.Join(base, "ls", "0.bin"))
}

func TestFetch_Hierarchical(t *testing.T) {
	base := t.TempDir()
	f := newFetcher(t, base, &namedUnpacker{}, []source.Source{source.NewMemory("mem://d", []byte("abcd"))},
		WithLayout(layout.StrategyHierarchical))

	splits, err := f.Fetch(context.Background())
	require.NoError(t, err)

	entries := splits["ls"].Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "even/even_0.bin", entries[0].Path)
	assert.Equal(t, "odd/odd_0.bin", entries[1].Path)
	assert.Equal(t, "even/even_1.bin", entries[2].Path)
	assert.FileExists(t, filepath.Join(base, "ls", "odd", "odd_0.bin"))

	// Each split numbers its records independently.
	assert.Equal(t, "odd/odd_0.bin", splits["ts"].Entries()[0].Path)
}

func TestFetch_CodecMismatch(t *testing.T) {
	base := t.TempDir()
	src := source.NewMemory("mem://d", []byte("abc"))
	f := newFetcher(t, base, &byteUnpacker{}, []source.Source{src})
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	other, err := NewFetcher(Config[[]byte, int]{
		BaseDir:  base,
		Splits:   []string{"ls", "ts"},
		Sources:  []source.Source{src},
		Unpacker: &byteUnpacker{},
		Codec:    record.NewBlob[[]byte](nil),
	})
	require.NoError(t, err)
	_, err = other.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrCodecMismatch)
}

func TestFetch_Clean(t *testing.T) {
	base := t.TempDir()
	src := source.NewMemory("mem://d", []byte("abc"))
	f := newFetcher(t, base, &byteUnpacker{}, []source.Source{src})
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.Clean())
	assert.False(t, f.AlreadyDone())
	assert.NoDirExists(t, f.SplitDir("ls"))

	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.Attempts())
}

// rangedSource implements source.Downloader.
type rangedSource struct {
	*source.Memory
	data       []byte
	downloaded bool
}

func (s *rangedSource) Download(_ context.Context, w io.WriterAt) (int64, error) {
	s.downloaded = true
	half := len(s.data) / 2
	// Write the second half first, like concurrent ranged parts.
	if _, err := w.WriteAt(s.data[half:], int64(half)); err != nil {
		return 0, err
	}
	if _, err := w.WriteAt(s.data[:half], 0); err != nil {
		return 0, err
	}
	return int64(len(s.data)), nil
}

func TestFetch_Downloader(t *testing.T) {
	data := []byte("abcdefgh")
	src := &rangedSource{Memory: source.NewMemory("s3://b/k", nil), data: data}
	f := newFetcher(t, t.TempDir(), &byteUnpacker{}, []source.Source{src})

	splits, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, src.downloaded)
	assert.Equal(t, 0, src.Attempts(), "Open is not used for ranged downloads")

	rec, err := splits["ts"].At(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), rec.Value)
}

// stallingBody yields one chunk and then blocks until closed.
type stallingBody struct {
	sent    bool
	started chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func (b *stallingBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		close(b.started)
		return copy(p, "partial"), nil
	}
	<-b.closed
	return 0, errors.New("read on closed body")
}

func (b *stallingBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

type stallingSource struct {
	body *stallingBody
}

func (s *stallingSource) Location() string { return "mem://stalling" }

func (s *stallingSource) Open(context.Context) (io.ReadCloser, int64, error) {
	return s.body, -1, nil
}

func TestFetch_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	body := &stallingBody{started: make(chan struct{}), closed: make(chan struct{})}
	u := &byteUnpacker{}
	base := t.TempDir()
	tmpDir := t.TempDir()
	f, err := NewFetcher(Config[[]byte, int]{
		BaseDir:  base,
		Splits:   []string{"ls", "ts"},
		Sources:  []source.Source{&stallingSource{body: body}},
		Unpacker: u,
		Codec:    record.NewBytes(),
	}, WithTempDir(tmpDir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-body.started
		cancel()
	}()

	_, err = f.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, u.calls)
	assert.NoDirExists(t, filepath.Join(base, "ls"), "no registrator was opened")

	left, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, left, "partial download is removed")
}

func TestNewFetcher_Validation(t *testing.T) {
	valid := func() Config[[]byte, int] {
		return Config[[]byte, int]{
			BaseDir:  "data",
			Splits:   []string{"ls"},
			Unpacker: &byteUnpacker{},
			Codec:    record.NewBytes(),
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config[[]byte, int])
	}{
		{"NoBaseDir", func(c *Config[[]byte, int]) { c.BaseDir = "" }},
		{"NoSplits", func(c *Config[[]byte, int]) { c.Splits = nil }},
		{"DuplicateSplit", func(c *Config[[]byte, int]) { c.Splits = []string{"a", "a"} }},
		{"NestedSplit", func(c *Config[[]byte, int]) { c.Splits = []string{"a/b"} }},
		{"DotSplit", func(c *Config[[]byte, int]) { c.Splits = []string{".."} }},
		{"NoUnpacker", func(c *Config[[]byte, int]) { c.Unpacker = nil }},
		{"NoCodec", func(c *Config[[]byte, int]) { c.Codec = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := NewFetcher(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	f, err := NewFetcher(valid())
	require.NoError(t, err)
	assert.Equal(t, "data", f.BaseDir())
}

func TestSourceError(t *testing.T) {
	cause := fmt.Errorf("status 500")
	err := &SourceError{Location: "http://x", cause: cause}
	assert.Equal(t, "source http://x: status 500", err.Error())
	assert.ErrorIs(t, err, cause)
}
