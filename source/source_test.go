package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stagefetch/internal/fs"
)

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/archive.tar":
			assert.Equal(t, "token", r.Header.Get("X-Auth"))
			_, _ = w.Write([]byte("archive-bytes"))
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	withAuth := func(o *HTTPOptions) {
		o.Header = http.Header{"X-Auth": []string{"token"}}
	}

	t.Run("OK", func(t *testing.T) {
		s := NewHTTP(srv.URL+"/archive.tar", withAuth)
		assert.Equal(t, srv.URL+"/archive.tar", s.Location())

		rc, size, err := s.Open(context.Background())
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "archive-bytes", string(data))
		assert.Equal(t, int64(len(data)), size)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, _, err := NewHTTP(srv.URL + "/missing").Open(context.Background())
		assert.True(t, IsUnavailable(err))
		var ue *UnavailableError
		require.ErrorAs(t, err, &ue)
		assert.Contains(t, ue.Reason, "404")
	})

	t.Run("Forbidden", func(t *testing.T) {
		_, _, err := NewHTTP(srv.URL + "/forbidden").Open(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("ServerErrorIsFatal", func(t *testing.T) {
		_, _, err := NewHTTP(srv.URL + "/broken").Open(context.Background())
		assert.False(t, IsUnavailable(err))
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	})

	t.Run("CanceledIsFatal", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := NewHTTP(srv.URL + "/archive.tar").Open(ctx)
		require.Error(t, err)
		assert.False(t, IsUnavailable(err))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHTTP_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, _, err := NewHTTP(addr + "/archive.tar").Open(context.Background())
	assert.True(t, IsUnavailable(err), "got %v", err)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	rc, size, err := NewFile(path, nil).Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
	require.NoError(t, rc.Close())

	_, _, err = NewFile(filepath.Join(dir, "missing"), nil).Open(context.Background())
	assert.True(t, IsUnavailable(err))

	_, _, err = NewFile(dir, nil).Open(context.Background())
	assert.True(t, IsUnavailable(err))

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("archive.tar", fs.Fault{FailOnOpen: true})
	_, _, err = NewFile(path, ffs).Open(context.Background())
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.False(t, IsUnavailable(err))
}

func TestMemory(t *testing.T) {
	m := NewMemory("mem://a", []byte("abc"))
	rc, size, err := m.Open(context.Background())
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, int64(3), size)

	boom := errors.New("boom")
	f := NewFailing("mem://b", boom)
	_, _, err = f.Open(context.Background())
	assert.ErrorIs(t, err, boom)
	_, _, _ = f.Open(context.Background())
	assert.Equal(t, 2, f.Attempts())
	assert.Equal(t, 1, m.Attempts())
}

func TestUnavailableError(t *testing.T) {
	cause := errors.New("no route")
	err := Unavailable("http://x", "unreachable", cause)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "source http://x unavailable: unreachable: no route", err.Error())
	assert.Equal(t, "source y unavailable: gone", Unavailable("y", "gone", nil).Error())
	assert.False(t, IsUnavailable(cause))
}

func TestResolver(t *testing.T) {
	r := NewResolver()

	s, err := r.Resolve("/data/archive.tar")
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	s, err = r.Resolve("file:///data/archive.tar")
	require.NoError(t, err)
	assert.Equal(t, "/data/archive.tar", s.Location())

	s, err = r.Resolve("https://example.com/cifar.tar.gz")
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, s)

	_, err = r.Resolve("gopher://example.com/x")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	r.Register("mem", func(u *url.URL) (Source, error) {
		return NewMemory(u.String(), nil), nil
	})
	all, err := r.ResolveAll([]string{"mem://a", "MEM://b"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "mem://a", all[0].Location())
}

func TestBucketKey(t *testing.T) {
	u, _ := url.Parse("s3://datasets/cifar/cifar-10-binary.tar.gz")
	bucket, key, err := BucketKey(u)
	require.NoError(t, err)
	assert.Equal(t, "datasets", bucket)
	assert.Equal(t, "cifar/cifar-10-binary.tar.gz", key)

	u, _ = url.Parse("s3://datasets")
	_, _, err = BucketKey(u)
	assert.Error(t, err)
}
