package registrator

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hupe1980/stagefetch/internal/fs"
	"github.com/hupe1980/stagefetch/manifest"
	"github.com/hupe1980/stagefetch/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSplits(t *testing.T, base string, opts ...Option) *Multi[[]byte, string] {
	t.Helper()
	m, err := NewMulti(newBytes(t, base, "ls", opts...), newBytes(t, base, "ts", opts...))
	require.NoError(t, err)
	return m
}

func TestNewMulti(t *testing.T) {
	_, err := NewMulti[[]byte, string]()
	assert.ErrorIs(t, err, ErrNoRegistrators)

	base := t.TempDir()
	_, err = NewMulti(newBytes(t, base, "a"), newBytes(t, base, "a"))
	assert.ErrorIs(t, err, ErrDuplicateSplit)
}

func TestMulti_TwoSplits(t *testing.T) {
	base := t.TempDir()
	m := newSplits(t, base)

	assert.Equal(t, []string{"ls", "ts"}, m.Names())
	assert.Equal(t, "ls", m.Current())
	assert.False(t, m.AlreadyDumped())

	err := m.Do(func() error {
		for i := 0; i < 5; i++ {
			if err := m.Register(record.New([]byte{byte(i)}, "l")); err != nil {
				return err
			}
		}
		prev, err := m.Switch("ts")
		if err != nil {
			return err
		}
		assert.Equal(t, "ls", prev)
		return m.Register(record.New([]byte("t"), "l"))
	})
	require.NoError(t, err)
	assert.True(t, m.AlreadyDumped())

	ls, ok := m.Registrator("ls")
	require.True(t, ok)
	entries, err := ls.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	ts, ok := m.Registrator("ts")
	require.True(t, ok)
	entries, err = ts.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, ok = m.Registrator("nope")
	assert.False(t, ok)
}

func TestMulti_SwitchUnknown(t *testing.T) {
	m := newSplits(t, t.TempDir())
	_, err := m.Switch("validation")
	assert.ErrorIs(t, err, ErrUnknownSplit)
	assert.Equal(t, "ls", m.Current())
}

func TestMulti_AlreadyDumpedIsConjunction(t *testing.T) {
	base := t.TempDir()
	m := newSplits(t, base)
	ls, _ := m.Registrator("ls")
	require.NoError(t, ls.Do(func() error { return nil }))

	assert.True(t, ls.AlreadyDumped())
	assert.False(t, m.AlreadyDumped())
}

func TestMulti_OpenFailureAbortsOpened(t *testing.T) {
	base := t.TempDir()
	m := newSplits(t, base)
	ts, _ := m.Registrator("ts")
	require.NoError(t, ts.Open())

	assert.ErrorIs(t, m.Open(), ErrAlreadyOpen)
	ls, _ := m.Registrator("ls")
	assert.False(t, ls.IsOpen())
}

func TestMulti_DoAbortsAll(t *testing.T) {
	base := t.TempDir()
	m := newSplits(t, base)
	boom := errors.New("boom")

	err := m.Do(func() error {
		require.NoError(t, m.Register(record.New([]byte("a"), "a")))
		_, _ = m.Switch("ts")
		require.NoError(t, m.Register(record.New([]byte("b"), "b")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, Dumped(base, "ls"))
	assert.False(t, Dumped(base, "ts"))
}

func TestMulti_CloseCollectsEveryFailure(t *testing.T) {
	base := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	m := newSplits(t, base, WithFileSystem(ffs))
	ffs.AddRule(filepath.Join("ls", manifest.FileName), fs.Fault{FailOnRename: true})
	ffs.AddRule(filepath.Join("ts", manifest.FileName), fs.Fault{FailOnRename: true})

	require.NoError(t, m.Open())
	err := m.Close()

	var ce *CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"ls", "ts"}, ce.Splits)
	assert.Len(t, ce.Errs, 2)
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Contains(t, err.Error(), "first ls")

	for _, name := range m.Names() {
		r, _ := m.Registrator(name)
		assert.False(t, r.IsOpen())
	}
}
