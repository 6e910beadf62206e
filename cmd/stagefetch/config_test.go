package main

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stagefetch"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STAGEFETCH_BASE_DIR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, KindFolders, cfg.Kind)
	assert.Equal(t, "flat", cfg.Layout)
	assert.Equal(t, 5*time.Second, cfg.ProgressInterval)
	assert.Equal(t, "bytes", cfg.Folders.Codec)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagefetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_dir: /data/cifar
kind: cifar10
sources:
  - s3://datasets/cifar-10.tar.gz
  - https://example.com/cifar-10.tar.gz
layout: hierarchical
rate_limit: 10MB
progress_interval: 2s
cifar10:
  train_split: train
s3:
  region: eu-central-1
  use_path_style: true
  concurrency: 4
minio:
  endpoint: localhost:9000
`), 0o644))
	t.Setenv("MINIO_ACCESS_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/cifar", cfg.BaseDir)
	assert.Equal(t, KindCIFAR10, cfg.Kind)
	assert.Equal(t, []string{"s3://datasets/cifar-10.tar.gz", "https://example.com/cifar-10.tar.gz"}, cfg.Sources)
	assert.Equal(t, 2*time.Second, cfg.ProgressInterval)
	assert.Equal(t, "train", cfg.CIFAR10.TrainSplit)
	assert.Equal(t, "eu-central-1", cfg.S3.Region)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, 4, cfg.S3.Concurrency)
	assert.Equal(t, "env-key", cfg.MinIO.AccessKey)
	require.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.BaseDir = "/data/x"
	cfg.Splits = []string{"train", "test"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseDir, loaded.BaseDir)
	assert.Equal(t, cfg.Splits, loaded.Splits)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.BaseDir = "/data"
		cfg.Splits = []string{"train"}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"ok", func(c *Config) {}, ""},
		{"no base dir", func(c *Config) { c.BaseDir = "" }, "base_dir"},
		{"unknown kind", func(c *Config) { c.Kind = "mnist" }, "unknown kind"},
		{"no splits", func(c *Config) { c.Splits = nil }, "splits"},
		{"bad layout", func(c *Config) { c.Layout = "tree" }, "unknown strategy"},
		{"bad rate", func(c *Config) { c.RateLimit = "fast" }, "rate_limit"},
		{"cifar needs no splits", func(c *Config) { c.Kind = KindCIFAR10; c.Splits = nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestSplitNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Folders.Splits = map[string]string{"training": "train", "validation": "test", "extra": "train"}
	assert.Equal(t, []string{"test", "train"}, cfg.SplitNames())

	cfg.Splits = []string{"b", "a"}
	assert.Equal(t, []string{"b", "a"}, cfg.SplitNames())
}

func writeFoldersArchive(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range map[string]string{
		"ds/train/cat/1.txt": "cat one",
		"ds/train/dog/1.txt": "dog one",
		"ds/train/cat/2.txt": "cat two",
		"ds/test/dog/1.txt":  "dog test",
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestFoldersDataset(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "ds.tar")
	writeFoldersArchive(t, archive)

	cfg := DefaultConfig()
	cfg.BaseDir = filepath.Join(dir, "data")
	cfg.TempDir = dir
	cfg.Splits = []string{"train", "test"}
	cfg.Folders.StripComponents = 1
	cfg.Folders.Codec = "bytes+zstd"
	cfg.Layout = "hierarchical"
	require.NoError(t, cfg.Validate())

	sources, err := newResolver(t.Context(), cfg).ResolveAll([]string{filepath.Join(dir, "missing.tar"), archive})
	require.NoError(t, err)

	ds, err := newDataset(cfg, sources, stagefetch.WithLogger(stagefetch.NoopLogger()))
	require.NoError(t, err)
	assert.False(t, ds.Done())

	var out bytes.Buffer
	require.NoError(t, ds.Fetch(t.Context(), &out))
	assert.True(t, ds.Done())
	assert.Contains(t, out.String(), "train")
	assert.FileExists(t, filepath.Join(cfg.BaseDir, "train", "0meta"))
	assert.FileExists(t, filepath.Join(cfg.BaseDir, "test", "0meta"))

	// info needs no sources.
	offline, err := newDataset(cfg, nil)
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, offline.Info(&out))
	assert.Regexp(t, `train\s+3\s+2`, out.String())
	assert.Regexp(t, `test\s+1\s+1`, out.String())
	assert.Regexp(t, `train\s+cat\s+2`, out.String())

	require.NoError(t, offline.Clean())
	assert.False(t, offline.Done())
	assert.NoDirExists(t, filepath.Join(cfg.BaseDir, "train"))
}

func TestNewDatasetErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDir = t.TempDir()
	cfg.Splits = []string{"train"}

	cfg.Folders.Codec = "nope"
	_, err := newDataset(cfg, nil)
	assert.ErrorContains(t, err, "unknown codec")

	cfg.Folders.Codec = "bytes"
	cfg.Kind = "mnist"
	_, err = newDataset(cfg, nil)
	assert.ErrorContains(t, err, "unknown kind")
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = newLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = newLogger(LogConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "unknown log format")
}

func TestResolverSchemes(t *testing.T) {
	cfg := DefaultConfig()
	r := newResolver(t.Context(), cfg)

	// minio needs an endpoint before a client can be built.
	_, err := r.Resolve("minio://bucket/key")
	assert.ErrorContains(t, err, "minio.endpoint")

	_, err = r.Resolve("s3://bucket")
	assert.Error(t, err)

	cfg.MinIO.Endpoint = "localhost:9000"
	src, err := newResolver(t.Context(), cfg).Resolve("minio://bucket/path/data.tar")
	require.NoError(t, err)
	assert.Equal(t, "minio://bucket/path/data.tar", src.Location())
}
