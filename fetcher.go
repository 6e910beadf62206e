package stagefetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/stagefetch/layout"
	"github.com/hupe1980/stagefetch/manifest"
	"github.com/hupe1980/stagefetch/record"
	"github.com/hupe1980/stagefetch/registrator"
	"github.com/hupe1980/stagefetch/source"
	"github.com/hupe1980/stagefetch/unpack"
	"github.com/hupe1980/stagefetch/view"
)

// Config describes one dataset.
type Config[R any, L comparable] struct {
	// BaseDir holds one folder per split.
	BaseDir string
	// Splits names the split folders the unpacker fills.
	Splits []string
	// Sources are tried in order.
	Sources []source.Source
	// Unpacker turns the archive into records.
	Unpacker unpack.Unpacker[R, L]
	// Codec stores and loads one record.
	Codec record.Codec[R]
}

// Splits maps split names to their views.
type Splits[R any, L comparable] map[string]*view.Labeled[R, L]

// Fetcher downloads, stages and loads one dataset.
type Fetcher[R any, L comparable] struct {
	fetcherCore
	unpacker unpack.Unpacker[R, L]
	codec    record.Codec[R]
}

// NewFetcher validates cfg and creates a Fetcher.
func NewFetcher[R any, L comparable](cfg Config[R, L], optFns ...Option) (*Fetcher[R, L], error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("%w: empty base dir", ErrInvalidConfig)
	}
	if len(cfg.Splits) == 0 {
		return nil, fmt.Errorf("%w: no splits", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(cfg.Splits))
	for _, s := range cfg.Splits {
		if s == "" || s != filepath.Base(s) || s == "." || s == ".." {
			return nil, fmt.Errorf("%w: bad split name %q", ErrInvalidConfig, s)
		}
		if seen[s] {
			return nil, fmt.Errorf("%w: duplicate split %q", ErrInvalidConfig, s)
		}
		seen[s] = true
	}
	if cfg.Unpacker == nil {
		return nil, fmt.Errorf("%w: no unpacker", ErrInvalidConfig)
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("%w: no codec", ErrInvalidConfig)
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Fetcher[R, L]{
		fetcherCore: fetcherCore{
			baseDir: cfg.BaseDir,
			splits:  append([]string(nil), cfg.Splits...),
			sources: append([]source.Source(nil), cfg.Sources...),
			opts:    opts,
		},
		unpacker: cfg.Unpacker,
		codec:    cfg.Codec,
	}, nil
}

// BaseDir returns the dataset folder.
func (f *Fetcher[R, L]) BaseDir() string { return f.baseDir }

// SplitDir returns the folder of split.
func (f *Fetcher[R, L]) SplitDir(split string) string {
	return filepath.Join(f.baseDir, split)
}

// AlreadyDone reports whether every split has a committed manifest.
func (f *Fetcher[R, L]) AlreadyDone() bool {
	for _, s := range f.splits {
		if !manifest.NewStore[L](f.opts.fs, f.SplitDir(s)).Exists() {
			return false
		}
	}
	return true
}

// Fetch returns the views of every split, downloading and staging the
// archive first unless a previous run completed.
func (f *Fetcher[R, L]) Fetch(ctx context.Context) (Splits[R, L], error) {
	start := time.Now()
	log := f.opts.logger.WithRunID(uuid.NewString()).WithDataset(f.baseDir)

	if f.AlreadyDone() {
		splits, err := f.Load()
		f.opts.metricsCollector.RecordFetch(true, time.Since(start), err)
		log.LogFetch(ctx, true, time.Since(start), err)
		return splits, err
	}

	splits, err := f.fetch(ctx, log)
	f.opts.metricsCollector.RecordFetch(false, time.Since(start), err)
	log.LogFetch(ctx, false, time.Since(start), err)
	return splits, err
}

func (f *Fetcher[R, L]) fetch(ctx context.Context, log *Logger) (Splits[R, L], error) {
	tmp, src, n, err := f.download(ctx, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	archive := unpack.NewArchive(src.Location(), tmp, n)
	if err := f.stage(ctx, archive, log); err != nil {
		return nil, err
	}
	return f.Load()
}

// stage unpacks the archive into freshly emptied split folders.
func (f *Fetcher[R, L]) stage(ctx context.Context, archive *unpack.Archive, log *Logger) error {
	var ns layout.Namespace[L]
	if nr, ok := f.unpacker.(unpack.NamespaceReader[L]); ok {
		var err error
		if ns, err = nr.Namespace(ctx, archive); err != nil {
			return fmt.Errorf("read label namespace: %w", err)
		}
	}

	regs := make([]*registrator.Registrator[R, L], len(f.splits))
	for i, s := range f.splits {
		regs[i] = registrator.New(f.baseDir, s, f.codec, layout.New(f.opts.layout, ns),
			registrator.WithFileSystem(f.opts.fs),
			registrator.WithLogger(log.Logger),
		)
		// Leftovers of an earlier failed run would mix with the new records.
		if err := regs[i].Clean(); err != nil {
			return err
		}
	}
	multi, err := registrator.NewMulti(regs...)
	if err != nil {
		return err
	}

	sink := &meteredSink[R, L]{Multi: multi, metrics: f.opts.metricsCollector}
	if err := multi.Do(func() error {
		return f.unpacker.Unpack(ctx, archive, sink)
	}); err != nil {
		return err
	}

	for _, r := range regs {
		entries, err := r.Entries()
		if err != nil {
			return err
		}
		log.LogStore(ctx, r.Name(), len(entries))
	}
	return nil
}

// Load returns the views of every split without any network access.
func (f *Fetcher[R, L]) Load() (Splits[R, L], error) {
	out := make(Splits[R, L], len(f.splits))
	for _, s := range f.splits {
		dir := f.SplitDir(s)
		m, err := manifest.NewStore[L](f.opts.fs, dir).Load()
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%w: split %s", ErrNotFetched, s)
		}
		if err != nil {
			return nil, err
		}
		if err := m.CheckCodec(f.codec.Name()); err != nil {
			return nil, fmt.Errorf("split %s: %w", s, err)
		}
		out[s] = view.NewLabeled(dir, m.Entries, record.Loader[R](f.codec))
	}
	return out, nil
}

// Clean removes every split folder.
func (f *Fetcher[R, L]) Clean() error {
	var errs []error
	for _, s := range f.splits {
		if err := f.opts.fs.RemoveAll(f.SplitDir(s)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// meteredSink records every registration.
type meteredSink[R any, L comparable] struct {
	*registrator.Multi[R, L]
	metrics MetricsCollector
}

func (s *meteredSink[R, L]) Register(rec record.Record[R, L]) error {
	err := s.Multi.Register(rec)
	s.metrics.RecordRegistration(s.Multi.Current(), err)
	return err
}
