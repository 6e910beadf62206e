package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/hupe1980/stagefetch"
	"github.com/hupe1980/stagefetch/codec"
	"github.com/hupe1980/stagefetch/layout"
	"github.com/hupe1980/stagefetch/record"
	"github.com/hupe1980/stagefetch/source"
	"github.com/hupe1980/stagefetch/unpack"
	"github.com/hupe1980/stagefetch/unpack/cifar"
)

// dataset hides the payload and label types of a configured fetcher.
type dataset interface {
	Fetch(ctx context.Context, w io.Writer) error
	Info(w io.Writer) error
	Clean() error
	Done() bool
}

type typedDataset[R any, L comparable] struct {
	f *stagefetch.Fetcher[R, L]
}

func (d typedDataset[R, L]) Fetch(ctx context.Context, w io.Writer) error {
	splits, err := d.f.Fetch(ctx)
	if err != nil {
		return err
	}
	return printSummary(w, d.f.BaseDir(), splits)
}

func (d typedDataset[R, L]) Info(w io.Writer) error {
	splits, err := d.f.Load()
	if err != nil {
		return err
	}
	if err := printSummary(w, d.f.BaseDir(), splits); err != nil {
		return err
	}
	return printLabels(w, splits)
}

func (d typedDataset[R, L]) Clean() error { return d.f.Clean() }

func (d typedDataset[R, L]) Done() bool { return d.f.AlreadyDone() }

func printSummary[R any, L comparable](w io.Writer, base string, splits stagefetch.Splits[R, L]) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "dataset\t%s\n", base)
	fmt.Fprintln(tw, "SPLIT\tRECORDS\tLABELS")
	for _, name := range slices.Sorted(maps.Keys(splits)) {
		v := splits[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, v.Len(), len(v.Counts()))
	}
	return tw.Flush()
}

func printLabels[R any, L comparable](w io.Writer, splits stagefetch.Splits[R, L]) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPLIT\tLABEL\tCOUNT")
	for _, name := range slices.Sorted(maps.Keys(splits)) {
		counts := splits[name].Counts()
		labels := slices.Collect(maps.Keys(counts))
		slices.SortFunc(labels, func(a, b L) int {
			return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
		})
		for _, l := range labels {
			fmt.Fprintf(tw, "%s\t%v\t%d\n", name, l, counts[l])
		}
	}
	return tw.Flush()
}

// newDataset builds the fetcher cfg.Kind describes. sources may be nil for
// commands that never download.
func newDataset(cfg *Config, sources []source.Source, optFns ...stagefetch.Option) (dataset, error) {
	strategy, err := layout.ParseStrategy(cfg.Layout)
	if err != nil {
		return nil, err
	}
	rate, err := parseBytes(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate_limit: %w", err)
	}
	opts := append([]stagefetch.Option{
		stagefetch.WithLayout(strategy),
		stagefetch.WithTempDir(cfg.TempDir),
		stagefetch.WithRateLimit(rate),
		stagefetch.WithProgressInterval(cfg.ProgressInterval),
	}, optFns...)

	switch cfg.Kind {
	case KindFolders:
		c, ok := codec.ByName(cfg.Folders.Codec)
		if !ok {
			return nil, fmt.Errorf("folders.codec: unknown codec %q", cfg.Folders.Codec)
		}
		maxSize, err := parseBytes(cfg.Folders.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("folders.max_file_size: %w", err)
		}
		f, err := stagefetch.NewFetcher(stagefetch.Config[[]byte, string]{
			BaseDir: cfg.BaseDir,
			Splits:  cfg.SplitNames(),
			Sources: sources,
			Unpacker: &unpack.Folders{
				StripComponents: cfg.Folders.StripComponents,
				Splits:          cfg.Folders.Splits,
				MaxFileSize:     maxSize,
			},
			Codec: record.NewBlob[[]byte](c),
		}, opts...)
		if err != nil {
			return nil, err
		}
		return typedDataset[[]byte, string]{f: f}, nil

	case KindCIFAR10:
		u := cifar.New(func(o *cifar.Options) {
			if cfg.CIFAR10.TrainSplit != "" {
				o.TrainSplit = cfg.CIFAR10.TrainSplit
			}
			if cfg.CIFAR10.TestSplit != "" {
				o.TestSplit = cfg.CIFAR10.TestSplit
			}
			o.TempDir = cfg.TempDir
		})
		f, err := stagefetch.NewFetcher(stagefetch.Config[*record.Array, int]{
			BaseDir:  cfg.BaseDir,
			Splits:   u.Splits(),
			Sources:  sources,
			Unpacker: u,
			Codec:    record.NewArrayCodec(),
		}, opts...)
		if err != nil {
			return nil, err
		}
		return typedDataset[*record.Array, int]{f: f}, nil

	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.Kind)
	}
}
