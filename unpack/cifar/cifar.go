// Package cifar unpacks the CIFAR-10 binary distribution
// (cifar-10-binary.tar.gz).
//
// The archive holds five training batches, one test batch and a text file
// with the ten class names. Each batch is a sequence of 3073-byte rows: one
// label byte followed by a 32x32 image stored as three color planes. Images
// are registered as 32x32x3 uint8 arrays in height, width, channel order.
package cifar

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hupe1980/stagefetch/layout"
	"github.com/hupe1980/stagefetch/record"
	"github.com/hupe1980/stagefetch/unpack"
)

const (
	Height   = 32
	Width    = 32
	Channels = 3

	ImageSize = Height * Width * Channels
	RowSize   = 1 + ImageSize

	DefaultTrainSplit = "cifar10_ls"
	DefaultTestSplit  = "cifar10_ts"

	MetaFile = "batches.meta.txt"
)

// TrainBatches lists the training batch files in registration order.
var TrainBatches = []string{
	"data_batch_1.bin",
	"data_batch_2.bin",
	"data_batch_3.bin",
	"data_batch_4.bin",
	"data_batch_5.bin",
}

// TestBatch is the test batch file.
const TestBatch = "test_batch.bin"

// ErrMissingBatch is returned when the archive lacks a batch file.
var ErrMissingBatch = errors.New("cifar: missing batch")

var (
	_ unpack.Unpacker[*record.Array, int] = (*Unpacker)(nil)
	_ unpack.NamespaceReader[int]         = (*Unpacker)(nil)
)

// Options configures an Unpacker.
type Options struct {
	TrainSplit string
	TestSplit  string
	// TempDir is the parent of the scratch directory batches are extracted to.
	TempDir string
}

// Unpacker implements unpack.Unpacker for CIFAR-10.
type Unpacker struct {
	opts Options
}

// New creates a CIFAR-10 unpacker.
func New(optFns ...func(o *Options)) *Unpacker {
	opts := Options{
		TrainSplit: DefaultTrainSplit,
		TestSplit:  DefaultTestSplit,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Unpacker{opts: opts}
}

// Splits returns the training and test split names.
func (u *Unpacker) Splits() []string {
	return []string{u.opts.TrainSplit, u.opts.TestSplit}
}

// Namespace reads the class names. Labels index the names in file order.
func (u *Unpacker) Namespace(ctx context.Context, a *unpack.Archive) (layout.Namespace[int], error) {
	var names []string
	err := unpack.Walk(ctx, a, func(name string, _ *tar.Header, r io.Reader) error {
		if path.Base(name) != MetaFile {
			return nil
		}
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				names = append(names, line)
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		return unpack.ErrSkipRest
	})
	if err != nil {
		return layout.Namespace[int]{}, err
	}
	return layout.NamespaceOf(names), nil
}

// Unpack implements unpack.Unpacker. Batches are extracted to a scratch
// directory and registered in batch order, training batches first.
func (u *Unpacker) Unpack(ctx context.Context, a *unpack.Archive, sink unpack.Sink[*record.Array, int]) error {
	scratch, err := unpack.NewScratch(u.opts.TempDir, "cifar-*")
	if err != nil {
		return err
	}
	defer scratch.Close()

	wanted := make(map[string]bool, len(TrainBatches)+1)
	for _, b := range TrainBatches {
		wanted[b] = true
	}
	wanted[TestBatch] = true

	err = unpack.Walk(ctx, a, func(name string, _ *tar.Header, r io.Reader) error {
		base := path.Base(name)
		if !wanted[base] {
			return nil
		}
		if _, err := scratch.Extract(base, r); err != nil {
			return err
		}
		delete(wanted, base)
		if len(wanted) == 0 {
			return unpack.ErrSkipRest
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, b := range append(TrainBatches[:len(TrainBatches):len(TrainBatches)], TestBatch) {
		if wanted[b] {
			return fmt.Errorf("%w: %s", ErrMissingBatch, b)
		}
	}

	if _, err := sink.Switch(u.opts.TrainSplit); err != nil {
		return err
	}
	for _, b := range TrainBatches {
		if err := u.registerBatch(ctx, scratch, b, sink); err != nil {
			return err
		}
	}
	if _, err := sink.Switch(u.opts.TestSplit); err != nil {
		return err
	}
	return u.registerBatch(ctx, scratch, TestBatch, sink)
}

func (u *Unpacker) registerBatch(ctx context.Context, scratch *unpack.Scratch, name string, sink unpack.Sink[*record.Array, int]) error {
	f, err := scratch.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	return ReadBatch(ctx, bufio.NewReaderSize(f, RowSize*16), func(img *record.Array, label int) error {
		return sink.Register(record.New(img, label))
	})
}

// ReadBatch decodes the rows of one batch file and calls fn for each image.
func ReadBatch(ctx context.Context, r io.Reader, fn func(img *record.Array, label int) error) error {
	row := make([]byte, RowSize)
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.ReadFull(r, row)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cifar: row %d: %w", i, err)
		}
		if err := fn(Decode(row[1:]), int(row[0])); err != nil {
			return err
		}
	}
}

// Decode converts one planar image (all red, then green, then blue values)
// into a height, width, channel array.
func Decode(planar []byte) *record.Array {
	const plane = Height * Width
	data := make([]byte, ImageSize)
	for p := 0; p < plane; p++ {
		for c := 0; c < Channels; c++ {
			data[p*Channels+c] = planar[c*plane+p]
		}
	}
	return &record.Array{
		DType: record.Uint8,
		Shape: []int{Height, Width, Channels},
		Data:  data,
	}
}
