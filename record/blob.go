package record

import (
	"fmt"
	"io"

	"github.com/hupe1980/stagefetch/codec"
	"github.com/hupe1980/stagefetch/internal/fs"
)

// BlobExt is the extension of files written by Blob.
const BlobExt = ".bin"

// Blob is the generic binary codec: a record is stored as the opaque bytes
// produced by a codec.Codec.
type Blob[R any] struct {
	codec codec.Codec
	opts  Options
}

// NewBlob creates a Blob codec. A nil codec selects codec.Default.
func NewBlob[R any](c codec.Codec, optFns ...func(o *Options)) *Blob[R] {
	if c == nil {
		c = codec.Default
	}
	return &Blob[R]{codec: c, opts: applyOptions(optFns)}
}

// NewBytes creates a Blob codec storing []byte payloads verbatim.
func NewBytes(optFns ...func(o *Options)) *Blob[[]byte] {
	return NewBlob[[]byte](codec.Bytes{}, optFns...)
}

// Save implements Saver.
func (b *Blob[R]) Save(value R, base string) (string, error) {
	data, err := b.codec.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("record: marshal with %s: %w", b.codec.Name(), err)
	}
	path := base + BlobExt
	err = writeExclusive(b.opts.FS, path, !b.opts.NoSync, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// Load implements Loader.
func (b *Blob[R]) Load(path string) (R, error) {
	var v R
	data, err := fs.ReadFile(b.opts.FS, path)
	if err != nil {
		return v, err
	}
	if err := b.codec.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("record: unmarshal %s with %s: %w", path, b.codec.Name(), err)
	}
	return v, nil
}

// Name returns "blob:<codec>".
func (b *Blob[R]) Name() string {
	return "blob:" + b.codec.Name()
}
