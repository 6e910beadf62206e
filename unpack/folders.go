package unpack

import (
	"archive/tar"
	"context"
	"io"
	"strings"

	"github.com/hupe1980/stagefetch/record"
)

var _ Unpacker[[]byte, string] = (*Folders)(nil)

// Folders unpacks tar archives laid out as <split>/<label>/<file>. Every
// file becomes a []byte record labeled with its folder name.
type Folders struct {
	// StripComponents drops leading path elements, like tar --strip-components.
	StripComponents int
	// Splits maps archive folder names to split names. When nil, folder names
	// are used as split names. Folders missing from a non-nil map are skipped.
	Splits map[string]string
	// MaxFileSize skips larger members. Zero means no limit.
	MaxFileSize int64
}

// Unpack implements Unpacker.
func (f *Folders) Unpack(ctx context.Context, a *Archive, sink Sink[[]byte, string]) error {
	current := ""
	return Walk(ctx, a, func(name string, hdr *tar.Header, r io.Reader) error {
		parts := strings.Split(name, "/")
		if len(parts) < f.StripComponents+3 {
			return nil
		}
		parts = parts[f.StripComponents:]
		split, label := parts[0], parts[1]
		if strings.HasPrefix(parts[len(parts)-1], ".") {
			return nil
		}
		if f.Splits != nil {
			mapped, ok := f.Splits[split]
			if !ok {
				return nil
			}
			split = mapped
		}
		if f.MaxFileSize > 0 && hdr.Size > f.MaxFileSize {
			return nil
		}

		if split != current {
			if _, err := sink.Switch(split); err != nil {
				return err
			}
			current = split
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sink.Register(record.New(data, label))
	})
}
