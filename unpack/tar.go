package unpack

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrSkipRest stops Walk early without an error.
var ErrSkipRest = errors.New("unpack: skip rest of archive")

// WalkFunc is called for each regular file of a tar archive. name is the
// cleaned slash-separated member name. r is valid until WalkFunc returns.
type WalkFunc func(name string, hdr *tar.Header, r io.Reader) error

// Walk decompresses a (possibly compressed) tar archive and calls fn for
// every regular file in archive order.
func Walk(ctx context.Context, a *Archive, fn WalkFunc) error {
	rc, _, err := Decompress(a.Reader())
	if err != nil {
		return err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("unpack: read tar %s: %w", a.Location(), err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if err := fn(name, hdr, tr); err != nil {
			if errors.Is(err, ErrSkipRest) {
				return nil
			}
			return err
		}
	}
}
