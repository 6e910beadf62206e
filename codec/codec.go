// Package codec centralizes value encoding for record payloads and manifests.
//
// Codec selection is a breaking-change boundary: records written with one
// codec cannot be decoded by another. Manifests store the record codec name
// so a dataset is never read back with the wrong codec.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Compressed codecs are named "<inner>+<algorithm>", e.g. "bytes+zstd".
func ByName(name string) (Codec, bool) {
	if inner, algo, ok := strings.Cut(name, "+"); ok {
		c, found := ByName(inner)
		if !found {
			return nil, false
		}
		a, found := compressionByName(algo)
		if !found {
			return nil, false
		}
		return Compressed{Inner: c, Algorithm: a}, true
	}

	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "bytes":
		return Bytes{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
