package record

import (
	"fmt"
)

// NoLabel is the label type of unlabeled datasets.
type NoLabel = struct{}

// Record is a payload together with its label.
type Record[R any, L comparable] struct {
	Value R
	Label L
}

// New creates a labeled record.
func New[R any, L comparable](value R, label L) Record[R, L] {
	return Record[R, L]{Value: value, Label: label}
}

// Unlabeled creates a record for a dataset without labels.
func Unlabeled[R any](value R) Record[R, NoLabel] {
	return Record[R, NoLabel]{Value: value}
}

func (r Record[R, L]) String() string {
	return fmt.Sprintf("(%v, %v)", r.Label, r.Value)
}

// Entry is the on-disk handle of a persisted record.
//
// Path is slash separated and relative to the split folder; it includes the
// extension appended by the codec.
type Entry[L comparable] struct {
	Path  string `json:"path"`
	Label L      `json:"label"`
}

func (e Entry[L]) String() string {
	return fmt.Sprintf("(%v, %s)", e.Label, e.Path)
}

// Saver persists one value.
type Saver[R any] interface {
	// Save writes value to base plus the codec's extension, creating missing
	// parent directories, and returns the path it wrote.
	Save(value R, base string) (string, error)
}

// Loader reconstructs one value from a path returned by Save.
type Loader[R any] interface {
	Load(path string) (R, error)
}

// Codec is a record codec for one payload type.
type Codec[R any] interface {
	Saver[R]
	Loader[R]
	// Name is recorded in manifests so a dataset is read back with the codec
	// that wrote it.
	Name() string
}
