package view

import (
	"fmt"
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/stagefetch/record"
)

// Labeled is a view over labeled records. It is safe for concurrent reads.
type Labeled[R any, L comparable] struct {
	data   *Dataset[R]
	labels []L

	once  sync.Once
	index map[L]*roaring.Bitmap
}

// NewLabeled creates a view over entries, whose paths are relative to dir.
func NewLabeled[R any, L comparable](dir string, entries []record.Entry[L], loader record.Loader[R]) *Labeled[R, L] {
	paths := make([]string, len(entries))
	labels := make([]L, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		labels[i] = e.Label
	}
	return &Labeled[R, L]{data: New(dir, paths, loader), labels: labels}
}

// Dir returns the split folder.
func (l *Labeled[R, L]) Dir() string { return l.data.Dir() }

// Len returns the number of records.
func (l *Labeled[R, L]) Len() int { return len(l.labels) }

// Path returns the file path of record i.
func (l *Labeled[R, L]) Path(i int) (string, error) { return l.data.Path(i) }

// At loads record i together with its label.
func (l *Labeled[R, L]) At(i int) (record.Record[R, L], error) {
	v, err := l.data.At(i)
	if err != nil {
		return record.Record[R, L]{}, err
	}
	return record.New(v, l.labels[i]), nil
}

// Label returns the label of record i without loading it.
func (l *Labeled[R, L]) Label(i int) (L, error) {
	if i < 0 || i >= len(l.labels) {
		var zero L
		return zero, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.labels))
	}
	return l.labels[i], nil
}

// Labels returns a copy of all labels in order.
func (l *Labeled[R, L]) Labels() []L {
	out := make([]L, len(l.labels))
	copy(out, l.labels)
	return out
}

// Entries returns a copy of the entries in order.
func (l *Labeled[R, L]) Entries() []record.Entry[L] {
	out := make([]record.Entry[L], len(l.labels))
	for i := range l.labels {
		out[i] = record.Entry[L]{Path: l.data.paths[i], Label: l.labels[i]}
	}
	return out
}

// Slice returns the view of records [i, j). It panics if the bounds are
// invalid.
func (l *Labeled[R, L]) Slice(i, j int) *Labeled[R, L] {
	checkBounds(i, j, len(l.labels))
	return &Labeled[R, L]{data: l.data.Slice(i, j), labels: l.labels[i:j:j]}
}

// Unzip splits the view into its payloads and labels; labels[i] belongs to
// the record at index i of the returned dataset.
func (l *Labeled[R, L]) Unzip() (*Dataset[R], []L) {
	return l.data, l.Labels()
}

// All iterates over the records in order.
func (l *Labeled[R, L]) All() iter.Seq2[record.Record[R, L], error] {
	return func(yield func(record.Record[R, L], error) bool) {
		for i := range l.labels {
			if !yield(l.At(i)) {
				return
			}
		}
	}
}

func (l *Labeled[R, L]) buildIndex() {
	l.once.Do(func() {
		l.index = make(map[L]*roaring.Bitmap)
		for i, label := range l.labels {
			b, ok := l.index[label]
			if !ok {
				b = roaring.New()
				l.index[label] = b
			}
			b.Add(uint32(i))
		}
	})
}

// Index returns the positions of the records carrying label.
func (l *Labeled[R, L]) Index(label L) *roaring.Bitmap {
	l.buildIndex()
	if b, ok := l.index[label]; ok {
		return b.Clone()
	}
	return roaring.New()
}

// Counts returns the number of records per label.
func (l *Labeled[R, L]) Counts() map[L]int {
	l.buildIndex()
	out := make(map[L]int, len(l.index))
	for label, b := range l.index {
		out[label] = int(b.GetCardinality())
	}
	return out
}

// ByLabel returns the view of the records carrying label, in order.
func (l *Labeled[R, L]) ByLabel(label L) *Labeled[R, L] {
	return l.Select(l.Index(label))
}

// Select returns the view of the records at the positions in b, in
// ascending order. Positions past the end are ignored.
func (l *Labeled[R, L]) Select(b *roaring.Bitmap) *Labeled[R, L] {
	n := int(b.GetCardinality())
	paths := make([]string, 0, n)
	labels := make([]L, 0, n)

	it := b.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if i >= len(l.labels) {
			break
		}
		paths = append(paths, l.data.paths[i])
		labels = append(labels, l.labels[i])
	}
	return &Labeled[R, L]{data: New(l.data.dir, paths, l.data.loader), labels: labels}
}
