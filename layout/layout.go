// Package layout derives the relative, extension-free path under which each
// new record is stored.
//
// Two strategies exist:
//
//	Flat                 Hierarchical
//	.                    .
//	|-- 0                |-- cat
//	|-- 1                |   |-- cat_0
//	+-- 2                |   +-- cat_1
//	                     +-- dog
//	                         +-- dog_0
//
// Namers hold unsynchronized counters. One namer serves one writer; sharing
// it across the splits of a single run keeps every name unique for that run.
package layout

import (
	"fmt"
	"path"
	"strconv"
)

// Namer returns a fresh, unique, extension-free, slash-separated relative path
// for the next record carrying label.
type Namer[L comparable] interface {
	Name(label L) string
}

// Strategy selects a Namer variant.
type Strategy uint8

const (
	// StrategyFlat names records 0, 1, 2, ... in one folder.
	StrategyFlat Strategy = iota
	// StrategyHierarchical groups records in one subfolder per label.
	StrategyHierarchical
)

func (s Strategy) String() string {
	switch s {
	case StrategyFlat:
		return "flat"
	case StrategyHierarchical:
		return "hierarchical"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy parses "flat" or "hierarchical".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "flat", "":
		return StrategyFlat, nil
	case "hierarchical", "labeled":
		return StrategyHierarchical, nil
	default:
		return 0, fmt.Errorf("layout: unknown strategy %q", s)
	}
}

// New creates the namer for strategy. ns is only used by hierarchical namers.
func New[L comparable](s Strategy, ns Namespace[L]) Namer[L] {
	if s == StrategyHierarchical {
		return NewHierarchical(ns)
	}
	return NewFlat[L]()
}

// Flat names records with a process-local monotonically increasing counter.
type Flat[L comparable] struct {
	next int
}

// NewFlat creates a Flat namer starting at 0.
func NewFlat[L comparable]() *Flat[L] {
	return &Flat[L]{}
}

// NewFlatFrom creates a Flat namer whose first name is n.
func NewFlatFrom[L comparable](n int) *Flat[L] {
	return &Flat[L]{next: n}
}

// Resume moves the counter past the first n names. It never moves back.
func (f *Flat[L]) Resume(n int) {
	if n > f.next {
		f.next = n
	}
}

// Name implements Namer. The label is ignored.
func (f *Flat[L]) Name(L) string {
	n := f.next
	f.next++
	return strconv.Itoa(n)
}

// Hierarchical names records <label>/<label>_<n> with one counter per
// translated label.
type Hierarchical[L comparable] struct {
	ns     Namespace[L]
	counts map[string]int
}

// NewHierarchical creates a Hierarchical namer over ns. The zero Namespace
// renders every label with fmt.Sprint.
func NewHierarchical[L comparable](ns Namespace[L]) *Hierarchical[L] {
	return &Hierarchical[L]{ns: ns, counts: make(map[string]int)}
}

// Name implements Namer.
func (h *Hierarchical[L]) Name(label L) string {
	s := h.ns.Translate(label)
	n := h.counts[s]
	h.counts[s] = n + 1
	return path.Join(s, s+"_"+strconv.Itoa(n))
}

// Count returns how many names were handed out for the translated label.
func (h *Hierarchical[L]) Count(label L) int {
	return h.counts[h.ns.Translate(label)]
}
