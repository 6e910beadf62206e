package layout

import (
	"fmt"
	"strings"
)

// emptyName replaces labels with no allowed character left.
const emptyName = "_"

// reserved holds the names of the split manifest and its temporary file.
// A label folder with one of these names would shadow the manifest.
var reserved = map[string]bool{
	"0meta":     true,
	"0meta.tmp": true,
}

// Sanitize strips every character outside [A-Za-z0-9_.()-]. Names that would
// be empty, "." or ".." are replaced so they can never escape the folder, and
// the manifest names are prefixed with "_".
func Sanitize(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.', r == '(', r == ')':
			return r
		default:
			return -1
		}
	}, s)
	switch out {
	case "", ".", "..":
		return emptyName
	}
	if reserved[out] {
		return emptyName + out
	}
	return out
}

// Namespace is an immutable mapping from raw labels to filesystem-safe
// display names. Build it once, e.g. from an archive's label metadata, and
// hand it to the namer at construction.
type Namespace[L comparable] struct {
	names map[L]string
}

// NewNamespace copies and sanitizes names.
func NewNamespace[L comparable](names map[L]string) Namespace[L] {
	ns := Namespace[L]{names: make(map[L]string, len(names))}
	for k, v := range names {
		ns.names[k] = Sanitize(v)
	}
	return ns
}

// NamespaceOf builds a Namespace mapping each index of names to its entry.
func NamespaceOf(names []string) Namespace[int] {
	m := make(map[int]string, len(names))
	for i, n := range names {
		m[i] = n
	}
	return NewNamespace(m)
}

// Translate returns the display name of label. Unknown labels are rendered
// with fmt.Sprint and sanitized.
func (ns Namespace[L]) Translate(label L) string {
	if name, ok := ns.names[label]; ok {
		return name
	}
	return Sanitize(fmt.Sprint(label))
}

// Lookup returns the display name registered for label.
func (ns Namespace[L]) Lookup(label L) (string, bool) {
	name, ok := ns.names[label]
	return name, ok
}

// Len returns the number of registered labels.
func (ns Namespace[L]) Len() int {
	return len(ns.names)
}
