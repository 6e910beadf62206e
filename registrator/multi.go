package registrator

import (
	"errors"
	"fmt"

	"github.com/hupe1980/stagefetch/record"
)

// Multi routes records to one of several split registrators. The first
// registrator is current until Switch selects another.
type Multi[R any, L comparable] struct {
	regs    []*Registrator[R, L]
	index   map[string]int
	current int
}

// NewMulti groups regs. Names must be unique.
func NewMulti[R any, L comparable](regs ...*Registrator[R, L]) (*Multi[R, L], error) {
	if len(regs) == 0 {
		return nil, ErrNoRegistrators
	}
	index := make(map[string]int, len(regs))
	for i, r := range regs {
		if _, ok := index[r.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSplit, r.Name())
		}
		index[r.Name()] = i
	}
	return &Multi[R, L]{regs: regs, index: index}, nil
}

// Switch makes the split called name current and returns the previous one.
func (m *Multi[R, L]) Switch(name string) (string, error) {
	i, ok := m.index[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSplit, name)
	}
	prev := m.regs[m.current].Name()
	m.current = i
	return prev, nil
}

// Current returns the name of the current split.
func (m *Multi[R, L]) Current() string {
	return m.regs[m.current].Name()
}

// Names returns the split names in construction order.
func (m *Multi[R, L]) Names() []string {
	names := make([]string, len(m.regs))
	for i, r := range m.regs {
		names[i] = r.Name()
	}
	return names
}

// Registrator returns the registrator of the split called name.
func (m *Multi[R, L]) Registrator(name string) (*Registrator[R, L], bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.regs[i], true
}

// Register stores rec in the current split.
func (m *Multi[R, L]) Register(rec record.Record[R, L]) error {
	return m.regs[m.current].Register(rec)
}

// AlreadyDumped reports whether every split has a committed manifest.
func (m *Multi[R, L]) AlreadyDumped() bool {
	for _, r := range m.regs {
		if !r.AlreadyDumped() {
			return false
		}
	}
	return true
}

// Open opens every split. If one fails, the ones opened before it are
// aborted.
func (m *Multi[R, L]) Open() error {
	for i, r := range m.regs {
		if err := r.Open(); err != nil {
			for _, opened := range m.regs[:i] {
				_ = opened.Abort()
			}
			return err
		}
	}
	return nil
}

// Close commits every split. Every registrator is closed even when an
// earlier one fails; all failures are reported in a *CloseError.
func (m *Multi[R, L]) Close() error {
	return m.each("close", (*Registrator[R, L]).Close)
}

// Abort aborts every split.
func (m *Multi[R, L]) Abort() error {
	return m.each("abort", (*Registrator[R, L]).Abort)
}

func (m *Multi[R, L]) each(op string, fn func(*Registrator[R, L]) error) error {
	var ce *CloseError
	for _, r := range m.regs {
		if err := fn(r); err != nil {
			if ce == nil {
				ce = &CloseError{Op: op}
			}
			ce.Splits = append(ce.Splits, r.Name())
			ce.Errs = append(ce.Errs, err)
		}
	}
	if ce == nil {
		return nil
	}
	return ce
}

// Do opens every split, runs fn and commits all of them on success. When fn
// fails or panics every split is aborted.
func (m *Multi[R, L]) Do(fn func() error) error {
	if err := m.Open(); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = m.Abort()
			panic(p)
		}
	}()
	if err := fn(); err != nil {
		if aerr := m.Abort(); aerr != nil {
			return errors.Join(err, aerr)
		}
		return err
	}
	return m.Close()
}
