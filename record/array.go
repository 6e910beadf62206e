package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
)

// DType is the element type of an Array.
type DType uint8

const (
	Invalid DType = iota
	Bool
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var dtypeNames = [...]string{"invalid", "bool", "int8", "uint8", "int16", "uint16", "int32", "uint32", "int64", "uint64", "float32", "float64"}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Element is the set of Go types an Array can hold.
type Element interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// DTypeOf returns the dtype matching T.
func DTypeOf[T Element]() DType {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int8:
		return Int8
	case reflect.Uint8:
		return Uint8
	case reflect.Int16:
		return Int16
	case reflect.Uint16:
		return Uint16
	case reflect.Int32:
		return Int32
	case reflect.Uint32:
		return Uint32
	case reflect.Int64:
		return Int64
	case reflect.Uint64:
		return Uint64
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	default:
		return Invalid
	}
}

var (
	// ErrShapeMismatch is returned when data does not fill the declared shape.
	ErrShapeMismatch = errors.New("record: array shape does not match data")
	// ErrDTypeMismatch is returned when an array is read as the wrong type.
	ErrDTypeMismatch = errors.New("record: array dtype mismatch")
)

// Array is a homogeneous, C-ordered, multi-dimensional numeric array.
// Data holds the elements little endian.
type Array struct {
	DType DType
	Shape []int
	Data  []byte
}

// NewArray builds an Array of the given shape from values.
func NewArray[T Element](shape []int, values []T) (*Array, error) {
	a := &Array{DType: DTypeOf[T](), Shape: slices.Clone(shape)}
	if a.Len() != len(values) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrShapeMismatch, shape, a.Len(), len(values))
	}
	var buf bytes.Buffer
	buf.Grow(len(values) * a.DType.Size())
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		return nil, err
	}
	a.Data = buf.Bytes()
	return a, nil
}

// Values decodes the elements of a as T.
func Values[T Element](a *Array) ([]T, error) {
	if want := DTypeOf[T](); a.DType != want {
		return nil, fmt.Errorf("%w: array is %s, requested %s", ErrDTypeMismatch, a.DType, want)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	out := make([]T, a.Len())
	if err := binary.Read(bytes.NewReader(a.Data), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of elements (1 for a zero-dimensional array). It
// returns -1 when a dimension is negative or the count overflows int.
func (a *Array) Len() int {
	n, ok := dataSize(a.Shape, 1)
	if !ok {
		return -1
	}
	return n
}

// dataSize returns the byte size of shape with elemSize byte elements.
func dataSize(shape []int, elemSize int) (int, bool) {
	empty := false
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		empty = empty || d == 0
	}
	if empty {
		return 0, true
	}
	n := elemSize
	for _, d := range shape {
		if n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Validate checks that dtype, shape and data agree.
func (a *Array) Validate() error {
	if a.DType.Size() == 0 {
		return fmt.Errorf("record: invalid dtype %s", a.DType)
	}
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, a.Shape)
		}
	}
	want, ok := dataSize(a.Shape, a.DType.Size())
	if !ok {
		return fmt.Errorf("%w: shape %v overflows", ErrShapeMismatch, a.Shape)
	}
	if len(a.Data) != want {
		return fmt.Errorf("%w: shape %v of %s needs %d bytes, have %d", ErrShapeMismatch, a.Shape, a.DType, want, len(a.Data))
	}
	return nil
}

// Equal reports whether a and b have identical dtype, shape and bytes.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.DType == b.DType && slices.Equal(a.Shape, b.Shape) && bytes.Equal(a.Data, b.Data)
}
