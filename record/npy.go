package record

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/stagefetch/internal/fs"
)

// NPYExt is the extension of files written by ArrayCodec.
const NPYExt = ".npy"

var npyMagic = []byte("\x93NUMPY")

// ErrInvalidNPY is returned for malformed or unsupported .npy files.
var ErrInvalidNPY = errors.New("record: invalid npy file")

var descrByDType = map[DType]string{
	Bool:    "|b1",
	Int8:    "|i1",
	Uint8:   "|u1",
	Int16:   "<i2",
	Uint16:  "<u2",
	Int32:   "<i4",
	Uint32:  "<u4",
	Int64:   "<i8",
	Uint64:  "<u8",
	Float32: "<f4",
	Float64: "<f8",
}

func dtypeFromDescr(descr string) (DType, error) {
	if len(descr) < 2 {
		return Invalid, fmt.Errorf("%w: descr %q", ErrInvalidNPY, descr)
	}
	order, kind := descr[0], descr[1:]
	if order == '>' && kind[1:] != "1" {
		return Invalid, fmt.Errorf("%w: big-endian descr %q not supported", ErrInvalidNPY, descr)
	}
	for d, s := range descrByDType {
		if s[1:] == kind {
			return d, nil
		}
	}
	return Invalid, fmt.Errorf("%w: unsupported descr %q", ErrInvalidNPY, descr)
}

// WriteNPY writes a as a version 1.0 .npy stream.
func WriteNPY(w io.Writer, a *Array) error {
	if err := a.Validate(); err != nil {
		return err
	}

	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := "(" + strings.Join(dims, ", ")
	if len(dims) == 1 {
		shape += ","
	}
	shape += ")"

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descrByDType[a.DType], shape)
	// magic(6) + version(2) + length(2) + header + '\n' is padded to 64 bytes.
	total := len(npyMagic) + 4 + len(header) + 1
	header += strings.Repeat(" ", (64-total%64)%64) + "\n"
	if len(header) > 0xFFFF {
		return fmt.Errorf("%w: header too long", ErrInvalidNPY)
	}

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)
	bw.Write(a.Data)
	return bw.Flush()
}

// ReadNPY reads a .npy stream (versions 1.0, 2.0 and 3.0, C order).
func ReadNPY(r io.Reader) (*Array, error) {
	pre := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNPY, err)
	}
	if !bytes.Equal(pre[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidNPY)
	}

	var headerLen int
	switch major := pre[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNPY, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNPY, err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidNPY, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNPY, err)
	}
	a, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}

	size, ok := dataSize(a.Shape, a.DType.Size())
	if !ok {
		return nil, fmt.Errorf("%w: shape %v overflows", ErrInvalidNPY, a.Shape)
	}
	// The buffer grows with the bytes read, never to the declared size up front.
	var data bytes.Buffer
	if _, err := io.CopyN(&data, r, int64(size)); err != nil {
		return nil, fmt.Errorf("%w: truncated data: %w", ErrInvalidNPY, err)
	}
	a.Data = data.Bytes()
	return a, nil
}

func parseNPYHeader(h string) (*Array, error) {
	descr, err := headerValue(h, "descr")
	if err != nil {
		return nil, err
	}
	dt, err := dtypeFromDescr(strings.Trim(descr, "'\""))
	if err != nil {
		return nil, err
	}

	fortran, err := headerValue(h, "fortran_order")
	if err != nil {
		return nil, err
	}
	if fortran != "False" {
		return nil, fmt.Errorf("%w: fortran order not supported", ErrInvalidNPY)
	}

	shapeStr, err := headerValue(h, "shape")
	if err != nil {
		return nil, err
	}
	shape := []int{}
	for _, part := range strings.Split(strings.Trim(shapeStr, "()"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: bad shape %s", ErrInvalidNPY, shapeStr)
		}
		shape = append(shape, d)
	}
	return &Array{DType: dt, Shape: shape}, nil
}

// headerValue extracts the raw value of key from the python dict literal.
func headerValue(h, key string) (string, error) {
	i := strings.Index(h, "'"+key+"'")
	if i < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidNPY, key)
	}
	rest := strings.TrimSpace(h[i+len(key)+2:])
	rest, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return "", fmt.Errorf("%w: malformed %s", ErrInvalidNPY, key)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", fmt.Errorf("%w: empty %s", ErrInvalidNPY, key)
	}

	end := -1
	switch rest[0] {
	case '(':
		if i := strings.IndexByte(rest, ')'); i >= 0 {
			end = i + 1
		}
	case '\'', '"':
		if i := strings.IndexByte(rest[1:], rest[0]); i >= 0 {
			end = i + 2
		}
	default:
		end = strings.IndexAny(rest, ",}")
	}
	if end <= 0 {
		return "", fmt.Errorf("%w: malformed %s", ErrInvalidNPY, key)
	}
	return strings.TrimSpace(rest[:end]), nil
}

// ArrayCodec is the numeric-array codec. Arrays are stored as .npy files.
type ArrayCodec struct {
	opts Options
}

// NewArrayCodec creates an ArrayCodec.
func NewArrayCodec(optFns ...func(o *Options)) *ArrayCodec {
	return &ArrayCodec{opts: applyOptions(optFns)}
}

// Save implements Saver.
func (c *ArrayCodec) Save(a *Array, base string) (string, error) {
	if a == nil {
		return "", errors.New("record: nil array")
	}
	if err := a.Validate(); err != nil {
		return "", err
	}
	path := base + NPYExt
	if err := writeExclusive(c.opts.FS, path, !c.opts.NoSync, func(w io.Writer) error {
		return WriteNPY(w, a)
	}); err != nil {
		return "", err
	}
	return path, nil
}

// Load implements Loader.
func (c *ArrayCodec) Load(path string) (*Array, error) {
	data, err := fs.ReadFile(c.opts.FS, path)
	if err != nil {
		return nil, err
	}
	a, err := ReadNPY(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Name returns "npy".
func (c *ArrayCodec) Name() string { return "npy" }
