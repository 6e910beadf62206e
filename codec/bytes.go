package codec

import "fmt"

// Bytes stores raw byte payloads verbatim.
//
// Marshal accepts []byte (or *[]byte), Unmarshal requires *[]byte.
type Bytes struct{}

// Marshal returns the payload unchanged.
func (Bytes) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		if b == nil {
			return nil, nil
		}
		return *b, nil
	default:
		return nil, fmt.Errorf("codec bytes: cannot marshal %T", v)
	}
}

// Unmarshal copies data into v.
func (Bytes) Unmarshal(data []byte, v any) error {
	dst, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("codec bytes: cannot unmarshal into %T", v)
	}
	*dst = append((*dst)[:0], data...)
	return nil
}

// Name returns the unique name of the codec ("bytes").
func (Bytes) Name() string { return "bytes" }
