package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Notes:
// - JSON is stable and portable, which is what manifests need.
// - For arbitrary record payloads, JSON works for typical structs/maps/slices.
// - Numbers decoded into interface values become float64; decode into a
//   concrete type to keep integer labels exact.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used for manifests and structured payloads.
//
// GoJSON and JSON produce interchangeable bytes, so switching the default
// does not invalidate existing manifests.
var Default Codec = GoJSON{}
