// Package storable builds the three typed persistent shapes (Value, List,
// Dict) the rest of the module uses to keep its state in the transactional
// KV store (spec component C2), plus the reentrant transaction scope every
// write goes through.
package storable

import "encoding/json"

// Mode selects which serialization a Codec should produce: Store for full
// fidelity persistence, Net for the wire (where private audit fields such
// as commit_status are omitted).
type Mode int

const (
	ModeStore Mode = iota
	ModeNet
)

// Codec encodes and decodes one storable payload type.
type Codec[T any] interface {
	Encode(v T, mode Mode) ([]byte, error)
	Decode(b []byte, mode Mode) (T, error)
}

// netMarshaler is implemented by payload types that need to hide fields
// from the wire representation; JSONCodec consults it when asked to encode
// in ModeNet.
type netMarshaler interface {
	MarshalNet() ([]byte, error)
}

// JSONCodec is the default Codec, sufficient for any payload type that has
// no private fields to hide from the wire (the common case) or that
// implements netMarshaler for the ones that do.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T, mode Mode) ([]byte, error) {
	if mode == ModeNet {
		if nm, ok := any(v).(netMarshaler); ok {
			return nm.MarshalNet()
		}
	}
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(b []byte, mode Mode) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
