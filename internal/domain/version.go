package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// VersionID is an opaque, globally-unique identifier attached to every
// revision of a shared object. Equality is byte-equality; the zero value is
// never produced by NewVersionID and is reserved for "no version".
type VersionID [16]byte

// NewVersionID draws 16 random bytes from crypto/rand, mirroring the
// original implementation's get_unique_string().
func NewVersionID() (VersionID, error) {
	var v VersionID
	if _, err := rand.Read(v[:]); err != nil {
		return v, fmt.Errorf("generate version id: %w", err)
	}
	return v, nil
}

// String renders the version as lowercase hex, used both for logs and for
// the hex-keyed object_store dict persisted by the storable factory.
func (v VersionID) String() string {
	return hex.EncodeToString(v[:])
}

// IsZero reports whether v is the unset value.
func (v VersionID) IsZero() bool {
	return v == VersionID{}
}

// ParseVersionID decodes a hex-encoded version id, as read back from storage
// or the wire.
func ParseVersionID(s string) (VersionID, error) {
	var v VersionID
	b, err := hex.DecodeString(s)
	if err != nil {
		return v, fmt.Errorf("parse version id %q: %w", s, err)
	}
	if len(b) != len(v) {
		return v, fmt.Errorf("parse version id %q: want %d bytes, got %d", s, len(v), len(b))
	}
	copy(v[:], b)
	return v, nil
}

// MarshalText implements encoding.TextMarshaler so VersionID can be used
// directly as a JSON object key or string value.
func (v VersionID) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VersionID) UnmarshalText(text []byte) error {
	parsed, err := ParseVersionID(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
