// Package domain holds the wire-level and storage-level data model shared by
// every other package in this module: addresses, version identifiers, shared
// objects, protocol commands, and the request/response envelopes that carry
// them between two VASPs.
package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Address is an opaque VASP identity. Only two operations are defined on it:
// LastBit (used for role assignment) and lexicographic comparison.
type Address []byte

// LastBit returns the low-order bit of the final byte of the address, or 0
// for an empty address.
func (a Address) LastBit() byte {
	if len(a) == 0 {
		return 0
	}
	return a[len(a)-1] & 1
}

// Compare performs a lexicographic byte comparison, returning -1, 0, or 1.
func (a Address) Compare(other Address) int {
	return bytes.Compare(a, other)
}

// String renders the address as hex for logs and storage namespacing.
func (a Address) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(a)*2)
	for i, b := range a {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// Equal reports byte-wise equality.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a, other)
}

// ParseAddress decodes the hex form produced by String.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address(b), nil
}
