// Package signer provides the pluggable signing collaborator the spec
// treats as external: the channel and transport never inspect key material
// directly, only this interface.
package signer

// Signer signs and verifies opaque wire payloads on behalf of one VASP
// identity. The core treats signatures as external and this interface is
// the seam: tests use a deterministic fake, production uses Ed25519.
type Signer interface {
	// Sign returns a detached signature over payload.
	Sign(payload []byte) ([]byte, error)
	// Verify reports whether sig is a valid signature over payload from
	// the peer identified by peerPublicKey.
	Verify(peerPublicKey, payload, sig []byte) error
	// PublicKey returns this signer's own public key, sent to the peer
	// out of band (VASP discovery is out of scope).
	PublicKey() []byte
}
