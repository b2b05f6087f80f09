package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned by Ed25519Signer.Verify when sig does not
// validate against payload and peerPublicKey.
var ErrInvalidSignature = errors.New("signer: invalid signature")

// Ed25519Signer is the default Signer implementation.
type Ed25519Signer struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewEd25519Signer generates a fresh Ed25519 keypair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &Ed25519Signer{public: pub, private: priv}, nil
}

// NewEd25519SignerFromSeed deterministically derives a keypair from a
// 32-byte seed, used by tests that need a reproducible identity.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.private, payload), nil
}

func (s *Ed25519Signer) Verify(peerPublicKey, payload, sig []byte) error {
	if !ed25519.Verify(ed25519.PublicKey(peerPublicKey), payload, sig) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	return append([]byte(nil), s.public...)
}

// Seed returns the 32-byte seed this signer's keypair was derived from, so
// a caller can persist an identity generated by NewEd25519Signer.
func (s *Ed25519Signer) Seed() []byte {
	return append([]byte(nil), s.private.Seed()...)
}

// GenerateEd25519Seed draws a fresh random seed suitable for
// NewEd25519SignerFromSeed.
func GenerateEd25519Seed() ([]byte, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return seed, nil
}
