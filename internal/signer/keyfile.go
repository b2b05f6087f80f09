package signer

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// LoadEd25519SignerFromFile reads a hex-encoded 32-byte seed from path,
// trimming surrounding whitespace, and derives the signer from it.
func LoadEd25519SignerFromFile(path string) (*Ed25519Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	seedHex := strings.TrimSpace(string(data))
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode key file %s: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s: want %d byte seed, got %d", path, ed25519.SeedSize, len(seed))
	}
	return NewEd25519SignerFromSeed(seed)
}

// SaveSeed writes seed (hex-encoded) to path, for a freshly generated
// identity a VASP operator wants to persist across restarts.
func SaveSeed(path string, seed []byte) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(seed)+"\n"), 0600)
}
