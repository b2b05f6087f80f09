package kvstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashNamespace collapses a hierarchical path into a single stable string,
// following the original implementation's key_join-then-sha256 scheme: the
// path segments are joined with a separator that cannot itself appear
// unescaped in a segment, then hashed so that two distinct paths can never
// collide regardless of what bytes their segments contain.
func HashNamespace(ns Namespace) string {
	joined := strings.Join(escapeAll(ns), "/")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func escapeAll(ns Namespace) []string {
	out := make([]string, len(ns))
	for i, seg := range ns {
		seg = strings.ReplaceAll(seg, `\`, `\\`)
		out[i] = strings.ReplaceAll(seg, "/", `\/`)
	}
	return out
}
