package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Checksum returns the SHA-256 hex digest of payload rendered as
// canonical JSON (sorted keys, compact separators).
func Checksum(payload map[string]any) string {
	b, _ := json.Marshal(payload) //nolint:errcheck // map of primitives cannot fail to marshal
	return ChecksumBytes(b)
}

// ChecksumBytes returns the SHA-256 hex digest of b.
func ChecksumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
