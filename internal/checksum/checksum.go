// Package checksum identifies captured build output by content.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of a capture.
func Sum(capture []byte) string {
	h := sha256.Sum256(capture)
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters of Sum, for logs and status lines.
func Short(capture []byte) string {
	return Sum(capture)[:12]
}
