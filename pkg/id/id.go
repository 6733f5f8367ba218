// Package id provides stable identifiers and content fingerprints used
// throughout the kernel: tasks, tools, changes, checkpoints, sessions,
// shares and transactions all use the same uniform UUID-like format.
package id

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a fresh opaque identifier, unique for the lifetime of the
// process (and, in practice, globally).
func New() string {
	return uuid.NewString()
}

// Fingerprint returns a stable content fingerprint (hex-encoded SHA-256)
// for arbitrary byte content, used to detect identical Chunks or Changes
// without comparing full bodies.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FingerprintString is a convenience wrapper over Fingerprint for text
// content.
func FingerprintString(content string) string {
	return Fingerprint([]byte(content))
}
