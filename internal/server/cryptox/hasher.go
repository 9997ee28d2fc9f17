// Package cryptox implements the credential hasher: deterministic PBKDF2
// password digests with process-wide salt and iteration count.
package cryptox

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"
)

// digestSize is the PBKDF2 output length in bytes before base64 encoding.
const digestSize = 256

// Hasher derives password digests. Salt and iteration count are process-wide
// configuration, not per-user, so equal passwords always produce equal
// digests and stored hashes stay comparable by exact match.
type Hasher struct {
	salt       []byte
	iterations int
}

// NewHasher constructs a Hasher from the configured salt and iteration count.
func NewHasher(salt string, iterations int) *Hasher {
	return &Hasher{salt: []byte(salt), iterations: iterations}
}

// HashPassword returns the base64-encoded PBKDF2-HMAC-SHA256 digest of the
// password. Pure function over its input and the Hasher configuration.
func (h *Hasher) HashPassword(password string) string {
	digest := pbkdf2.Key([]byte(password), h.salt, h.iterations, digestSize, sha256.New)
	return base64.StdEncoding.EncodeToString(digest)
}
