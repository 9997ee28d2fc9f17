package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// refreshValueSize is the entropy of a refresh-token value in bytes.
const refreshValueSize = 64

// NewRefreshValue generates a cryptographically secure random refresh-token
// value. Collisions are treated as negligible; the session store's
// uniqueness constraint is the actual safety net.
func NewRefreshValue() (string, error) {
	b := make([]byte, refreshValueSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
