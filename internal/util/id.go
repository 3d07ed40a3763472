package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewToken returns a random hex token of 2*size characters, optionally
// prefixed. Session IDs use it, so a short read from the system RNG is an
// error rather than a weaker token.
func NewToken(prefix string, size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	if prefix == "" {
		return hex.EncodeToString(buf), nil
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}
