// Package auth signs the session cookie so a client can only present
// session IDs the server issued.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

// Sign returns "<value>.<signature>".
func Sign(secret []byte, value string) string {
	return value + "." + sign(secret, value)
}

// Verify checks a value produced by Sign and returns the original value.
func Verify(secret []byte, token string) (string, error) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return "", ErrInvalidToken
	}
	value := token[:idx]
	signature := token[idx+1:]

	expected := sign(secret, value)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidToken
	}
	return value, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

// HashToken is the storage key for a session ID, so a leaked session store
// does not hand out live cookies.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
