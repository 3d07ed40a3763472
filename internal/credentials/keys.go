package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// noExpiry disables the Fernet timestamp check; stored tokens never expire.
const noExpiry time.Duration = -1

// DeriveKey turns a deployment secret into a Fernet key: the URL-safe base64
// encoding of the secret's SHA-256 digest. Tokens written by earlier
// deployments with the same secret stay readable.
func DeriveKey(secret string) (*fernet.Key, error) {
	if secret == "" {
		return nil, fmt.Errorf("derive key: empty secret")
	}
	sum := sha256.Sum256([]byte(secret))
	key, err := fernet.DecodeKey(base64.URLEncoding.EncodeToString(sum[:]))
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func seal(key *fernet.Key, plaintext []byte) ([]byte, error) {
	token, err := fernet.EncryptAndSign(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return token, nil
}

// open returns nil when the token is malformed or was not made with key.
func open(key *fernet.Key, token []byte) []byte {
	return fernet.VerifyAndDecrypt(token, noExpiry, []*fernet.Key{key})
}
