package authpw

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// checkPassword verifies password against a stored hash. New accounts get
// bcrypt; accounts carried over from the Flask deployment keep werkzeug's
// "method$salt$hexdigest" hashes.
func checkPassword(stored, password string) bool {
	if strings.HasPrefix(stored, "pbkdf2:") || strings.HasPrefix(stored, "scrypt:") {
		return checkWerkzeugHash(stored, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

func checkWerkzeugHash(stored, password string) bool {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt := parts[0], []byte(parts[1])
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}

	args := strings.Split(method, ":")
	var got []byte
	switch args[0] {
	case "pbkdf2":
		if len(args) != 3 {
			return false
		}
		newHash, ok := werkzeugDigests[args[1]]
		if !ok {
			return false
		}
		iterations, err := strconv.Atoi(args[2])
		if err != nil || iterations < 1 {
			return false
		}
		got = pbkdf2.Key([]byte(password), salt, iterations, len(want), newHash)
	case "scrypt":
		if len(args) != 4 {
			return false
		}
		n, errN := strconv.Atoi(args[1])
		r, errR := strconv.Atoi(args[2])
		p, errP := strconv.Atoi(args[3])
		if errN != nil || errR != nil || errP != nil || r < 1 || p < 1 {
			return false
		}
		got, err = scrypt.Key([]byte(password), salt, n, r, p, len(want))
		if err != nil {
			return false
		}
	default:
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

var werkzeugDigests = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}
