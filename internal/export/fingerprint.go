package export

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"ideajournal/internal/models"
)

// fingerprintKey separates artifact fingerprints from any other BLAKE3 use.
// Changing it invalidates every cached artifact.
var fingerprintKey = [32]byte{
	'i', 'd', 'e', 'a', 'j', 'o', 'u', 'r', 'n', 'a', 'l', '.', 'a', 'r', 't', 'i',
	'f', 'a', 'c', 't', '.', 'v', '1', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint identifies the artifact an engine produces for a record. It
// covers the engine name so switching engines re-renders.
func Fingerprint(engine string, idea models.Idea) (string, error) {
	canonical, err := json.Marshal(idea)
	if err != nil {
		return "", fmt.Errorf("encode idea: %w", err)
	}
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		return "", err
	}
	hasher.Write([]byte(engine))
	hasher.Write([]byte{0})
	hasher.Write(canonical)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
