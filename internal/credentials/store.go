// Package credentials persists registered users as a single encrypted blob.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fernet/fernet-go"
)

// ErrStoreCorrupt means the blob exists but does not decrypt to a user
// mapping. Retrying will not help; the server refuses to start.
var ErrStoreCorrupt = errors.New("credential store is corrupt")

// User is one registered account. The password is kept twice: a bcrypt
// hash for login, and a Fernet token under the master key that
// PasswordVault can reverse.
type User struct {
	PasswordHash      string `json:"password_hash"`
	PasswordEncrypted string `json:"password_encrypted"`
	CreatedAt         string `json:"created_at"`
}

// Blob is the storage behind the store. Read returns nil data and no error
// when nothing has been written yet.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Store encrypts the whole username → User mapping as one Fernet token.
// Its mutex covers every load/save, so Update is a serialized
// read-modify-write.
type Store struct {
	blob Blob
	key  *fernet.Key
	mu   sync.Mutex
}

func NewStore(blob Blob, secret string) (*Store, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Store{blob: blob, key: key}, nil
}

func (s *Store) Load(ctx context.Context) (map[string]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) Save(ctx context.Context, users map[string]User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, users)
}

// Update loads the mapping, applies fn and saves the result while holding
// the store lock. An error from fn aborts without writing.
func (s *Store) Update(ctx context.Context, fn func(users map[string]User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(users); err != nil {
		return err
	}
	return s.save(ctx, users)
}

// Verify loads the blob once so a corrupt store fails at startup.
func (s *Store) Verify(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

func (s *Store) load(ctx context.Context) (map[string]User, error) {
	data, err := s.blob.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read credential blob: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return map[string]User{}, nil
	}

	plaintext := open(s.key, data)
	if plaintext == nil {
		return nil, fmt.Errorf("%w: decryption failed", ErrStoreCorrupt)
	}

	users := map[string]User{}
	if err := json.Unmarshal(plaintext, &users); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if users == nil {
		return nil, fmt.Errorf("%w: not a user mapping", ErrStoreCorrupt)
	}
	return users, nil
}

func (s *Store) save(ctx context.Context, users map[string]User) error {
	if users == nil {
		users = map[string]User{}
	}
	// encoding/json sorts map keys, so equal mappings serialize identically.
	raw, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	token, err := seal(s.key, raw)
	if err != nil {
		return err
	}
	if err := s.blob.Write(ctx, token); err != nil {
		return fmt.Errorf("write credential blob: %w", err)
	}
	return nil
}
