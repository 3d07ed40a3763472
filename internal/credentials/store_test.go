package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func newTestStore(t *testing.T, secret string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users", "users.enc")
	blob, err := NewFileBlob(path)
	if err != nil {
		t.Fatalf("NewFileBlob: %v", err)
	}
	store, err := NewStore(blob, secret)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, path
}

func TestDeriveKeyMatchesDigestEncoding(t *testing.T) {
	key, err := DeriveKey("admin-password")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	sum := sha256.Sum256([]byte("admin-password"))
	want := base64.URLEncoding.EncodeToString(sum[:])
	if key.Encode() != want {
		t.Fatalf("expected key %s, got %s", want, key.Encode())
	}

	if _, err := DeriveKey(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestLoadMissingBlobIsEmpty(t *testing.T) {
	store, _ := newTestStore(t, "secret")
	users, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty mapping, got %v", users)
	}
}

func TestLoadZeroLengthBlobIsEmpty(t *testing.T) {
	store, path := newTestStore(t, "secret")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write empty blob: %v", err)
	}
	users, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty mapping, got %v", users)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t, "secret")
	users := map[string]User{
		"alice": {PasswordHash: "hash-a", PasswordEncrypted: "enc-a", CreatedAt: "2026-01-02T03:04:05Z"},
		"Bob":   {PasswordHash: "hash-b", PasswordEncrypted: "enc-b", CreatedAt: "2026-02-03T04:05:06Z"},
	}
	if err := store.Save(ctx, users); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if len(raw) == 0 || string(raw) == "{}" {
		t.Fatal("expected ciphertext on disk")
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, users) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", loaded, users)
	}
}

func TestLoadWithWrongSecretIsCorrupt(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t, "secret")
	if err := store.Save(ctx, map[string]User{"alice": {PasswordHash: "h"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	blob, err := NewFileBlob(path)
	if err != nil {
		t.Fatalf("NewFileBlob: %v", err)
	}
	other, err := NewStore(blob, "different")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := other.Load(ctx); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
	if err := other.Verify(ctx); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected Verify to report ErrStoreCorrupt, got %v", err)
	}
}

func TestLoadGarbageIsCorrupt(t *testing.T) {
	store, path := newTestStore(t, "secret")
	if err := os.WriteFile(path, []byte("not-a-fernet-token"), 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
}

func TestLoadNonJSONPlaintextIsCorrupt(t *testing.T) {
	store, path := newTestStore(t, "secret")
	token, err := seal(store.key, []byte("definitely not json"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := os.WriteFile(path, token, 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
}

func TestLoadNullPlaintextIsCorrupt(t *testing.T) {
	store, path := newTestStore(t, "secret")
	token, err := seal(store.key, []byte("null"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := os.WriteFile(path, token, 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
	err = store.Update(context.Background(), func(users map[string]User) error {
		users["alice"] = User{PasswordHash: "x"}
		return nil
	})
	if !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected Update to fail with ErrStoreCorrupt, got %v", err)
	}
}

func TestUpdateAbortsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store, path := newTestStore(t, "secret")
	sentinel := errors.New("stop")
	err := store.Update(ctx, func(users map[string]User) error {
		users["alice"] = User{PasswordHash: "h"}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no blob written, stat err = %v", err)
	}
}

func TestConcurrentUpdatesKeepEveryUser(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, "secret")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.Update(ctx, func(users map[string]User) error {
				users[fmt.Sprintf("user-%02d", i)] = User{PasswordHash: "h"}
				return nil
			})
			if err != nil {
				t.Errorf("Update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	users, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(users) != n {
		t.Fatalf("expected %d users, got %d", n, len(users))
	}
}

func TestPasswordVaultSealReveal(t *testing.T) {
	vault, err := NewPasswordVault("master", nil)
	if err != nil {
		t.Fatalf("NewPasswordVault: %v", err)
	}
	token, err := vault.Seal("pw1")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if token == "pw1" {
		t.Fatal("expected sealed password to differ from plaintext")
	}
	got, err := vault.Reveal("alice", User{PasswordEncrypted: token}, "test")
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if got != "pw1" {
		t.Fatalf("expected pw1, got %q", got)
	}

	other, err := NewPasswordVault("other-master", nil)
	if err != nil {
		t.Fatalf("NewPasswordVault: %v", err)
	}
	if _, err := other.Reveal("alice", User{PasswordEncrypted: token}, "test"); !errors.Is(err, ErrRevealFailed) {
		t.Fatalf("expected ErrRevealFailed, got %v", err)
	}
}
