package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ideajournal/internal/util"
)

// FileBlob keeps the ciphertext in a single file, replaced atomically.
type FileBlob struct {
	path string
}

func NewFileBlob(path string) (*FileBlob, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	return &FileBlob{path: path}, nil
}

func (b *FileBlob) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *FileBlob) Write(_ context.Context, data []byte) error {
	return util.WriteFileAtomic(b.path, data, 0o600)
}
