package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultBlobName is the row holding the credential mapping.
const DefaultBlobName = "users.enc"

// PostgresBlob stores one opaque blob in credential_blobs. Writes replace
// the row in a single statement, so readers never observe a partial value.
type PostgresBlob struct {
	db   *sql.DB
	name string
}

func NewPostgresBlob(db *sql.DB, name string) *PostgresBlob {
	if name == "" {
		name = DefaultBlobName
	}
	return &PostgresBlob{db: db, name: name}
}

func (b *PostgresBlob) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM credential_blobs WHERE name=$1`, b.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select blob %s: %w", b.name, err)
	}
	return data, nil
}

func (b *PostgresBlob) Write(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO credential_blobs (name, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, b.name, data)
	if err != nil {
		return fmt.Errorf("upsert blob %s: %w", b.name, err)
	}
	return nil
}
