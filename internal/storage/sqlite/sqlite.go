package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/expenso/internal/storage"
)

// Backend stores documents in the documents table of an on-device database.
type Backend struct {
	db *sql.DB
}

func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

func (b *Backend) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := b.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("selecting document: %w", err)
	}

	return value, nil
}

func (b *Backend) Save(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO documents (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := b.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	return nil
}

func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT key FROM documents WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}

		keys = append(keys, k)
	}

	return keys, rows.Err()
}
