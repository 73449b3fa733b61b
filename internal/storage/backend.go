package storage

import (
	"context"
	"errors"
)

//go:generate mockgen -source=backend.go -destination=backend_mock.go -package=storage

var ErrNotFound = errors.New("document not found")

// Backend persists raw documents by key.
type Backend interface {
	// Load returns ErrNotFound when the key is absent.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
