package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MrJamesThe3rd/expenso/internal/storage"
)

// Backend keeps documents in a map. Nothing survives the process.
type Backend struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func New() *Backend {
	return &Backend{docs: make(map[string][]byte)}
}

func (b *Backend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.docs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return slices.Clone(v), nil
}

func (b *Backend) Save(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs[key] = slices.Clone(value)

	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.docs, key)

	return nil
}

func (b *Backend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for k := range b.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	slices.Sort(keys)

	return keys, nil
}
