package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Well-known document keys.
const (
	KeySyncQueue         = "sync_queue"
	KeyPendingOperations = "pending_operations"
	KeyLastSync          = "last_sync_timestamp"
	KeySheets            = "expense_sheets"
	KeyCategories        = "categories"
	KeySuggestions       = "category_suggestions"
)

var userNamespace = uuid.MustParse("6f1c2f0e-5d8e-4c4b-9a47-3b7f4f0c9e21")

// Namespace derives a stable document prefix for a user. An empty user is unscoped.
func Namespace(userID string) string {
	if userID == "" {
		return ""
	}

	return uuid.NewSHA1(userNamespace, []byte(userID)).String()
}

// Store is a JSON document store on top of a Backend. Failures are logged
// and reported as false.
type Store struct {
	backend   Backend
	namespace string
	logger    *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		backend: backend,
		logger:  logger.With("component", "storage"),
	}
}

// ForUser returns a copy of the store scoped to the user's namespace.
func (s *Store) ForUser(userID string) *Store {
	ns := Namespace(userID)

	return &Store{
		backend:   s.backend,
		namespace: ns,
		logger:    s.logger.With("namespace", ns),
	}
}

func (s *Store) Namespace() string {
	return s.namespace
}

func (s *Store) key(k string) string {
	if s.namespace == "" {
		return k
	}

	return s.namespace + ":" + k
}

// Lookup decodes the document into dst. It reports whether the document
// exists; an error means the backend or the decoding failed.
func (s *Store) Lookup(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.backend.Load(ctx, s.key(key))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}

	return true, nil
}

// Get decodes the document into dst and reports whether it was read.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	found, err := s.Lookup(ctx, key, dst)
	if err != nil {
		s.logger.Error("failed to read document", "key", key, "error", err)
		return false
	}

	return found
}

// Put encodes v and saves it under key.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if err := s.backend.Save(ctx, s.key(key), data); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	return nil
}

func (s *Store) Set(ctx context.Context, key string, v any) bool {
	if err := s.Put(ctx, key, v); err != nil {
		s.logger.Error("failed to write document", "key", key, "error", err)
		return false
	}

	return true
}

func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.backend.Delete(ctx, s.key(key)); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Error("failed to remove document", "key", key, "error", err)
		return false
	}

	return true
}

// Clear removes every document in the store's namespace.
func (s *Store) Clear(ctx context.Context) bool {
	prefix := ""
	if s.namespace != "" {
		prefix = s.namespace + ":"
	}

	keys, err := s.backend.Keys(ctx, prefix)
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		return false
	}

	ok := true
	for _, k := range keys {
		if err := s.backend.Delete(ctx, k); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to remove document", "key", strings.TrimPrefix(k, prefix), "error", err)
			ok = false
		}
	}

	return ok
}
