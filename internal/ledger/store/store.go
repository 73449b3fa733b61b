package store

import (
	"context"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/storage"
)

// Store keeps sheets and categories as two documents in the user's namespace.
type Store struct {
	docs *storage.Store
}

func New(docs *storage.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) Sheets(ctx context.Context) ([]ledger.Sheet, error) {
	var sheets []ledger.Sheet
	if _, err := s.docs.Lookup(ctx, storage.KeySheets, &sheets); err != nil {
		return nil, err
	}

	return sheets, nil
}

func (s *Store) SaveSheets(ctx context.Context, sheets []ledger.Sheet) error {
	return s.docs.Put(ctx, storage.KeySheets, sheets)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if _, err := s.docs.Lookup(ctx, storage.KeyCategories, &categories); err != nil {
		return nil, err
	}

	return categories, nil
}

func (s *Store) SaveCategories(ctx context.Context, categories []string) error {
	return s.docs.Put(ctx, storage.KeyCategories, categories)
}
