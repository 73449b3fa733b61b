package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/MrJamesThe3rd/expenso/internal/storage"
)

type mapping struct {
	Pattern   string    `json:"pattern"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps purpose mappings in the category_suggestions document.
type Store struct {
	docs *storage.Store
	mu   sync.Mutex
}

func New(docs *storage.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) mappings(ctx context.Context) ([]mapping, error) {
	var m []mapping
	if _, err := s.docs.Lookup(ctx, storage.KeySuggestions, &m); err != nil {
		return nil, fmt.Errorf("loading mappings: %w", err)
	}

	return m, nil
}

// FindMatch prefers the longest pattern, then the newest.
func (s *Store) FindMatch(ctx context.Context, purpose string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.mappings(ctx)
	if err != nil {
		return "", err
	}

	folded := cases.Fold().String(purpose)

	var best *mapping
	for i := range all {
		m := &all[i]
		if !strings.Contains(folded, cases.Fold().String(m.Pattern)) {
			continue
		}

		if best == nil || len(m.Pattern) > len(best.Pattern) ||
			(len(m.Pattern) == len(best.Pattern) && m.CreatedAt.After(best.CreatedAt)) {
			best = m
		}
	}

	if best == nil {
		return "", nil
	}

	return best.Category, nil
}

// CreateMapping replaces any mapping with the same pattern.
func (s *Store) CreateMapping(ctx context.Context, pattern, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.mappings(ctx)
	if err != nil {
		return err
	}

	key := cases.Fold().String(pattern)
	all = slices.DeleteFunc(all, func(m mapping) bool { return cases.Fold().String(m.Pattern) == key })
	all = append(all, mapping{Pattern: pattern, Category: category, CreatedAt: time.Now().UTC()})

	if err := s.docs.Put(ctx, storage.KeySuggestions, all); err != nil {
		return fmt.Errorf("creating mapping: %w", err)
	}

	return nil
}
