package matching

import (
	"context"
	"errors"
	"strings"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	FindMatch(ctx context.Context, purpose string) (string, error)
	CreateMapping(ctx context.Context, pattern, category string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the category learned for a purpose, or an empty string.
func (s *Service) Suggest(ctx context.Context, purpose string) (string, error) {
	if strings.TrimSpace(purpose) == "" {
		return "", nil
	}

	return s.repo.FindMatch(ctx, purpose)
}

// Learn remembers that purposes containing pattern belong to category.
func (s *Service) Learn(ctx context.Context, pattern, category string) error {
	pattern, category = strings.TrimSpace(pattern), strings.TrimSpace(category)
	if pattern == "" || category == "" {
		return errors.New("pattern and category are required")
	}

	return s.repo.CreateMapping(ctx, pattern, category)
}
