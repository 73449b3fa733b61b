package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrJamesThe3rd/expenso/internal/importer/cgd"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

//go:generate mockgen -source=service.go -destination=suggester_mock.go -package=importer
type Suggester interface {
	Suggest(ctx context.Context, purpose string) (string, error)
}

type Service struct {
	parsers   map[Bank]Parser
	suggester Suggester
	logger    *slog.Logger
}

// NewService returns an importer for the supported banks. A nil suggester
// leaves imported categories empty.
func NewService(suggester Suggester, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		parsers: map[Bank]Parser{
			BankCGD: cgd.NewParser(),
		},
		suggester: suggester,
		logger:    logger.With("component", "importer"),
	}
}

// Import parses the export and fills in learned categories.
func (s *Service) Import(ctx context.Context, bank Bank, r io.Reader) ([]ledger.TransactionParams, error) {
	parser, ok := s.parsers[bank]
	if !ok {
		return nil, fmt.Errorf("unknown bank: %s", bank)
	}

	params, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s export: %w", bank, err)
	}

	if s.suggester == nil {
		return params, nil
	}

	suggested := 0

	for i := range params {
		if params[i].Category != "" {
			continue
		}

		category, err := s.suggester.Suggest(ctx, params[i].Purpose)
		if err != nil {
			s.logger.Warn("category suggestion failed", "purpose", params[i].Purpose, "error", err)
			continue
		}

		if category != "" {
			params[i].Category = category
			suggested++
		}
	}

	s.logger.Info("bank export parsed", "bank", bank, "rows", len(params), "suggested", suggested)

	return params, nil
}
