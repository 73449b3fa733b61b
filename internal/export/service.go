package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

//go:generate mockgen -source=service.go -destination=sheets_mock.go -package=export
type SheetReader interface {
	Sheet(ctx context.Context, id string) (*ledger.Sheet, error)
}

// Service renders a sheet for use outside the app.
type Service struct {
	sheets SheetReader
}

func NewService(sheets SheetReader) *Service {
	return &Service{sheets: sheets}
}

var header = []string{"Date", "Time", "Kind", "Amount", "Category", "Purpose", "Synced"}

// WriteCSV writes the sheet's transactions oldest first.
func (s *Service) WriteCSV(ctx context.Context, sheetID string, w io.Writer) error {
	sheet, err := s.sheets.Sheet(ctx, sheetID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, tx := range slices.Backward(sheet.Transactions) {
		synced := "no"
		if tx.Synced {
			synced = "yes"
		}

		err := cw.Write([]string{
			tx.CreatedAt.Format("2006-01-02"),
			tx.CreatedAt.Format("15:04"),
			string(tx.Kind),
			tx.Amount.StringFixed(2),
			tx.Category,
			tx.Purpose,
			synced,
		})
		if err != nil {
			return fmt.Errorf("writing transaction %s: %w", tx.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// Summary renders the sheet as a plain text list followed by its totals.
func (s *Service) Summary(ctx context.Context, sheetID string) (string, error) {
	sheet, err := s.sheets.Sheet(ctx, sheetID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n\n", sheet.Name)

	for _, tx := range slices.Backward(sheet.Transactions) {
		sign := "-"
		if tx.Kind == ledger.KindCredit {
			sign = "+"
		}

		fmt.Fprintf(&sb, "* %s | %s | %s%s € | %s\n", tx.CreatedAt.Format("2006-01-02"), tx.Purpose, sign, tx.Amount.StringFixed(2), tx.Category)
	}

	totals := ledger.CalculateTotals(*sheet)

	fmt.Fprintf(&sb, "\nDebit: %s €\nCredit: %s €\nBalance: %s €\n",
		totals.Debit.StringFixed(2), totals.Credit.StringFixed(2), totals.Balance.StringFixed(2))

	return sb.String(), nil
}

// Filename returns a file name for the sheet's CSV export.
func Filename(sheet ledger.Sheet) string {
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, sheet.Name)

	return fmt.Sprintf("%s_%s.csv", sheet.CreatedAt.Format("20060102"), safe)
}
