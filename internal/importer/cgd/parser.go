package cgd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expenso/internal/encoding"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

const dateLayout = "02-01-2006"

var ErrUnknownFormat = errors.New("no matching CGD format found: expected columns for conta, extrato, or cartão")

// Parser reads the CSV exports of Caixa Geral de Depósitos. The layout
// (conta, extrato or cartão) is detected from the header row.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]ledger.TransactionParams, error) {
	utf8r, _, err := encoding.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detecting encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	for i, row := range rows {
		header := indexHeader(row)

		for _, profile := range profiles {
			if header.has(profile.columns()...) {
				return parseRows(profile, header, rows[i+1:], i+1)
			}
		}
	}

	return nil, ErrUnknownFormat
}

type header map[string]int

func indexHeader(row []string) header {
	h := make(header, len(row))

	for i, cell := range row {
		if name := strings.TrimSpace(cell); name != "" {
			h[name] = i
		}
	}

	return h
}

func (h header) has(names ...string) bool {
	for _, name := range names {
		if _, ok := h[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows skips rows without a date or a non-zero amount: the exports end
// with totals and page footers.
func parseRows(p Profile, h header, rows [][]string, offset int) ([]ledger.TransactionParams, error) {
	var out []ledger.TransactionParams

	for i, row := range rows {
		date, err := time.Parse(dateLayout, cell(row, h[p.Date]))
		if err != nil {
			continue
		}

		amount, kind, ok := p.amount(h, row)
		if !ok {
			continue
		}

		purpose := cell(row, h[p.Desc])
		if purpose == "" {
			return nil, fmt.Errorf("row %d: missing description", offset+i+1)
		}

		out = append(out, ledger.TransactionParams{
			Amount:    amount,
			Purpose:   purpose,
			Kind:      kind,
			CreatedAt: date,
		})
	}

	return out, nil
}

func (p Profile) amount(h header, row []string) (decimal.Decimal, ledger.Kind, bool) {
	if p.Layout == debitCreditColumns {
		if d, ok := nonZero(cell(row, h[p.Debit])); ok {
			return d.Abs(), ledger.KindDebit, true
		}

		if d, ok := nonZero(cell(row, h[p.Credit])); ok {
			return d.Abs(), ledger.KindCredit, true
		}

		return decimal.Decimal{}, "", false
	}

	d, ok := nonZero(cell(row, h[p.Amount]))
	if !ok {
		return decimal.Decimal{}, "", false
	}

	if d.IsNegative() {
		return d.Neg(), ledger.KindDebit, true
	}

	return d, ledger.KindCredit, true
}

func nonZero(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}

	d, err := parseAmount(s)
	if err != nil || d.IsZero() {
		return decimal.Decimal{}, false
	}

	return d, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
