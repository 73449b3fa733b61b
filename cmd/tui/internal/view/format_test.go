package view_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/expenso/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

func TestFormatSigned(t *testing.T) {
	type testCase struct {
		name string
		tx   ledger.Transaction
		want string
	}

	tests := []testCase{
		{
			name: "debit",
			tx:   ledger.Transaction{Kind: ledger.KindDebit, Amount: decimal.RequireFromString("12.5")},
			want: "-12.50",
		},
		{
			name: "credit",
			tx:   ledger.Transaction{Kind: ledger.KindCredit, Amount: decimal.NewFromInt(1000)},
			want: "+1000.00",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, view.FormatSigned(tc.tx))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2026-03-09", view.FormatDate(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)))
}
