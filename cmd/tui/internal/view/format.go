package view

import (
	"context"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

const opTimeout = 5 * time.Second

// FormatAmount renders an amount with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatSigned prefixes debits with a minus sign.
func FormatSigned(tx ledger.Transaction) string {
	if tx.Kind == ledger.KindDebit {
		return "-" + FormatAmount(tx.Amount)
	}

	return "+" + FormatAmount(tx.Amount)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// OpCtx returns a context with a standard timeout for storage operations.
func OpCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func syncBadge(s ledger.SyncStatus) string {
	color := map[ledger.SyncStatus]string{
		ledger.SyncPending: "214",
		ledger.SyncSyncing: "39",
		ledger.SyncSynced:  "46",
		ledger.SyncError:   "196",
	}[s]

	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(s))
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func errorStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(s)
}
