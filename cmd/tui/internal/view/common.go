package view

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

// View is the interface that all TUI screens implement.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// OpenSheetMsg asks the root model to show a sheet's transactions.
type OpenSheetMsg struct {
	Sheet ledger.Sheet
}

// OpenImportMsg and OpenExportMsg ask the root model to switch screens for
// the given sheet.
type (
	OpenImportMsg struct{ Sheet ledger.Sheet }
	OpenExportMsg struct{ Sheet ledger.Sheet }
)
