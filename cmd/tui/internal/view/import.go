package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/expenso/internal/importer"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateBankSelect importState = iota
	importStateFilePick
	importStateImporting
	importStatePreview
	importStateResult
)

type ImportModel struct {
	CommonModel
	ledger        *ledger.Service
	importService *importer.Service
	sheet         ledger.Sheet

	state        importState
	filePicker   filepicker.Model
	selectedBank importer.Bank
	bankOptions  []importer.Bank
	bankCursor   int

	drafts    []ledger.TransactionParams
	draftList list.Model
	skipped   map[int]bool

	status string
	err    error
}

func NewImportModel(led *ledger.Service, impSvc *importer.Service, sheet ledger.Sheet) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		ledger:        led,
		importService: impSvc,
		sheet:         sheet,
		filePicker:    fp,
		bankOptions:   []importer.Bank{importer.BankCGD},
		skipped:       make(map[int]bool),
	}
}

func (m ImportModel) Title() string { return "Import into " + m.sheet.Name }

func (m ImportModel) ShortHelp() string {
	switch m.state {
	case importStatePreview:
		return "Space: toggle | a: all | n: none | Enter: import | Esc: cancel"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStateBankSelect {
			return m.updateBankSelect(msg)
		}

		if m.state == importStatePreview {
			return m.updatePreview(msg)
		}

	case parseResultMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		if len(msg.drafts) == 0 {
			m.state = importStateResult
			m.status = "No transactions found in file."

			return m, nil
		}

		m.drafts = msg.drafts
		m.skipped = make(map[int]bool)
		m.state = importStatePreview

		items := make([]list.Item, len(m.drafts))
		for i, d := range m.drafts {
			items[i] = draftItem{draft: d, index: i}
		}

		delegate := draftDelegate{skipped: m.skipped}
		m.draftList = list.New(items, delegate, 80, 20)
		m.draftList.Title = fmt.Sprintf("%d transactions found", len(m.drafts))
		m.draftList.SetShowStatusBar(false)
		m.draftList.SetFilteringEnabled(false)
		m.draftList.SetShowHelp(false)

		return m, nil

	case confirmResultMsg:
		m.state = importStateResult
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.status = fmt.Sprintf("Imported %d transactions into %s.", msg.count, m.sheet.Name)

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Reading %s...", path)

		return m, m.parseCmd(path)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		m.state = importStateBankSelect
		return m, nil
	case importStateResult:
		if m.err == nil && m.status != "" {
			return m, Back
		}

		m.state = importStateBankSelect
		m.err = nil
		m.status = ""

		return m, nil
	case importStatePreview:
		m.state = importStateBankSelect
		m.drafts = nil
		m.skipped = make(map[int]bool)

		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateBankSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.bankCursor > 0 {
			m.bankCursor--
		}
	case tea.KeyDown:
		if m.bankCursor < len(m.bankOptions)-1 {
			m.bankCursor++
		}
	case tea.KeyEnter:
		m.selectedBank = m.bankOptions[m.bankCursor]
		m.state = importStateFilePick

		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ImportModel) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		idx := m.draftList.Index()
		m.skipped[idx] = !m.skipped[idx]

		return m, nil
	case "a":
		clear(m.skipped)

		return m, nil
	case "n":
		for i := range m.drafts {
			m.skipped[i] = true
		}

		return m, nil
	case "enter":
		return m, m.confirmCmd()
	}

	var cmd tea.Cmd
	m.draftList, cmd = m.draftList.Update(msg)

	return m, cmd
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateBankSelect:
		return m.viewBankSelect()
	case importStateFilePick:
		return m.viewFilePick()
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStatePreview:
		return lipgloss.NewStyle().Padding(1).Render(m.draftList.View())
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewBankSelect() string {
	s := "Select Bank:\n\n"

	for i, bank := range m.bankOptions {
		cursor := " "
		if i == m.bankCursor {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, string(bank))
	}

	return lipgloss.NewStyle().Padding(2).Render(s)
}

func (m ImportModel) viewFilePick() string {
	return lipgloss.NewStyle().Padding(1).Render(
		fmt.Sprintf("Select file to import (%s):\n\n%s", m.selectedBank, m.filePicker.View()),
	)
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)
	if m.err != nil {
		return style.Render(errorStyle(m.status) + "\n\n(Esc to go back)")
	}

	return style.Render(
		lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(m.status) +
			"\n\n(Esc to go back)",
	)
}

// Messages

type parseResultMsg struct {
	drafts []ledger.TransactionParams
	err    error
}

type confirmResultMsg struct {
	count int
	err   error
}

func (m ImportModel) parseCmd(path string) tea.Cmd {
	bank := m.selectedBank

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return parseResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		drafts, err := m.importService.Import(ctx, bank, f)

		return parseResultMsg{drafts: drafts, err: err}
	}
}

func (m ImportModel) confirmCmd() tea.Cmd {
	var (
		sheetID = m.sheet.ID
		params  []ledger.TransactionParams
	)

	for i, d := range m.drafts {
		if m.skipped[i] {
			continue
		}

		params = append(params, d)
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		txs, err := m.ledger.ImportTransactions(ctx, sheetID, params)
		if txs == nil && err != nil {
			return confirmResultMsg{err: err}
		}

		return confirmResultMsg{count: len(txs), err: queuedStatus("", err).err}
	}
}

// Draft list item

type draftItem struct {
	draft ledger.TransactionParams
	index int
}

func (i draftItem) Title() string       { return "" }
func (i draftItem) Description() string { return "" }
func (i draftItem) FilterValue() string { return "" }

// Draft list delegate

type draftDelegate struct {
	skipped map[int]bool
}

func (d draftDelegate) Height() int                             { return 2 }
func (d draftDelegate) Spacing() int                            { return 0 }
func (d draftDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d draftDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(draftItem)
	if !ok {
		return
	}

	checkbox := "[x]"
	if d.skipped[item.index] {
		checkbox = "[ ]"
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	draft := item.draft
	sign := "+"
	if draft.Kind == ledger.KindDebit {
		sign = "-"
	}

	category := draft.Category
	if category == "" {
		category = ledger.MiscCategory
	}

	line1 := fmt.Sprintf("%s%s %s  %s%s  %s",
		cursor, checkbox,
		FormatDate(draft.CreatedAt),
		sign, FormatAmount(draft.Amount),
		draft.Purpose,
	)

	line2 := lipgloss.NewStyle().Faint(true).Render("      Category: " + category)

	fmt.Fprintf(w, "%s\n%s\n", line1, line2)
}
