package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
)

type sheetsState int

const (
	sheetsStateBrowse sheetsState = iota
	sheetsStateCreate
)

type SheetsModel struct {
	CommonModel
	ledger *ledger.Service

	state  sheetsState
	table  table.Model
	sheets []ledger.Sheet
	form   *huh.Form

	loading bool
	err     error
	status  string

	// Form bindings
	formName string
}

func NewSheetsModel(led *ledger.Service) SheetsModel {
	columns := []table.Column{
		{Title: "Name", Width: 30},
		{Title: "Sync", Width: 10},
		{Title: "Txs", Width: 6},
		{Title: "Debit", Width: 12},
		{Title: "Credit", Width: 12},
		{Title: "Balance", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return SheetsModel{
		ledger:  led,
		table:   t,
		loading: true,
	}
}

func (m SheetsModel) Title() string { return "Sheets" }
func (m SheetsModel) ShortHelp() string {
	if m.state == sheetsStateCreate {
		return "Navigate form | Esc: cancel"
	}
	return "Esc: back | Enter: open | n: new | s: retry sync | f: force resync | r: refresh"
}

func (m SheetsModel) Init() tea.Cmd {
	return m.loadSheetsCmd()
}

func (m SheetsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadSheetsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sheets = msg.sheets
		m.refreshTable()
		return m, nil

	case sheetActionMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}
		m.state = sheetsStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadSheetsCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case sheetsStateBrowse:
		return m.updateBrowse(msg)
	case sheetsStateCreate:
		return m.updateCreate(msg)
	}

	return m, nil
}

func (m SheetsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadSheetsCmd()
		case "n":
			return m.enterCreateMode()
		case "enter":
			if sheet, ok := m.selected(); ok {
				return m, func() tea.Msg { return OpenSheetMsg{Sheet: sheet} }
			}
			return m, nil
		case "s":
			return m, m.retryCmd()
		case "f":
			return m, m.forceCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m SheetsModel) selected() (ledger.Sheet, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.sheets) {
		return ledger.Sheet{}, false
	}

	return m.sheets[idx], true
}

func (m SheetsModel) enterCreateMode() (tea.Model, tea.Cmd) {
	m.formName = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Sheet name").
				CharLimit(ledger.MaxSheetNameLength).
				Value(&m.formName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}
					return nil
				}),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = sheetsStateCreate
	m.table.Blur()
	return m, m.form.Init()
}

func (m SheetsModel) updateCreate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = sheetsStateBrowse
			m.form = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.createCmd()
}

func (m SheetsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading sheets...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(fmt.Sprintf("%s sheets", activeStyle(fmt.Sprint(len(m.sheets))))),
		tableView,
	)

	if sheet, ok := m.selected(); ok && sheet.LastError != "" && m.state == sheetsStateBrowse {
		content = lipgloss.JoinVertical(lipgloss.Left, content, errorStyle("Last sync error: "+sheet.LastError))
	}

	if m.state == sheetsStateCreate && m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render("New Sheet\n\n" + m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *SheetsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.sheets))
	for _, sh := range m.sheets {
		totals := ledger.CalculateTotals(sh)
		rows = append(rows, table.Row{
			sh.Name,
			string(sh.SyncStatus),
			fmt.Sprint(len(sh.Transactions)),
			FormatAmount(totals.Debit),
			FormatAmount(totals.Credit),
			FormatAmount(totals.Balance),
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadSheetsMsg struct {
	sheets []ledger.Sheet
	err    error
}

func (m SheetsModel) loadSheetsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		sheets, err := m.ledger.Sheets(ctx)
		return loadSheetsMsg{sheets: sheets, err: err}
	}
}

type sheetActionMsg struct {
	status string
	err    error
}

// queuedStatus turns a write that succeeded locally but could not be queued
// into a warning rather than an error.
func queuedStatus(ok string, err error) sheetActionMsg {
	if errors.Is(err, queue.ErrNotQueued) {
		return sheetActionMsg{status: ok + " (not queued for sync)"}
	}

	return sheetActionMsg{status: ok, err: err}
}

func (m SheetsModel) createCmd() tea.Cmd {
	name := m.form.GetString("name")

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		sheet, err := m.ledger.CreateSheet(ctx, name)
		if sheet == nil {
			return sheetActionMsg{err: err}
		}

		return queuedStatus(fmt.Sprintf("Created %q.", sheet.Name), err)
	}
}

func (m SheetsModel) retryCmd() tea.Cmd {
	sheet, ok := m.selected()
	if !ok {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		queued, err := m.ledger.RetrySheetSync(ctx, sheet.ID)
		if err == nil && !queued {
			return sheetActionMsg{status: fmt.Sprintf("%q is already synced.", sheet.Name)}
		}

		return queuedStatus(fmt.Sprintf("Queued %q for sync.", sheet.Name), err)
	}
}

func (m SheetsModel) forceCmd() tea.Cmd {
	sheet, ok := m.selected()
	if !ok {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		n, err := m.ledger.ForceSheetSync(ctx, sheet.ID)

		return queuedStatus(fmt.Sprintf("Queued %d transactions of %q for resync.", n, sheet.Name), err)
	}
}
