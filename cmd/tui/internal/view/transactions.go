package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/matching"
)

type txState int

const (
	txStateList txState = iota
	txStateEditing
	txStateConfirmDelete
)

// suggestCategory is the category option that defers to learned mappings.
const suggestCategory = ""

var kindFilters = []ledger.Kind{"", ledger.KindDebit, ledger.KindCredit}

// txItem wraps a transaction to implement list.Item.
type txItem struct {
	tx ledger.Transaction
}

func (i txItem) Title() string {
	synced := lipgloss.NewStyle().Faint(true).Render("[local]")
	if i.tx.Synced {
		synced = lipgloss.NewStyle().Faint(true).Render("[synced]")
	}

	return fmt.Sprintf("%s  %10s  %s  %s", FormatDate(i.tx.CreatedAt), FormatSigned(i.tx), synced, i.tx.Purpose)
}

func (i txItem) Description() string {
	return "Category: " + i.tx.Category
}

func (i txItem) FilterValue() string {
	return i.tx.Purpose + " " + i.tx.Category
}

type TransactionsModel struct {
	CommonModel
	ledger   *ledger.Service
	matching *matching.Service
	sheet    ledger.Sheet

	state      txState
	list       list.Model
	form       *huh.Form
	txs        []ledger.Transaction
	selectedTx *ledger.Transaction
	categories []string
	kindIdx    int

	loading bool
	status  string

	// Form field bindings
	formKind     string
	formAmount   string
	formPurpose  string
	formCategory string
	formConfirm  bool
}

func NewTransactionsModel(led *ledger.Service, match *matching.Service, sheet ledger.Sheet) TransactionsModel {
	l := list.New([]list.Item{}, txItemDelegate{}, 0, 0)
	l.Title = sheet.Name
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return TransactionsModel{
		ledger:   led,
		matching: match,
		sheet:    sheet,
		list:     l,
		loading:  true,
	}
}

func (m TransactionsModel) Title() string { return "Transactions: " + m.sheet.Name }

func (m TransactionsModel) ShortHelp() string {
	switch m.state {
	case txStateList:
		return "Esc: back | a: add | Enter: edit | d: delete | k: kind | i: import | x: export | /: filter"
	case txStateEditing:
		return "Esc: cancel | Enter/Tab: navigate form"
	case txStateConfirmDelete:
		return "Esc: cancel"
	}

	return ""
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadTxsMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.sheet = msg.sheet
		m.txs = msg.txs
		m.categories = msg.categories
		m.refreshListItems()

		if len(msg.txs) == 0 {
			m.status = "No transactions found."
		}

		return m, nil

	case saveTxResultMsg:
		m.state = txStateList
		m.form = nil

		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
			return m, nil
		}

		m.status = msg.status

		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-10)
		return m, nil
	}

	switch m.state {
	case txStateList:
		return m.updateList(msg)
	case txStateEditing, txStateConfirmDelete:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m TransactionsModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch keyMsg.String() {
		case "esc":
			if m.list.FilterState() == list.FilterApplied {
				break // let the list clear the filter
			}

			return m, Back
		case "enter":
			return m.startEditing(true)
		case "a":
			return m.startEditing(false)
		case "d":
			return m.startDelete()
		case "k":
			m.kindIdx = (m.kindIdx + 1) % len(kindFilters)
			m.refreshListItems()

			return m, nil
		case "i":
			sheet := m.sheet
			return m, func() tea.Msg { return OpenImportMsg{Sheet: sheet} }
		case "x":
			sheet := m.sheet
			return m, func() tea.Msg { return OpenExportMsg{Sheet: sheet} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m TransactionsModel) startEditing(existing bool) (tea.Model, tea.Cmd) {
	m.selectedTx = nil
	m.formKind = string(ledger.KindDebit)
	m.formAmount = ""
	m.formPurpose = ""
	m.formCategory = suggestCategory

	if existing {
		selected, ok := m.list.SelectedItem().(txItem)
		if !ok {
			return m, nil
		}

		m.selectedTx = &selected.tx
		m.formKind = string(selected.tx.Kind)
		m.formAmount = FormatAmount(selected.tx.Amount)
		m.formPurpose = selected.tx.Purpose
		m.formCategory = selected.tx.Category
	}

	categoryOpts := []huh.Option[string]{huh.NewOption("Suggest from purpose", suggestCategory)}
	for _, c := range m.categories {
		categoryOpts = append(categoryOpts, huh.NewOption(c, c))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("kind").
				Title("Kind").
				Options(
					huh.NewOption("Debit", string(ledger.KindDebit)),
					huh.NewOption("Credit", string(ledger.KindCredit)),
				).
				Value(&m.formKind),

			huh.NewInput().
				Key("amount").
				Title("Amount").
				Placeholder("12.50").
				Value(&m.formAmount).
				Validate(func(s string) error {
					d, err := parseAmountInput(s)
					if err != nil {
						return err
					}
					if !d.IsPositive() {
						return fmt.Errorf("amount must be greater than zero")
					}
					return nil
				}),

			huh.NewInput().
				Key("purpose").
				Title("Purpose").
				Value(&m.formPurpose).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("purpose cannot be empty")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Key("category").
				Title("Category").
				Options(categoryOpts...).
				Value(&m.formCategory),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = txStateEditing

	return m, m.form.Init()
}

func (m TransactionsModel) startDelete() (tea.Model, tea.Cmd) {
	selected, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return m, nil
	}

	m.selectedTx = &selected.tx
	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Delete %q?", selected.tx.Purpose)).
				Affirmative("Delete").
				Negative("Keep").
				Value(&m.formConfirm),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = txStateConfirmDelete

	return m, m.form.Init()
}

func (m TransactionsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = txStateList
			m.form = nil

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

	if m.state == txStateConfirmDelete {
		if !m.form.GetBool("confirm") {
			m.state = txStateList
			m.form = nil

			return m, nil
		}

		return m, m.deleteTxCmd()
	}

	return m, m.saveTxCmd()
}

func (m TransactionsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	switch m.state {
	case txStateList:
		totals := ledger.CalculateTotals(m.sheet)
		header := fmt.Sprintf(
			"[k] Kind: %s | Debit %s | Credit %s | Balance %s | %s",
			activeStyle(kindLabel(kindFilters[m.kindIdx])),
			FormatAmount(totals.Debit),
			FormatAmount(totals.Credit),
			FormatAmount(totals.Balance),
			syncBadge(m.sheet.SyncStatus),
		)

		statusLine := ""
		if m.status != "" {
			statusLine = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n"
		}

		return lipgloss.NewStyle().Padding(1).Render(header + "\n" + statusLine + m.list.View())

	case txStateEditing, txStateConfirmDelete:
		if m.form == nil {
			return ""
		}

		return lipgloss.NewStyle().Padding(1).Render(
			m.txInfoView() + "\n" + m.form.View(),
		)
	}

	return ""
}

func kindLabel(k ledger.Kind) string {
	if k == "" {
		return "All"
	}

	return string(k)
}

func (m TransactionsModel) txInfoView() string {
	if m.selectedTx == nil {
		return lipgloss.NewStyle().Bold(true).Render("New transaction in " + m.sheet.Name)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Render(fmt.Sprintf(
			"Date: %s  |  Amount: %s  |  Synced: %t",
			FormatDate(m.selectedTx.CreatedAt),
			FormatSigned(*m.selectedTx),
			m.selectedTx.Synced,
		))
}

func (m *TransactionsModel) refreshListItems() {
	kind := kindFilters[m.kindIdx]

	items := make([]list.Item, 0, len(m.txs))
	for _, tx := range m.txs {
		if kind != "" && tx.Kind != kind {
			continue
		}

		items = append(items, txItem{tx: tx})
	}

	m.list.SetItems(items)
}

// parseAmountInput accepts both "12.50" and "12,50".
func parseAmountInput(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}

	return d, nil
}

// Messages

type loadTxsMsg struct {
	sheet      ledger.Sheet
	txs        []ledger.Transaction
	categories []string
	err        error
}

func (m TransactionsModel) loadTxsCmd() tea.Cmd {
	sheetID := m.sheet.ID

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		sheet, err := m.ledger.Sheet(ctx, sheetID)
		if err != nil {
			return loadTxsMsg{err: err}
		}

		categories, err := m.ledger.Categories(ctx)
		if err != nil {
			return loadTxsMsg{err: err}
		}

		return loadTxsMsg{sheet: *sheet, txs: sheet.Transactions, categories: categories}
	}
}

type saveTxResultMsg struct {
	status string
	err    error
}

func (m TransactionsModel) saveTxCmd() tea.Cmd {
	var (
		sheetID  = m.sheet.ID
		selected = m.selectedTx
		kind     = ledger.Kind(m.form.GetString("kind"))
		purpose  = strings.TrimSpace(m.form.GetString("purpose"))
		category = m.form.GetString("category")
		amount   = m.form.GetString("amount")
	)

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		value, err := parseAmountInput(amount)
		if err != nil {
			return saveTxResultMsg{err: err}
		}

		if category == suggestCategory {
			category, _ = m.matching.Suggest(ctx, purpose)
		} else if err := m.matching.Learn(ctx, purpose, category); err != nil {
			return saveTxResultMsg{err: err}
		}

		if selected == nil {
			tx, err := m.ledger.AddTransaction(ctx, sheetID, ledger.TransactionParams{
				Amount:   value,
				Purpose:  purpose,
				Category: category,
				Kind:     kind,
			})
			if tx == nil {
				return saveTxResultMsg{err: err}
			}

			msg := queuedStatus(fmt.Sprintf("Added %s (%s).", tx.Purpose, tx.Category), err)

			return saveTxResultMsg{status: msg.status, err: msg.err}
		}

		_, err = m.ledger.UpdateTransaction(ctx, sheetID, selected.ID, ledger.TransactionUpdate{
			Amount:   &value,
			Purpose:  &purpose,
			Category: &category,
			Kind:     &kind,
		})
		msg := queuedStatus("Saved.", err)

		return saveTxResultMsg{status: msg.status, err: msg.err}
	}
}

func (m TransactionsModel) deleteTxCmd() tea.Cmd {
	sheetID := m.sheet.ID
	tx := *m.selectedTx

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		msg := queuedStatus(fmt.Sprintf("Deleted %s.", tx.Purpose), m.ledger.DeleteTransaction(ctx, sheetID, tx.ID))

		return saveTxResultMsg{status: msg.status, err: msg.err}
	}
}

// txItemDelegate renders items in the list.
type txItemDelegate struct{}

func (d txItemDelegate) Height() int                             { return 2 }
func (d txItemDelegate) Spacing() int                            { return 0 }
func (d txItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d txItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(txItem)
	if !ok {
		return
	}

	title := i.Title()
	if index == m.Index() {
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("> " + title)
	}

	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "    %s\n", lipgloss.NewStyle().Faint(true).Render(i.Description()))
}
