package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/expenso/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/expenso/internal/app"
	"github.com/MrJamesThe3rd/expenso/internal/config"
	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/export"
	"github.com/MrJamesThe3rd/expenso/internal/importer"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
	"github.com/MrJamesThe3rd/expenso/internal/session"
)

const eventBuffer = 64

type model struct {
	appName string
	sess    *session.Session
	logger  *slog.Logger

	currentView View

	sheetsView       view.SheetsModel
	transactionsView view.TransactionsModel
	importView       view.ImportModel
	exportView       view.ExportModel
	syncView         view.SyncModel
}

type View int

const (
	ViewMenu         View = 0
	ViewSheets       View = 1
	ViewTransactions View = 2
	ViewImport       View = 3
	ViewExport       View = 4
	ViewSync         View = 5
)

func initialModel(cfg *config.Config, sess *session.Session, evs chan events.Event, logger *slog.Logger) model {
	return model{
		appName:     cfg.App.Name,
		sess:        sess,
		logger:      logger,
		currentView: ViewMenu,
		sheetsView:  view.NewSheetsModel(sess.Ledger),
		syncView:    view.NewSyncModel(sess.Engine, sess.Ledger, evs),
	}
}

func (m model) Init() tea.Cmd {
	// Keeps the event log fed even while another screen is shown.
	return m.syncView.Init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewSheets
				m.sheetsView = view.NewSheetsModel(m.sess.Ledger)

				return m, m.sheetsView.Init()
			case "2":
				m.currentView = ViewSync
				return m, m.syncView.RefreshCmd()
			}
		}
	case view.BackMsg:
		switch m.currentView {
		case ViewTransactions:
			m.currentView = ViewSheets
			return m, m.sheetsView.Init()
		case ViewImport, ViewExport:
			m.currentView = ViewTransactions
			return m, m.transactionsView.Init()
		}

		m.currentView = ViewMenu
		return m, nil
	case view.OpenSheetMsg:
		m.currentView = ViewTransactions
		m.transactionsView = view.NewTransactionsModel(m.sess.Ledger, m.sess.Matching, msg.Sheet)

		return m, m.transactionsView.Init()
	case view.OpenImportMsg:
		m.currentView = ViewImport
		m.importView = view.NewImportModel(m.sess.Ledger, importer.NewService(m.sess.Matching, m.logger), msg.Sheet)

		return m, m.importView.Init()
	case view.OpenExportMsg:
		m.currentView = ViewExport
		m.exportView = view.NewExportModel(export.NewService(m.sess.Ledger), msg.Sheet)

		return m, m.exportView.Init()
	}

	// Sync messages reach the sync view wherever the user is.
	if view.IsSyncMsg(msg) && m.currentView != ViewSync {
		var newModel tea.Model
		newModel, cmd = m.syncView.Update(msg)
		m.syncView = newModel.(view.SyncModel)

		return m, cmd
	}

	switch m.currentView {
	case ViewSheets:
		var newModel tea.Model
		newModel, cmd = m.sheetsView.Update(msg)
		m.sheetsView = newModel.(view.SheetsModel)
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.transactionsView.Update(msg)
		m.transactionsView = newModel.(view.TransactionsModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewExport:
		var newModel tea.Model
		newModel, cmd = m.exportView.Update(msg)
		m.exportView = newModel.(view.ExportModel)
	case ViewSync:
		var newModel tea.Model
		newModel, cmd = m.syncView.Update(msg)
		m.syncView = newModel.(view.SyncModel)
	}

	return m, cmd
}

func (m model) View() string {
	var current view.View

	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.appName + " TUI\n\n" +
				"1. Sheets\n" +
				"2. Sync Status\n\n" +
				"q. Quit",
		)
	case ViewSheets:
		current = m.sheetsView
	case ViewTransactions:
		current = m.transactionsView
	case ViewImport:
		current = m.importView
	case ViewExport:
		current = m.exportView
	case ViewSync:
		current = m.syncView
	default:
		return "Unknown View"
	}

	help := lipgloss.NewStyle().Faint(true).Render(current.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).PaddingLeft(1).Render(current.Title()),
		current.View(),
		lipgloss.NewStyle().PaddingLeft(1).Render(help),
	)
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs only go to a file.
	if cfg.Log.File == "" {
		cfg.Log.File = "expenso-tui.log"
	}

	logCloser, err := logging.Setup(logging.Options(cfg.Log))
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()

	a, err := app.Open(ctx, cfg, slog.Default(), app.Options{})
	if err != nil {
		return fmt.Errorf("opening app: %w", err)
	}
	defer a.Close()

	sess, err := a.Sessions.Get(ctx, cfg.App.UserID)
	if err != nil {
		return err
	}

	evs := make(chan events.Event, eventBuffer)
	unsubscribe := sess.Events.Subscribe(func(e events.Event) {
		select {
		case evs <- e:
		default:
		}
	})
	defer unsubscribe()

	p := tea.NewProgram(initialModel(cfg, sess, evs, slog.Default()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("tui failed", "error", err)
		os.Exit(1)
	}
}
