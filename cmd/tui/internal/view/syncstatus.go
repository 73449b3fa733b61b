package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

const maxEventLog = 12

type SyncModel struct {
	CommonModel
	engine *syncengine.Engine
	ledger *ledger.Service
	events <-chan events.Event

	status   syncengine.Status
	overview ledger.Overview
	log      []events.Event
	spinner  spinner.Model
	busy     bool
	message  string
	err      error
}

// NewSyncModel shows the engine's state. Events received on evs are appended
// to the on-screen log.
func NewSyncModel(engine *syncengine.Engine, led *ledger.Service, evs <-chan events.Event) SyncModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return SyncModel{
		engine:  engine,
		ledger:  led,
		events:  evs,
		spinner: s,
	}
}

func (m SyncModel) Title() string { return "Sync" }

func (m SyncModel) ShortHelp() string {
	return "Esc: back | s: sync now | p: prune | c: remove synced | r: refresh"
}

func (m SyncModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.waitEventCmd())
}

func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncStatusMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.status = msg.status
		m.overview = msg.overview

		return m, nil

	case syncEventMsg:
		m.log = append(m.log, msg.event)
		if len(m.log) > maxEventLog {
			m.log = m.log[len(m.log)-maxEventLog:]
		}

		return m, tea.Batch(m.loadCmd(), m.waitEventCmd())

	case manualSyncMsg:
		m.busy = false
		m.message = msg.result.Message
		if msg.result.Success {
			m.message = fmt.Sprintf("%s: %d synced, %d failed, %d remaining.",
				msg.result.Message, msg.result.Summary.Synced, msg.result.Summary.Failed, msg.result.Summary.Remaining)
		}

		return m, m.loadCmd()

	case syncActionMsg:
		m.message = msg.message
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
		}

		return m, m.loadCmd()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadCmd()
		case "s":
			if m.busy {
				return m, nil
			}

			m.busy = true
			m.message = ""

			return m, tea.Batch(m.spinner.Tick, m.manualSyncCmd())
		case "p":
			return m, m.pruneCmd()
		case "c":
			return m, m.removeSyncedCmd()
		}
	}

	return m, nil
}

func (m SyncModel) View() string {
	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	online := errorStyle("offline")
	if m.status.Online {
		online = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render("online")
	}

	last := "never"
	if m.status.LastSync != nil {
		last = m.status.LastSync.Local().Format(time.DateTime)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Connection: %s   Syncing: %t   Last sync: %s\n", online, m.status.Syncing, last)
	fmt.Fprintf(&b, "Queued: %d   Pending records: %d   Total unsynced: %s\n\n",
		m.status.QueuedOperations, m.status.PendingOperations, activeStyle(fmt.Sprint(m.status.TotalUnsynced)))

	fmt.Fprintf(&b, "Sheets: %d total, %d synced, %d local, %d syncing, %d error\n",
		m.overview.Total, m.overview.Synced, m.overview.Local, m.overview.Syncing, m.overview.Error)

	for _, sh := range m.overview.Sheets {
		fmt.Fprintf(&b, "  %-30s %-8s %d/%d unsynced\n", sh.Name, syncBadge(sh.SyncStatus), sh.UnsyncedCount, sh.TransactionCount)
	}

	if m.busy {
		fmt.Fprintf(&b, "\n%s Syncing...\n", m.spinner.View())
	} else if m.message != "" {
		fmt.Fprintf(&b, "\n%s\n", lipgloss.NewStyle().Faint(true).Render(m.message))
	}

	if len(m.log) > 0 {
		b.WriteString("\nRecent events:\n")

		for _, e := range m.log {
			fmt.Fprintf(&b, "  %s %s\n", e.At.Local().Format(time.TimeOnly), describeEvent(e))
		}
	}

	return lipgloss.NewStyle().Padding(1).Render(b.String())
}

func describeEvent(e events.Event) string {
	switch e.Type {
	case events.SyncProgress:
		return fmt.Sprintf("progress %d/%d", e.Current, e.Total)
	case events.SyncCompleted:
		return fmt.Sprintf("completed, %d synced", e.SyncedItems)
	case events.SyncFailed:
		return errorStyle("failed: " + e.Error)
	case events.OperationRetry:
		return fmt.Sprintf("retry %s #%d in %s", e.OperationType, e.RetryCount, e.RetryDelay)
	case events.OperationFailed:
		return errorStyle(fmt.Sprintf("dropped %s: %s", e.OperationType, e.Error))
	case events.SyncSkipped:
		return "skipped: " + e.Reason
	}

	if e.Message != "" {
		return string(e.Type) + ": " + e.Message
	}

	return string(e.Type)
}

// Messages

type syncStatusMsg struct {
	status   syncengine.Status
	overview ledger.Overview
	err      error
}

type syncEventMsg struct {
	event events.Event
}

type manualSyncMsg struct {
	result syncengine.Result
}

type syncActionMsg struct {
	message string
	err     error
}

func (m SyncModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		status, err := m.engine.Status(ctx)
		if err != nil {
			return syncStatusMsg{err: err}
		}

		overview, err := m.ledger.SyncOverview(ctx)

		return syncStatusMsg{status: status, overview: overview, err: err}
	}
}

func (m SyncModel) waitEventCmd() tea.Cmd {
	if m.events == nil {
		return nil
	}

	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return nil
		}

		return syncEventMsg{event: e}
	}
}

func (m SyncModel) manualSyncCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		return manualSyncMsg{result: m.engine.ManualSync(ctx)}
	}
}

func (m SyncModel) pruneCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		ops, records, err := m.engine.Prune(ctx)

		return syncActionMsg{message: fmt.Sprintf("Pruned %d operations and %d records.", ops, records), err: err}
	}
}

func (m SyncModel) removeSyncedCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		n, err := m.engine.RemoveSynced(ctx)

		return syncActionMsg{message: fmt.Sprintf("Removed %d synced records.", n), err: err}
	}
}

// RefreshCmd reloads the status without starting another event waiter.
func (m SyncModel) RefreshCmd() tea.Cmd {
	return m.loadCmd()
}

// IsSyncMsg reports whether msg belongs to the sync screen.
func IsSyncMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case syncStatusMsg, syncEventMsg, manualSyncMsg, syncActionMsg:
		return true
	}

	return false
}
