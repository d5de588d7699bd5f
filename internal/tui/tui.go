package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emiliancristea/bunker-sharescreen/internal/session"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	sharingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	memberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// StateChangedMsg asks the model to re-read the session snapshot.
type StateChangedMsg struct{}

// DisconnectedMsg means the signaling connection dropped.
type DisconnectedMsg struct{}

// ErrMsg carries a fatal or status error into the view.
type ErrMsg struct{ Err error }

type shareResultMsg struct{ err error }

// Model is the status view for one joined room.
type Model struct {
	manager *session.Manager
	snap    session.Snapshot

	joined       bool
	disconnected bool
	lastErr      string
}

// New creates the model over a session manager.
func New(manager *session.Manager) Model {
	return Model{
		manager: manager,
		snap:    manager.Snapshot(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.manager.Close()
			return m, tea.Quit

		case "s":
			if m.disconnected || m.snap.Sharing {
				return m, nil
			}
			m.lastErr = ""
			manager := m.manager
			return m, func() tea.Msg {
				return shareResultMsg{err: manager.StartSharing(context.Background())}
			}

		case "x":
			m.manager.StopSharing()
			m.snap = m.manager.Snapshot()
			return m, nil
		}

	case StateChangedMsg:
		m.snap = m.manager.Snapshot()
		m.joined = true
		return m, nil

	case shareResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		m.snap = m.manager.Snapshot()
		return m, nil

	case DisconnectedMsg:
		m.disconnected = true
		return m, nil

	case ErrMsg:
		m.lastErr = msg.Err.Error()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("bunker-sharescreen"))
	b.WriteString("\n\n")

	switch {
	case m.disconnected:
		b.WriteString(errorStyle.Render("Disconnected from server"))
	case m.snap.Sharing:
		b.WriteString(sharingStyle.Render(fmt.Sprintf("Sharing to %d peer(s)", m.snap.PeerCount)))
	case m.snap.RemoteSharer != "":
		b.WriteString(statusStyle.Render(fmt.Sprintf("Watching %s", shortID(m.snap.RemoteSharer))))
	default:
		b.WriteString(statusStyle.Render(fmt.Sprintf("Connected to room: %s (not sharing)", m.snap.Room)))
	}
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("Members (%d):", len(m.snap.Members))))
	b.WriteString("\n")
	if len(m.snap.Members) == 0 {
		b.WriteString(dimStyle.Render("  nobody else here yet"))
		b.WriteString("\n")
	}
	for _, id := range m.snap.Members {
		marker := "  "
		if id == m.snap.RemoteSharer {
			marker = "▶ "
		}
		b.WriteString(memberStyle.Render(marker + shortID(id)))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s share · x stop · q quit"))
	b.WriteString("\n")

	return b.String()
}

// shortID trims a uuid down to something readable.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "…"
	}
	return id
}
