package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/notify"
)

const maxLogLines = 10

type Model struct {
	state   account.Snapshot
	logs    []string
	spinner spinner.Model
	width   int
	height  int
	quit    bool
	errors  int
	logPath string
}

type StateUpdate struct {
	State account.Snapshot
}

type NotificationMsg struct {
	Notification notify.Notification
}

type LogMessage struct {
	Message string
}

func NewModel(logPath string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		logs:    []string{},
		spinner: sp,
		logPath: logPath,
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case StateUpdate:
		m.state = msg.State

	case NotificationMsg:
		m = m.handleNotification(msg.Notification)

	case LogMessage:
		m = m.appendLog(msg.Message)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleNotification(n notify.Notification) Model {
	if n.Type == notify.Error {
		m.errors++
	}

	line := fmt.Sprintf("%s %s", notificationIcon(n.Type), strings.TrimSpace(n.Message))
	if n.Title != "" {
		line = fmt.Sprintf("%s %s: %s", notificationIcon(n.Type), n.Title, strings.TrimSpace(n.Message))
	}
	if n.Link != "" {
		line += fmt.Sprintf(" [%s: %s]", linkTitle(n), n.Link)
	}
	return m.appendLog(line)
}

func (m Model) appendLog(message string) Model {
	logs := append([]string(nil), m.logs...)
	logs = append(logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
	if len(logs) > maxLogLines {
		logs = logs[len(logs)-maxLogLines:]
	}
	m.logs = logs
	return m
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("🔑 Keeper Sync Monitor"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	summary := fmt.Sprintf("Installed: %s | Initialized: %s | Authorized: %s | ❌ Errors: %d",
		flag(m.state.Installed), flag(m.state.Initialized), flag(m.state.Authorized), m.errors)
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	s.WriteString(sectionStyle.Render(m.walletSection()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(maxLogLines + 1)

	var logSection strings.Builder
	logSection.WriteString("📝 Notifications\n")
	for _, line := range m.logs {
		logSection.WriteString(line + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	footer := "Press 'q' to quit"
	if m.logPath != "" {
		footer += " | Logs: " + m.logPath
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func (m Model) walletSection() string {
	var w strings.Builder
	w.WriteString("👛 Wallet\n")
	w.WriteString(strings.Repeat("─", 60) + "\n")

	if !m.state.Installed {
		w.WriteString(fmt.Sprintf("%s waiting for Waves Keeper...\n", m.spinner.View()))
		return w.String()
	}

	if n := m.state.Network; n != nil {
		w.WriteString(fmt.Sprintf("Network:  %s  %s\n", n.Code, n.Server))
	} else {
		w.WriteString("Network:  -\n")
	}

	if a := m.state.Account; a != nil {
		w.WriteString(fmt.Sprintf("Account:  %s (%s)\n", truncate(a.Address, 40), a.Name))
		if a.Balance != nil {
			w.WriteString(fmt.Sprintf("Balance:  %s available, %s leased out\n", a.Balance.Available, a.Balance.LeasedOut))
		}
		w.WriteString(fmt.Sprintf("Scripted: %s\n", flag(m.state.Scripted)))
	} else {
		w.WriteString("Account:  -\n")
	}

	if len(m.state.Assets) == 0 {
		return w.String()
	}

	ids := make([]string, 0, len(m.state.Assets))
	for id := range m.state.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	assetStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	w.WriteString(fmt.Sprintf("\nAssets (%d)\n", len(ids)))
	for _, id := range ids {
		asset := m.state.Assets[id]
		w.WriteString(assetStyle.Render(fmt.Sprintf("  %-20s %-44s %d", truncate(asset.Name, 20), truncate(id, 44), asset.Decimals)) + "\n")
	}
	return w.String()
}

func flag(v bool) string {
	if v {
		return "✅"
	}
	return "⏳"
}

func notificationIcon(t notify.Type) string {
	switch t {
	case notify.Error:
		return "❌"
	case notify.Warning:
		return "⚠️"
	case notify.Success:
		return "✅"
	default:
		return "ℹ️"
	}
}

func linkTitle(n notify.Notification) string {
	if n.LinkTitle != "" {
		return n.LinkTitle
	}
	return "link"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
