package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("3")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("240"))

	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Faint(true)

	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

// View renders the dashboard: a width/height guard ("Loading..."
// until a WindowSizeMsg arrives), then a title bar, separator,
// header, and one row per program.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width < 20 || m.height < 8 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteString("\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	b.WriteString(m.renderHeader())
	for _, row := range m.rows {
		b.WriteString(m.renderRow(row))
	}
	b.WriteString("\n")
	b.WriteString(m.renderControls())

	return b.String()
}

func (m Model) renderTitleBar() string {
	status := m.spinner.View() + " watching"
	if m.paused {
		status = "paused"
	}
	title := fmt.Sprintf("usrsvc watch [%s] — %d programs", status, len(m.rows))
	if !m.lastPoll.IsZero() {
		title += fmt.Sprintf(" — last poll %s ago", formatDuration(time.Since(m.lastPoll)))
	}
	return titleStyle.Render(title)
}

func (m Model) renderHeader() string {
	return headerStyle.Render(fmt.Sprintf("  %-20s %-10s %8s %10s  %s", "NAME", "STATE", "PID", "RSS(KB)", "DETAIL")) + "\n"
}

func (m Model) renderRow(r Row) string {
	var state string
	switch {
	case !r.Enabled:
		state = disabledStyle.Render("disabled")
	case r.Running:
		state = runningStyle.Render("running")
	default:
		state = stoppedStyle.Render("stopped")
	}

	pid := "—"
	if r.Pid != 0 {
		pid = fmt.Sprintf("%d", r.Pid)
	}
	rss := "—"
	if r.RSSKB != 0 {
		rss = fmt.Sprintf("%d", r.RSSKB)
	}

	return fmt.Sprintf("  %-20s %-10s %8s %10s  %s\n", r.Name, state, pid, rss, r.Detail)
}

func (m Model) renderControls() string {
	return helpStyle.Render("  p:Pause/Resume | q:Quit")
}
