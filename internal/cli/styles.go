package cli

import "github.com/charmbracelet/lipgloss"

// Color scheme for program states in "status" output. The "watch"
// dashboard (internal/tui) defines its own styles.
var (
	StyleRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // Green - running
	StyleStopped  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // Red - stopped
	StyleDisabled = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // Gray - disabled

	StyleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
)

// GetStateStyle returns the appropriate style for a program status
// row's state column.
func GetStateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return StyleRunning
	case "disabled":
		return StyleDisabled
	default:
		return StyleStopped
	}
}
