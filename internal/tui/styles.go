package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/domain"
)

// Colors
var (
	healthyColor = lipgloss.Color("10") // Green
	freshColor   = lipgloss.Color("11") // Yellow
	staleColor   = lipgloss.Color("9")  // Red
	stoppedColor = lipgloss.Color("8")  // Gray

	headerBg   = lipgloss.Color("235")
	statusBg   = lipgloss.Color("236")
	helpBg     = lipgloss.Color("234")
	errorColor = lipgloss.Color("9")
	dimColor   = lipgloss.Color("8")

	// Worker name colors (for log lines)
	processColorList = []lipgloss.Color{
		lipgloss.Color("14"),  // Cyan
		lipgloss.Color("13"),  // Magenta
		lipgloss.Color("12"),  // Blue
		lipgloss.Color("11"),  // Yellow
		lipgloss.Color("10"),  // Green
		lipgloss.Color("208"), // Orange
		lipgloss.Color("207"), // Pink
		lipgloss.Color("159"), // Light blue
		lipgloss.Color("156"), // Light green
	}
)

// Styles
var (
	healthyStyle = lipgloss.NewStyle().Foreground(healthyColor).Bold(true)
	freshStyle   = lipgloss.NewStyle().Foreground(freshColor)
	staleStyle   = lipgloss.NewStyle().Foreground(staleColor).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(stoppedColor)

	defaultProcessStyle = lipgloss.NewStyle()
	masterStyle         = lipgloss.NewStyle().Bold(true)

	headerStyle = lipgloss.NewStyle().
			Background(headerBg).
			Padding(0, 1).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Background(statusBg).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Background(helpBg).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(errorColor).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(dimColor)

	processColors []lipgloss.Style
)

func init() {
	for _, color := range processColorList {
		processColors = append(processColors, lipgloss.NewStyle().Foreground(color))
	}
}

// livenessStyle colors a worker by what its heartbeat says
func livenessStyle(w api.WorkerResponse) lipgloss.Style {
	if w.Status != string(domain.WorkerStateRunning) {
		return stoppedStyle
	}
	switch domain.Liveness(w.Liveness) {
	case domain.LivenessHealthy:
		return healthyStyle
	case domain.LivenessStale:
		return staleStyle
	default:
		return freshStyle
	}
}
