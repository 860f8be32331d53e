package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/domain"
)

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Connecting to horn..."
	}
	if m.mode == ModeHelp {
		return helpView()
	}

	var sb strings.Builder
	sb.WriteString(m.workerPanel())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusBar())
	return sb.String()
}

// filteredEntries returns log entries after applying the solo and
// substring filters
func (m Model) filteredEntries() []api.LogEntryResponse {
	var result []api.LogEntryResponse
	for _, entry := range m.logEntries {
		if m.soloWorker != "" && entry.Process != m.soloWorker {
			continue
		}
		if m.filterPattern != "" && !containsIgnoreCase(entry.Line, m.filterPattern) {
			continue
		}
		result = append(result, entry)
	}
	return result
}

// updateViewport updates the viewport content
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	entries := m.filteredEntries()
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = m.formatLogEntry(entry)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// formatLogEntry formats a single log entry for display
func (m Model) formatLogEntry(entry api.LogEntryResponse) string {
	ts := entry.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err == nil {
		ts = t.Format("15:04:05")
	}

	name := m.processStyle(entry.Process).Render(fmt.Sprintf("%-10s", entry.Process))
	indicator := ""
	if domain.Level(entry.Level).IsError() {
		indicator = errorStyle.Render(" ERR ")
	}
	return fmt.Sprintf("%s %s%s %s", dimStyle.Render(ts), name, indicator, entry.Line)
}

// processStyle picks the name color: workers by panel position, the master
// and the view itself fixed
func (m Model) processStyle(name string) lipgloss.Style {
	switch name {
	case "master":
		return masterStyle
	case systemProcess:
		return errorStyle
	}
	for i, w := range m.workers {
		if w.Name == name {
			return processColors[i%len(processColors)]
		}
	}
	return defaultProcessStyle
}

// workerPanel renders the worker status header
func (m Model) workerPanel() string {
	items := make([]string, 0, len(m.workers))
	for i, w := range m.workers {
		name := w.Name
		if m.soloWorker == w.Name {
			name = "[" + name + "]"
		}
		label := fmt.Sprintf("%d:%s", i+1, name)
		if w.PID > 0 {
			label += fmt.Sprintf(" %d", w.PID)
		}
		items = append(items, livenessStyle(w).Render(label))
	}
	if len(items) == 0 {
		items = append(items, dimStyle.Render("no workers"))
	}
	return headerStyle.Render(strings.Join(items, "  "))
}

// statusBar renders the bottom status bar
func (m Model) statusBar() string {
	var left string
	switch {
	case m.mode == ModeFilter:
		left = "Filter: " + m.textInput.View()
	case m.connectionError != nil:
		left = "Connection error: " + truncate(m.connectionError.Error(), maxErrorDisplayLen)
	case m.soloWorker != "":
		left = fmt.Sprintf("Showing: %s (ESC to clear)", m.soloWorker)
	case m.filterPattern != "":
		left = fmt.Sprintf("Filter: %s (ESC to clear)", m.filterPattern)
	default:
		left = "? for help"
		if m.notice != "" {
			left += " | " + m.notice
		}
	}

	follow := "[FOLLOW]"
	if !m.followMode {
		follow = "[PAUSED]"
	}
	right := fmt.Sprintf("%s %d/%d lines", follow, len(m.filteredEntries()), len(m.logEntries))

	leftWidth := max(m.width-len(right)-4, 0)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		statusStyle.Width(leftWidth).Render(left), "  ", statusStyle.Render(right))
}

func helpView() string {
	return helpStyle.Render(`
horn attach

Navigation:
  j/↓        Scroll down
  k/↑        Scroll up (pauses auto-follow)
  g/Home     Go to top (pauses auto-follow)
  G/End      Go to bottom (resumes auto-follow)
  PgUp/PgDn  Page up/down
  F          Toggle auto-follow mode

Filtering:
  1-9        Solo worker (toggle)
  0          Solo master
  / or s     Substring filter
  ESC        Clear filters

Other:
  R          Reload: replace every worker
  ?          Toggle help
  q/Ctrl+C   Quit (master keeps running)

Press any key to close help...
`)
}

// containsIgnoreCase performs a case-insensitive substring search
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
