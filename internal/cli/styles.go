package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/domain"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// stateStyle colors a worker or supervisor state
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running", string(domain.LivenessHealthy):
		return runningStyle
	case string(domain.LivenessFresh), "stopping":
		return warnStyle
	case string(domain.LivenessStale):
		return errorStyle
	default:
		return stoppedStyle
	}
}

// renderStatus formats the status command output
func renderStatus(status *api.StatusResponse, workers []api.WorkerResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s (pid %d)\n", labelStyle.Render("Status:"), stateStyle(status.Status).Render(status.Status), status.PID)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Uptime:"), formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Config:"), status.ConfigFile)
	fmt.Fprintf(&b, "%s %d/%d running\n\n", labelStyle.Render("Workers:"), status.Running, status.Workers)

	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		pid := "-"
		if w.PID > 0 {
			pid = strconv.Itoa(w.PID)
		}
		lastExit := w.LastExit
		if lastExit == "" {
			lastExit = "-"
		}
		rows = append(rows, []string{
			w.Name,
			w.Status,
			pid,
			formatDuration(time.Duration(w.UptimeSeconds) * time.Second),
			strconv.Itoa(w.Restarts),
			w.Liveness,
			lastExit,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("NAME", "STATUS", "PID", "UPTIME", "RESTARTS", "LIVENESS", "LAST EXIT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(rows) {
				return cellStyle
			}
			if col == 1 || col == 5 {
				return cellStyle.Inherit(stateStyle(rows[row][col]))
			}
			return cellStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}

// formatDuration formats a duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
