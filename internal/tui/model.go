package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/constants"
)

const (
	// maxLogEntries is the maximum number of log entries to keep in memory
	maxLogEntries = 1000
	// maxErrorDisplayLen is the maximum length of messages in the status bar
	maxErrorDisplayLen = 60
	// refreshInterval is how often the worker panel is re-fetched
	refreshInterval = 2 * time.Second
	// noticeDuration is how long a notice stays in the status bar
	noticeDuration = 3 * time.Second
	// nearBottomThreshold is the scroll percentage treated as "at the bottom"
	nearBottomThreshold = 0.98
	// systemProcess names entries produced by the view itself
	systemProcess = "attach"
)

// Mode represents the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeHelp
)

// LogEntryMsg is sent when a new log entry arrives
type LogEntryMsg api.LogEntryResponse

// EventMsg is sent for each supervisor event
type EventMsg api.EventResponse

// WorkersMsg carries a fresh worker list
type WorkersMsg []api.WorkerResponse

// ClientErrorMsg is sent when an API call fails
type ClientErrorMsg struct {
	Err error
}

// ReloadResultMsg is sent when a reload request completes
type ReloadResultMsg struct {
	Err error
}

// TickMsg is sent periodically
type TickMsg time.Time

// noticeClearMsg clears a notice if it is still the current one
type noticeClearMsg int

// Model is the bubbletea model for the attach view
type Model struct {
	client Client

	workers    []api.WorkerResponse
	logEntries []api.LogEntryResponse

	viewport  viewport.Model
	textInput textinput.Model
	mode      Mode

	soloWorker    string
	filterPattern string
	followMode    bool

	connectionError error
	notice          string
	noticeSeq       int

	width  int
	height int
	ready  bool
}

// NewModel creates the attach view model
func NewModel(client Client) Model {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		client:     client,
		textInput:  ti,
		mode:       ModeNormal,
		followMode: true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchWorkers(), tickCmd())
}

func (m Model) fetchWorkers() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.GetWorkers()
		if err != nil {
			return ClientErrorMsg{Err: err}
		}
		return WorkersMsg(resp.Workers)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// setNotice shows msg in the status bar for a while
func (m *Model) setNotice(msg string) tea.Cmd {
	m.noticeSeq++
	m.notice = msg
	seq := m.noticeSeq
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeClearMsg(seq)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		m.updateViewport()

	case LogEntryMsg:
		m.handleLogEntry(api.LogEntryResponse(msg))

	case EventMsg:
		cmds = append(cmds, m.setNotice(describeEvent(api.EventResponse(msg))), m.fetchWorkers())

	case WorkersMsg:
		m.workers = []api.WorkerResponse(msg)
		m.connectionError = nil

	case ClientErrorMsg:
		m.connectionError = msg.Err

	case ReloadResultMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setNotice("Reload failed: "+truncate(msg.Err.Error(), maxErrorDisplayLen)))
		} else {
			cmds = append(cmds, m.setNotice("Reload requested"))
		}

	case noticeClearMsg:
		if int(msg) == m.noticeSeq {
			m.notice = ""
		}

	case TickMsg:
		cmds = append(cmds, m.fetchWorkers(), tickCmd())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeFilter:
		return m.handleFilterKey(msg)
	case ModeHelp:
		m.mode = ModeNormal
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "R":
		client := m.client
		return m, func() tea.Msg {
			return ReloadResultMsg{Err: client.Reload()}
		}

	case "?":
		m.mode = ModeHelp

	case "/", "s":
		m.mode = ModeFilter
		m.textInput.SetValue("")
		m.textInput.Focus()

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		if idx < len(m.workers) {
			name := m.workers[idx].Name
			if m.soloWorker == name {
				m.soloWorker = ""
			} else {
				m.soloWorker = name
			}
			m.updateViewport()
		}

	case "0":
		m.soloWorker = constants.MasterProcess
		m.updateViewport()

	case "esc":
		m.soloWorker = ""
		m.filterPattern = ""
		m.updateViewport()

	case "up", "k":
		m.viewport.LineUp(1)
		m.followMode = false

	case "down", "j":
		m.viewport.LineDown(1)

	case "pgup":
		m.viewport.HalfViewUp()
		m.followMode = false

	case "pgdown":
		m.viewport.HalfViewDown()

	case "home", "g":
		m.viewport.GotoTop()
		m.followMode = false

	case "end", "G":
		m.viewport.GotoBottom()
		m.followMode = true

	case "F":
		m.followMode = !m.followMode
		if m.followMode {
			m.viewport.GotoBottom()
		}
	}

	return m, nil
}

// handleFilterKey edits the substring filter, applying it live
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.textInput.Blur()
		m.filterPattern = ""
		m.updateViewport()
		return m, nil

	case "enter":
		m.mode = ModeNormal
		m.textInput.Blur()
		m.filterPattern = m.textInput.Value()
		m.updateViewport()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.filterPattern = m.textInput.Value()
	m.updateViewport()
	return m, cmd
}

// handleWindowSize handles window resize messages
func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 4 // Worker panel
	footerHeight := 2 // Status bar
	viewportHeight := max(msg.Height-headerHeight-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.viewport.YPosition = headerHeight
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
}

// handleLogEntry appends an entry, keeping the newest maxLogEntries
func (m *Model) handleLogEntry(entry api.LogEntryResponse) {
	wasNearBottom := m.isNearBottom()

	m.logEntries = append(m.logEntries, entry)
	if len(m.logEntries) > maxLogEntries {
		kept := make([]api.LogEntryResponse, maxLogEntries)
		copy(kept, m.logEntries[len(m.logEntries)-maxLogEntries:])
		m.logEntries = kept
	}
	m.updateViewport()

	if wasNearBottom {
		m.followMode = true
	}
	if m.followMode {
		m.viewport.GotoBottom()
	}
}

func (m *Model) isNearBottom() bool {
	if !m.ready || m.viewport.AtBottom() {
		return true
	}
	return m.viewport.ScrollPercent() >= nearBottomThreshold
}

// describeEvent renders a supervisor event for the status bar
func describeEvent(e api.EventResponse) string {
	switch {
	case e.Worker == "":
		return e.Type
	case e.Info != nil && e.Info.LastExit != "" && e.Type == "worker_exited":
		return fmt.Sprintf("%s: %s (%s)", e.Worker, e.Type, e.Info.LastExit)
	default:
		return e.Worker + ": " + e.Type
	}
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
