// Package tui is the interactive view behind `horn attach`. It talks to a
// running master through its API only.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/domain"
)

// Client is the part of the API client the view needs
type Client interface {
	GetWorkers() (*api.WorkerListResponse, error)
	Reload() error
	StreamLogs(ctx context.Context, params domain.LogParams, fn func(api.LogEntryResponse)) error
	StreamEvents(ctx context.Context, fn func(api.EventResponse)) error
}

// Run starts the view and blocks until the user quits or ctx ends. The
// master keeps running either way.
func Run(ctx context.Context, client Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(client), tea.WithAltScreen(), tea.WithContext(ctx))

	go forward(ctx, p, "log stream", func(ctx context.Context) error {
		return client.StreamLogs(ctx, domain.LogParams{}, func(e api.LogEntryResponse) {
			p.Send(LogEntryMsg(e))
		})
	})
	go forward(ctx, p, "event stream", func(ctx context.Context) error {
		return client.StreamEvents(ctx, func(e api.EventResponse) {
			p.Send(EventMsg(e))
		})
	})

	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}

// forward runs a stream and reports its end into the log view. No
// reconnect is attempted; the user re-attaches.
func forward(ctx context.Context, p *tea.Program, name string, stream func(context.Context) error) {
	err := stream(ctx)
	if ctx.Err() != nil {
		return
	}

	line := name + " closed"
	if err != nil {
		line = name + " failed: " + err.Error()
	}
	p.Send(LogEntryMsg(api.LogEntryResponse{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Process:   systemProcess,
		Level:     string(domain.LevelError),
		Line:      line,
	}))
}
