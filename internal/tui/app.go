package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/pairview/internal/event"
)

// App wraps the Bubbletea program.
type App struct {
	model Model
	bus   *event.Bus
}

// New creates a TUI application. Events published on bus show on the
// status line; bus may be nil.
func New(model Model, bus *event.Bus) *App {
	return &App{model: model, bus: bus}
}

// Run starts the program and blocks until the user quits or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	program := tea.NewProgram(a.model, tea.WithAltScreen(), tea.WithContext(ctx))

	if a.bus != nil {
		id := a.bus.SubscribeAll(func(e event.Event) {
			program.Send(eventMsg{event: e})
		})
		defer a.bus.Unsubscribe(id)
	}

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
