package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// App wraps the bubbletea program.
type App struct {
	model     Model
	repainter *Repainter
}

// New creates the application. repainter must be the one the supervisor was
// built with.
func New(ctx context.Context, b Backend, repainter *Repainter) *App {
	return &App{model: NewModel(ctx, b), repainter: repainter}
}

// Run blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	program := tea.NewProgram(a.model, tea.WithAltScreen(), tea.WithContext(ctx))

	pumpCtx, stop := context.WithCancel(ctx)
	defer stop()
	go a.repainter.Pump(pumpCtx, program.Send)

	_, err := program.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
