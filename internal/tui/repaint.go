package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// RepaintMsg asks the model to re-read hub state.
type RepaintMsg struct{}

// Repainter turns hub repaint requests into RepaintMsg deliveries. Requests
// made while one is pending are coalesced, so RequestRepaint never blocks
// an ingest worker on the render loop.
type Repainter struct {
	signal chan struct{}
}

// NewRepainter creates a Repainter. Nothing is delivered until Pump runs.
func NewRepainter() *Repainter {
	return &Repainter{signal: make(chan struct{}, 1)}
}

// RequestRepaint implements hub.Repainter.
func (r *Repainter) RequestRepaint() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Pump forwards pending requests to send until ctx is done. send is usually
// (*tea.Program).Send.
func (r *Repainter) Pump(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.signal:
			send(RepaintMsg{})
		}
	}
}
