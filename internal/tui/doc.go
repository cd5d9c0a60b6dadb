// Package tui provides the terminal chat used by the chat command.
//
// The chat shows the intake conversation in a scrolling transcript. Once
// intake ends it also shows the processing tools as they run, fed by the
// orchestrator's event emitter. Users quit with Esc or Ctrl+C and start a
// new claim with Ctrl+N.
//
// Usage:
//
//	emitter := orchestrator.NewEventEmitter(100)
//	orch := orchestrator.New(deps, orchestrator.WithEmitter(emitter))
//	mgr := session.NewManager(orch, archive, ttl, cleanup)
//
//	err := tui.Run(ctx, mgr, emitter.Events())
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/claimflow/internal/orchestrator"
)

// Run starts the chat on the alternate screen and blocks until the user
// quits.
func Run(ctx context.Context, chat Chatter, events <-chan orchestrator.Event) error {
	m := NewChatModel(ctx, chat, events)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
