package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/radiopad/internal/events"
	"github.com/mmcdole/radiopad/internal/preferences"
	"github.com/mmcdole/radiopad/internal/service"
	"github.com/mmcdole/radiopad/internal/state"
	"github.com/mmcdole/radiopad/internal/switchboard"
)

// Sender receives messages from outside the event loop; *tea.Program
// implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Buses groups the event buses the TUI listens on.
type Buses struct {
	Preferences *events.Bus
	State       *state.Store
	Switchboard *events.Bus
	Controller  *events.Bus
}

// Bridge forwards bus events into the program as messages.
func Bridge(p Sender, b Buses) {
	forward := func(msg tea.Msg) { p.Send(msg) }

	if b.Preferences != nil {
		events.On(b.Preferences, preferences.EventChange, func(ctx context.Context, c preferences.Change) error {
			forward(PreferencesChangedMsg{Key: c.Key})
			return nil
		})
		events.On(b.Preferences, preferences.EventOptionsChanged, func(ctx context.Context, c preferences.OptionsChange) error {
			forward(PreferencesChangedMsg{Key: c.Key})
			return nil
		})
	}

	if b.State != nil {
		st := b.State
		events.On(st.Events(), state.EventChange, func(ctx context.Context, c state.Change) error {
			forward(StateChangedMsg{Key: c.Key, Snapshot: st.Snapshot()})
			return nil
		})
	}

	if b.Switchboard != nil {
		for _, name := range []string{switchboard.EventConnecting, switchboard.EventConnect} {
			events.On(b.Switchboard, name, func(ctx context.Context, endpoint string) error {
				forward(ConnectionMsg{Event: name, Endpoint: endpoint})
				return nil
			})
		}
		b.Switchboard.Register(switchboard.EventDisconnect, func(ctx context.Context, _ any) error {
			forward(ConnectionMsg{Event: switchboard.EventDisconnect})
			return nil
		})
		events.On(b.Switchboard, switchboard.EventError, func(ctx context.Context, message string) error {
			forward(NoticeMsg{Text: message})
			return nil
		})
	}

	if b.Controller != nil {
		events.On(b.Controller, service.EventNotice, func(ctx context.Context, n service.Notice) error {
			forward(NoticeMsg{Text: n.Message})
			return nil
		})
	}
}
