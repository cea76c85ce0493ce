package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/radiopad/internal/domain"
)

// initPreferencesCmd loads and announces stored preferences
func (m Model) initPreferencesCmd() tea.Cmd {
	startup := m.startup
	return func() tea.Msg {
		if err := startup(context.Background()); err != nil {
			return ErrMsg{Err: err, Context: "load preferences"}
		}
		return InitDoneMsg{}
	}
}

// playCmd requests a station
func (m Model) playCmd(name string) tea.Cmd {
	p := m.player
	return func() tea.Msg {
		return requestResult(p.Play(name), "play "+name)
	}
}

// stopCmd requests playback stop
func (m Model) stopCmd() tea.Cmd {
	p := m.player
	return func() tea.Msg {
		return requestResult(p.Stop(), "stop")
	}
}

// setPreferenceCmd stores a preference value
func (m Model) setPreferenceCmd(key, raw string) tea.Cmd {
	prefs := m.prefs
	return func() tea.Msg {
		if _, err := prefs.Set(context.Background(), key, raw); err != nil {
			return ErrMsg{Err: err, Context: "save " + key}
		}
		return PreferencesChangedMsg{Key: key}
	}
}

// requestResult maps a station request error to a message. Not being
// connected is already reported by the switchboard's error event.
func requestResult(err error, action string) tea.Msg {
	if err == nil || errors.Is(err, domain.ErrNotConnected) {
		return nil
	}
	return ErrMsg{Err: err, Context: action}
}
