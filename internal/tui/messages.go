package tui

import (
	"github.com/mmcdole/radiopad/internal/state"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// StateChangedMsg carries the app state after a change
type StateChangedMsg struct {
	Key      string
	Snapshot state.Snapshot
}

// PreferencesChangedMsg signals that a preference value or its options changed
type PreferencesChangedMsg struct {
	Key string
}

// ConnectionMsg reports a switchboard lifecycle event
type ConnectionMsg struct {
	Event    string
	Endpoint string
}

// NoticeMsg is a message for the status line
type NoticeMsg struct {
	Text string
}

// InitDoneMsg signals that stored preferences have been loaded and announced
type InitDoneMsg struct{}
