package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/radiopad/internal/switchboard"
	"github.com/mmcdole/radiopad/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderHeader(), "")

	switch m.Mode {
	case ViewSettings:
		sections = append(sections, m.Settings.View())
	default:
		sections = append(sections, m.Grid.View())
	}

	sections = append(sections, "", m.renderNowPlaying())
	if m.notice != "" {
		sections = append(sections, styles.ErrorStyle.Render(m.notice))
	}
	sections = append(sections, m.renderHelp())

	view := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.Modal.IsVisible() && m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.Modal.View())
	}
	if m.Modal.IsVisible() {
		return lipgloss.JoinVertical(lipgloss.Left, view, m.Modal.View())
	}
	return view
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("radiopad")
	if p := m.snapshot.Player; p != nil {
		title += styles.SubtitleStyle.Render(" · " + p.DisplayName())
	}
	return title + "  " + m.renderConnection()
}

func (m Model) renderConnection() string {
	switch m.connection {
	case switchboard.EventConnect:
		return styles.SuccessStyle.Render(styles.ConnectedChar + " connected")
	case switchboard.EventConnecting:
		return styles.AccentStyle.Render(styles.ConnectingChar + " connecting")
	case switchboard.EventDisconnect:
		return styles.ErrorStyle.Render(styles.DisconnectedChar + " reconnecting")
	}
	return styles.DimStyle.Render(styles.DisconnectedChar + " not connected")
}

// renderNowPlaying shows the playing station, or "..." when nothing plays
func (m Model) renderNowPlaying() string {
	playing := m.snapshot.Playing()
	if playing == "" {
		playing = "..."
	}
	return styles.SubtitleStyle.Render("Now playing: ") + styles.AccentStyle.Render(playing)
}

func (m Model) renderHelp() string {
	var bindings []key.Binding
	if m.Mode == ViewSettings {
		bindings = []key.Binding{Keys.Up, Keys.Down, Keys.Left, Keys.Edit, Keys.Escape, Keys.Quit}
	} else {
		bindings = []key.Binding{Keys.Play, Keys.Stop, Keys.Filter, Keys.Settings, Keys.Quit}
	}

	parts := make([]string, len(bindings))
	for i, b := range bindings {
		h := b.Help()
		parts[i] = styles.HelpKeyStyle.Render(h.Key) + " " + styles.HelpDescStyle.Render(h.Desc)
	}
	return strings.Join(parts, "  ")
}
