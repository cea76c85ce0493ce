package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/preferences"
	"github.com/mmcdole/radiopad/internal/state"
	"github.com/mmcdole/radiopad/internal/tui/components"
)

// ViewMode is the screen currently shown
type ViewMode int

const (
	ViewStations ViewMode = iota
	ViewSettings
)

// player sends play/stop requests (consumer-defined interface)
type player interface {
	Play(name string) error
	Stop() error
}

// preferenceStore is the part of the preference store the settings view uses
type preferenceStore interface {
	Init(ctx context.Context) error
	Definitions() []preferences.Definition
	Get(key string) (string, bool)
	Options(key string) []domain.Option
	Set(ctx context.Context, key, raw string) (string, error)
}

// Model is the main Bubble Tea model for the application
type Model struct {
	Mode  ViewMode
	Ready bool

	// Services
	player  player
	prefs   preferenceStore
	startup func(ctx context.Context) error
	logger  *slog.Logger

	// UI Components
	Grid     components.StationGrid
	Settings components.SettingsList
	Modal    components.InputModal

	// Data
	snapshot   state.Snapshot
	connection string
	endpoint   string
	notice     string

	width  int
	height int
}

// NewModel creates the application model
func NewModel(p player, prefs preferenceStore, columns int, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		player:   p,
		prefs:    prefs,
		startup:  prefs.Init,
		logger:   logger,
		Grid:     components.NewStationGrid(columns),
		Modal:    components.NewInputModal(),
		Settings: components.SettingsList{},
	}
}

// SetStartup replaces the function run when the program starts. It
// defaults to loading stored preferences.
func (m *Model) SetStartup(fn func(ctx context.Context) error) {
	m.startup = fn
}

// Init loads stored preferences, which starts discovery
func (m Model) Init() tea.Cmd {
	return m.initPreferencesCmd()
}

// Update handles all incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.Ready = true
		m.Grid.SetWidth(msg.Width)
		m.Settings.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case InitDoneMsg:
		m.refreshSettings()
		return m, nil

	case PreferencesChangedMsg:
		m.refreshSettings()
		return m, nil

	case StateChangedMsg:
		m.snapshot = msg.Snapshot
		m.Grid.SetStations(m.snapshot.Stations.Names())
		m.Grid.SetPlaying(m.snapshot.Playing())
		return m, nil

	case ConnectionMsg:
		m.connection = msg.Event
		if msg.Endpoint != "" {
			m.endpoint = msg.Endpoint
		}
		return m, nil

	case NoticeMsg:
		m.notice = msg.Text
		return m, nil

	case ErrMsg:
		m.logger.Error("tui error", "context", msg.Context, "error", msg.Err)
		m.notice = msg.Error()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Modal.IsVisible() {
		var cmd tea.Cmd
		var submitted bool
		m.Modal, cmd, submitted = m.Modal.Update(msg)
		if submitted {
			return m, m.setPreferenceCmd(m.Modal.Key(), m.Modal.Value())
		}
		return m, cmd
	}

	if m.Mode == ViewSettings {
		return m.handleSettingsKey(msg)
	}
	return m.handleStationsKey(msg)
}

func (m Model) handleStationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Grid.IsFiltering() {
		var cmd tea.Cmd
		m.Grid, cmd = m.Grid.UpdateFilter(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Up):
		m.Grid.Move(0, -1)
	case key.Matches(msg, Keys.Down):
		m.Grid.Move(0, 1)
	case key.Matches(msg, Keys.Left):
		m.Grid.Move(-1, 0)
	case key.Matches(msg, Keys.Right):
		m.Grid.Move(1, 0)
	case key.Matches(msg, Keys.Play):
		if name, ok := m.Grid.Selected(); ok {
			return m, m.playCmd(name)
		}
	case key.Matches(msg, Keys.Stop):
		return m, m.stopCmd()
	case key.Matches(msg, Keys.Filter):
		return m, m.Grid.StartFilter()
	case key.Matches(msg, Keys.Escape):
		m.Grid.ClearFilter()
		m.notice = ""
	case key.Matches(msg, Keys.Settings):
		m.Mode = ViewSettings
		m.refreshSettings()
	}
	return m, nil
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Escape), key.Matches(msg, Keys.Settings):
		m.Mode = ViewStations
	case key.Matches(msg, Keys.Up):
		m.Settings.Move(-1)
	case key.Matches(msg, Keys.Down):
		m.Settings.Move(1)
	case key.Matches(msg, Keys.Left), key.Matches(msg, Keys.Right):
		delta := 1
		if key.Matches(msg, Keys.Left) {
			delta = -1
		}
		row, ok := m.Settings.Selected()
		if !ok {
			break
		}
		if value, changed := row.Cycle(delta); changed {
			return m, m.setPreferenceCmd(row.Key, value)
		}
	case key.Matches(msg, Keys.Edit):
		row, ok := m.Settings.Selected()
		if !ok {
			break
		}
		value := row.Value
		if row.Select {
			value = ""
		}
		m.Modal.Show(row.Key, row.Label, value, row.Placeholder)
	}
	return m, nil
}

// refreshSettings rebuilds the settings rows from the preference store
func (m *Model) refreshSettings() {
	defs := m.prefs.Definitions()
	rows := make([]components.SettingRow, 0, len(defs))
	for _, def := range defs {
		value, _ := m.prefs.Get(def.Key())
		row := components.SettingRow{
			Key:    def.Key(),
			Label:  def.Label(),
			Group:  def.Group(),
			Select: def.Kind() == preferences.KindSelect,
			Value:  value,
		}
		switch d := def.(type) {
		case *preferences.TextDefinition:
			row.Placeholder = d.Placeholder
		case *preferences.SelectDefinition:
			row.Options = m.prefs.Options(d.Key())
			row.Placeholder = "type a name"
		}
		rows = append(rows, row)
	}
	m.Settings.SetRows(rows)
}
