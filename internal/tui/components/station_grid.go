package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/radiopad/internal/tui/styles"
)

// Layout constants for the grid
const (
	// Border adds 1 char on each side
	BorderWidth = 2

	// Padding inside the border (Padding(0,1) = 1 left + 1 right)
	HorizontalPadding = 2

	MinCellWidth = 8
)

// StationGrid lays station names out in a fixed number of columns
type StationGrid struct {
	stations []string
	playing  string

	columns int
	cursor  int // index into visible()
	width   int

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filteredIdx  []int // indices into stations; nil when unfiltered
}

// NewStationGrid creates a grid with the given column count
func NewStationGrid(columns int) StationGrid {
	if columns <= 0 {
		columns = 1
	}
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return StationGrid{
		columns:     columns,
		filterInput: ti,
	}
}

// SetStations replaces the station list, keeping the selection on the same
// name when it is still present.
func (g *StationGrid) SetStations(names []string) {
	selected, hadSelection := g.Selected()
	g.stations = names
	g.applyFilter()
	g.cursor = 0
	if hadSelection {
		for i, idx := range g.visible() {
			if g.stations[idx] == selected {
				g.cursor = i
				break
			}
		}
	}
}

// SetPlaying marks the playing station; "" when nothing plays.
func (g *StationGrid) SetPlaying(name string) {
	g.playing = name
}

// SetWidth sets the available width
func (g *StationGrid) SetWidth(width int) {
	g.width = width
}

// Len returns the number of visible stations
func (g StationGrid) Len() int {
	return len(g.visible())
}

// Selected returns the station under the cursor
func (g StationGrid) Selected() (string, bool) {
	vis := g.visible()
	if g.cursor < 0 || g.cursor >= len(vis) {
		return "", false
	}
	return g.stations[vis[g.cursor]], true
}

// Move shifts the cursor by dx cells and dy rows, clamped to the grid.
func (g *StationGrid) Move(dx, dy int) {
	n := len(g.visible())
	if n == 0 {
		return
	}
	next := g.cursor + dx + dy*g.columns
	if next < 0 || next >= n {
		if dy != 0 {
			return
		}
		next = max(0, min(next, n-1))
	}
	g.cursor = next
}

// IsFiltering reports whether the filter input has focus
func (g StationGrid) IsFiltering() bool {
	return g.filterActive
}

// FilterQuery returns the active filter text
func (g StationGrid) FilterQuery() string {
	return g.filterInput.Value()
}

// StartFilter focuses the filter input
func (g *StationGrid) StartFilter() tea.Cmd {
	g.filterActive = true
	return g.filterInput.Focus()
}

// ClearFilter drops the filter and shows every station
func (g *StationGrid) ClearFilter() {
	g.filterActive = false
	g.filterInput.SetValue("")
	g.filterInput.Blur()
	g.filteredIdx = nil
	g.cursor = 0
}

// UpdateFilter feeds a message to the filter input. Enter keeps the filter
// and returns focus to the grid; esc clears it.
func (g StationGrid) UpdateFilter(msg tea.Msg) (StationGrid, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			g.filterActive = false
			g.filterInput.Blur()
			return g, nil
		case "esc":
			g.ClearFilter()
			return g, nil
		}
	}

	var cmd tea.Cmd
	g.filterInput, cmd = g.filterInput.Update(msg)
	g.applyFilter()
	g.cursor = 0
	return g, cmd
}

// applyFilter filters stations based on the current query
func (g *StationGrid) applyFilter() {
	query := g.filterInput.Value()
	if query == "" {
		g.filteredIdx = nil
		return
	}

	lower := make([]string, len(g.stations))
	for i, s := range g.stations {
		lower[i] = strings.ToLower(s)
	}

	matches := fuzzy.Find(strings.ToLower(query), lower)
	g.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		g.filteredIdx[i] = match.Index
	}
}

func (g StationGrid) visible() []int {
	if g.filteredIdx != nil {
		return g.filteredIdx
	}
	idx := make([]int, len(g.stations))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (g StationGrid) cellWidth() int {
	if g.width <= 0 {
		return 20
	}
	// Width covers padding but not the border
	w := g.width/g.columns - BorderWidth
	return max(w, MinCellWidth)
}

// View renders the grid
func (g StationGrid) View() string {
	var b strings.Builder

	if g.filterActive || g.filterInput.Value() != "" {
		b.WriteString(g.filterInput.View())
		b.WriteString("\n")
	}

	vis := g.visible()
	if len(vis) == 0 {
		if len(g.stations) == 0 {
			b.WriteString(styles.DimStyle.Render("No stations"))
		} else {
			b.WriteString(styles.DimStyle.Render("No matches"))
		}
		return b.String()
	}

	width := g.cellWidth()
	var rows []string
	for start := 0; start < len(vis); start += g.columns {
		end := min(start+g.columns, len(vis))
		cells := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			name := g.stations[vis[i]]
			style := styles.CellStyle
			switch {
			case i == g.cursor:
				style = styles.CellSelectedStyle
			case name == g.playing:
				style = styles.CellPlayingStyle
			}
			cells = append(cells, style.Width(width).Render(styles.Truncate(name, width-HorizontalPadding)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return b.String()
}
