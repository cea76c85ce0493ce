package components

import (
	"fmt"
	"strings"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/tui/styles"
)

// SettingRow is one preference as shown in the settings view
type SettingRow struct {
	Key         string
	Label       string
	Group       string
	Select      bool
	Value       string
	Placeholder string
	Options     []domain.Option
}

// Display returns the option label for select rows, the raw value otherwise
func (r SettingRow) Display() string {
	for _, o := range r.Options {
		if o.Value == r.Value {
			return o.Label
		}
	}
	return r.Value
}

// Cycle returns the option value delta steps away from the current one,
// wrapping at either end.
func (r SettingRow) Cycle(delta int) (string, bool) {
	n := len(r.Options)
	if !r.Select || n == 0 {
		return "", false
	}
	cur := -1
	for i, o := range r.Options {
		if o.Value == r.Value {
			cur = i
			break
		}
	}
	if cur < 0 {
		return r.Options[0].Value, true
	}
	next := ((cur+delta)%n + n) % n
	return r.Options[next].Value, next != cur
}

// SettingsList is a cursor over preference rows, sectioned by group
type SettingsList struct {
	rows   []SettingRow
	cursor int
	width  int
}

// SetRows replaces the rows, keeping the cursor on the same key
func (l *SettingsList) SetRows(rows []SettingRow) {
	var key string
	if r, ok := l.Selected(); ok {
		key = r.Key
	}
	l.rows = rows
	l.cursor = 0
	for i, r := range rows {
		if r.Key == key {
			l.cursor = i
			break
		}
	}
}

// SetWidth sets the available width
func (l *SettingsList) SetWidth(width int) {
	l.width = width
}

// Selected returns the row under the cursor
func (l SettingsList) Selected() (SettingRow, bool) {
	if l.cursor < 0 || l.cursor >= len(l.rows) {
		return SettingRow{}, false
	}
	return l.rows[l.cursor], true
}

// Move shifts the cursor, clamped to the list
func (l *SettingsList) Move(delta int) {
	if len(l.rows) == 0 {
		return
	}
	l.cursor = max(0, min(l.cursor+delta, len(l.rows)-1))
}

// View renders the list
func (l SettingsList) View() string {
	if len(l.rows) == 0 {
		return styles.DimStyle.Render("No preferences")
	}

	labelWidth := 0
	for _, r := range l.rows {
		labelWidth = max(labelWidth, len(r.Label))
	}
	valueWidth := 40
	if l.width > 0 {
		valueWidth = max(l.width-labelWidth-8, 10)
	}

	var b strings.Builder
	group := ""
	for i, r := range l.rows {
		if r.Group != group {
			group = r.Group
			b.WriteString(styles.GroupStyle.Render(group))
			b.WriteString("\n")
		}

		value := r.Display()
		if value == "" {
			value = styles.DimStyle.Render(r.Placeholder)
		} else {
			value = styles.Truncate(value, valueWidth)
		}
		if r.Select && len(r.Options) > 1 {
			value = fmt.Sprintf("‹ %s › (%d)", value, len(r.Options))
		}

		line := fmt.Sprintf("%-*s  %s", labelWidth, r.Label, value)
		if i == l.cursor {
			b.WriteString(styles.SelectedRowStyle.Render(line))
		} else {
			b.WriteString(styles.NormalRowStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
