package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/presim/internal/console"
)

func (m *Model) updateEntities(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.state.Entities)
	switch {
	case msg.String() == "up" || msg.String() == "k":
		if m.entityCursor > 0 {
			m.entityCursor--
		}
		return m, nil
	case msg.String() == "down" || msg.String() == "j":
		if m.entityCursor < count-1 {
			m.entityCursor++
		}
		return m, nil
	case isSpace(msg):
		if count == 0 {
			return m, nil
		}
		m.entityForm.Toggle(m.state.Entities[m.entityCursor].EntityID)
		m.entityDirty = !sameSelection(m.entityForm.Entities, m.state.Config.Entities)
		return m, nil
	case msg.Type == tea.KeyEnter:
		if !m.state.Loaded {
			return m, nil
		}
		return m, m.startSave(m.entityForm)
	}
	return m, nil
}

func sameSelection(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Model) renderEntities(height int) string {
	if !m.state.Loaded {
		return headerStyle.Render("Entities not loaded. Press L to load.")
	}
	if len(m.state.Entities) == 0 {
		return headerStyle.Render("The registry lists no entities.")
	}
	title := labelStyle.Render("Entities to simulate")
	if m.entityDirty {
		title += "  " + flashStyle.Render("(unsaved, enter to save)")
	}
	lines := []string{title}

	rows := maxInt(1, height-1)
	start := 0
	if m.entityCursor >= rows {
		start = m.entityCursor - rows + 1
	}
	end := minInt(len(m.state.Entities), start+rows)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderEntityLine(i))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderEntityLine(i int) string {
	opt := m.state.Entities[i]
	box := "[ ]"
	if m.entityForm.Selected(opt.EntityID) {
		box = "[x]"
	}
	text := box + " " + console.OptionLabel(opt)
	switch {
	case i == m.entityCursor:
		return cursorStyle.Render("> " + text)
	case opt.Missing:
		return "  " + dimStyle.Render(text)
	default:
		return "  " + valueStyle.Render(text)
	}
}
