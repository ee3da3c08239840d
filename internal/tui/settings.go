package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/presim/internal/console"
	"github.com/verte-zerg/presim/internal/model"
)

// labelWidth fits the longest field label plus a gap.
const labelWidth = 17

func (m *Model) initInputs() {
	m.inputs = make([]textinput.Model, len(console.Fields))
	for i := range console.Fields {
		input := textinput.New()
		input.Prompt = ""
		input.CharLimit = 0
		input.Cursor.SetMode(cursor.CursorBlink)
		m.inputs[i] = input
	}
}

func (m *Model) setInputsFromConfig() {
	form := console.FormFromConfig(m.state.Config)
	for i, f := range console.Fields {
		value, err := form.Value(f.Key)
		if err != nil {
			continue
		}
		m.inputs[i].SetValue(value)
	}
}

// formFromInputs builds the form to save: the edited scalar fields plus the
// entity selection, including unsaved toggles from the Entities tab.
func (m *Model) formFromInputs() console.Form {
	form := console.FormFromConfig(m.state.Config)
	form.Entities = append([]string{}, m.entityForm.Entities...)
	for i, f := range console.Fields {
		if err := form.Set(f.Key, m.inputs[i].Value()); err != nil {
			m.logger.Sugar().Warnf("skipping field %s: %v", f.Key, err)
		}
	}
	return form
}

func (m *Model) startEditing() tea.Cmd {
	m.editing = true
	m.setInputsFromConfig()
	return m.setFieldIndex(0)
}

func (m *Model) stopEditing() {
	m.editing = false
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.setInputsFromConfig()
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopEditing()
		return m, nil
	case tea.KeyEnter:
		return m, m.startSave(m.formFromInputs())
	case tea.KeyTab, tea.KeyDown:
		return m, m.setFieldIndex(m.fieldIndex + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setFieldIndex(m.fieldIndex - 1)
	}
	if isSpace(msg) && console.Fields[m.fieldIndex].Key == console.FieldDarknessMode {
		form := console.Form{DarknessMode: m.inputs[m.fieldIndex].Value()}
		form.CycleDarknessMode()
		m.inputs[m.fieldIndex].SetValue(form.DarknessMode)
		m.inputs[m.fieldIndex].CursorEnd()
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.fieldIndex], cmd = m.inputs[m.fieldIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFieldIndex(idx int) tea.Cmd {
	count := len(m.inputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.fieldIndex = idx
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == m.fieldIndex {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

// currentDarknessMode reads the mode from the control when editing, so dimming
// follows the operator's unsaved choice.
func (m *Model) currentDarknessMode() model.DarknessMode {
	if m.editing {
		for i, f := range console.Fields {
			if f.Key == console.FieldDarknessMode {
				return model.DarknessMode(strings.TrimSpace(m.inputs[i].Value()))
			}
		}
	}
	return m.state.Config.DarknessMode
}

// fieldActive reports whether a darkness companion field is consulted by mode.
// Dimming is display only; nothing stops the operator editing a dimmed field.
func fieldActive(key string, mode model.DarknessMode) bool {
	switch key {
	case console.FieldDarknessEntity:
		return mode.UsesEntity()
	case console.FieldDarkState:
		return mode.UsesDarkState()
	case console.FieldLuxThreshold:
		return mode.UsesLuxThreshold()
	default:
		return true
	}
}

func (m *Model) renderSettings() string {
	if !m.state.Loaded {
		return headerStyle.Render("Configuration not loaded. Press L to load.")
	}
	mode := m.currentDarknessMode()
	lines := make([]string, 0, len(console.Fields)+3)
	for i, f := range console.Fields {
		label := padRight(f.Label, labelWidth)
		active := fieldActive(f.Key, mode)
		marker := "  "
		if m.editing && i == m.fieldIndex {
			marker = cursorStyle.Render("> ")
		}
		var value string
		if m.editing {
			value = m.inputs[i].View()
		} else {
			value = m.inputs[i].Value()
		}
		switch {
		case !active:
			lines = append(lines, marker+dimStyle.Render(label)+dimStyle.Render(value))
		case m.editing:
			lines = append(lines, marker+labelStyle.Render(label)+value)
		default:
			lines = append(lines, marker+labelStyle.Render(label)+valueStyle.Render(value))
		}
	}
	entities := strings.Join(m.state.Config.Entities, ", ")
	if entities == "" {
		entities = "none (select on the Entities tab)"
	}
	lines = append(lines, "  "+labelStyle.Render(padRight("Entities", labelWidth))+valueStyle.Render(entities))
	if !m.state.Config.DarknessMode.Valid() {
		lines = append(lines, "", headerStyle.Render("  Unknown darkness mode; space cycles to a known one while editing."))
	}
	return strings.Join(lines, "\n")
}

func isSpace(msg tea.KeyMsg) bool {
	return msg.Type == tea.KeySpace || msg.String() == " "
}
