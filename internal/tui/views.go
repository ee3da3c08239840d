package tui

import (
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/presim/internal/console"
	"github.com/verte-zerg/presim/internal/render"
)

const barWidth = 10

func renderOverview(state console.State, loc *time.Location, now time.Time) string {
	if state.Status == nil {
		if state.StatusErr != nil {
			return errorStyle.Render("Status unavailable: " + state.StatusErr.Error())
		}
		return headerStyle.Render("Waiting for status…")
	}
	view := render.Status(state.Status, loc)
	nextRun := view.NextRun
	if rel := render.Relative(state.Status.NextRun, now); rel != "" {
		nextRun += " (" + rel + ")"
	}
	rows := [][]string{
		{"Running", view.Running},
		{"Next run", nextRun},
		{"Last run", view.LastRun},
		{"Last training", view.LastTrain},
		{"Entities", entitySummary(state)},
	}
	lines := styleRows(render.Table(nil, rows, nil), labelWidthOf(rows))
	lines = append(lines, "", labelStyle.Render("Last step"))
	if view.LastStep == "" {
		lines = append(lines, headerStyle.Render(render.Placeholder))
	} else {
		lines = append(lines, strings.Split(view.LastStep, "\n")...)
	}
	return strings.Join(lines, "\n")
}

func entitySummary(state console.State) string {
	n := len(state.Config.Entities)
	switch n {
	case 0:
		return "none selected"
	case 1:
		return "1 selected"
	default:
		return strconv.Itoa(n) + " selected"
	}
}

// styleRows colours the label column of aligned "label  value" lines.
func styleRows(lines []string, labelWidth int) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		runes := []rune(line)
		if len(runes) <= labelWidth {
			out[i] = labelStyle.Render(line)
			continue
		}
		out[i] = labelStyle.Render(string(runes[:labelWidth])) + valueStyle.Render(string(runes[labelWidth:]))
	}
	return out
}

func labelWidthOf(rows [][]string) int {
	w := 0
	for _, row := range rows {
		if len(row) > 0 && len([]rune(row[0])) > w {
			w = len([]rune(row[0]))
		}
	}
	return w
}

func renderPreview(state console.State, loc *time.Location, width int) string {
	if state.Status == nil {
		return headerStyle.Render("Waiting for status…")
	}
	slots := state.Status.Preview
	view := render.Preview(slots, loc)
	if view.Empty() {
		return headerStyle.Render(view.Message)
	}

	timeWidth := 0
	for _, row := range view.Rows {
		timeWidth = maxInt(timeWidth, len([]rune(row.Time)))
	}
	indent := timeWidth + 2 + barWidth + 2
	textWidth := maxInt(20, width-indent)

	lines := []string{
		labelStyle.Render("Confidence ") + "[" + render.Confidence(slots) + "]",
		"",
	}
	for i, row := range view.Rows {
		top := 0.0
		if len(slots[i].ExpectedTopOn) > 0 {
			top = slots[i].ExpectedTopOn[0].P
		}
		prefix := labelStyle.Render(padRight(row.Time, timeWidth)) + "  " +
			probabilityStyle(top).Render(render.ProbabilityBar(top, barWidth)) + "  "
		wrapped := wrapCells(buildCells(expectedSegments(slots[i].ExpectedTopOn)), textWidth)
		for j, part := range wrapped {
			if j == 0 {
				lines = append(lines, prefix+part)
				continue
			}
			lines = append(lines, strings.Repeat(" ", indent)+part)
		}
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
