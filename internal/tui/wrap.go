package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/presim/internal/model"
	"github.com/verte-zerg/presim/internal/render"
)

// segment is a run of text sharing one style.
type segment struct {
	text  string
	style lipgloss.Style
}

// cell is one rendered rune with its display width.
type cell struct {
	s       string
	width   int
	isSpace bool
}

func buildCells(segments []segment) []cell {
	out := []cell{}
	for _, seg := range segments {
		for _, r := range seg.text {
			out = append(out, cell{
				s:       seg.style.Render(string(r)),
				width:   runewidth.RuneWidth(r),
				isSpace: r == ' ',
			})
		}
	}
	return out
}

func renderCells(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(c.s)
	}
	return b.String()
}

// wrapCells breaks cells into lines no wider than width, preferring spaces.
// The space a line breaks on is dropped.
func wrapCells(cells []cell, width int) []string {
	if width <= 0 {
		return []string{renderCells(cells)}
	}
	var lines []string
	line := make([]cell, 0, len(cells))
	lineWidth := 0
	lastSpace := -1

	for i := 0; i < len(cells); {
		c := cells[i]
		if lineWidth+c.width > width && len(line) > 0 {
			if lastSpace >= 0 {
				lines = append(lines, renderCells(line[:lastSpace]))
				line = append([]cell{}, line[lastSpace+1:]...)
				lineWidth = widthOf(line)
				lastSpace = lastSpaceIndex(line)
			} else {
				lines = append(lines, renderCells(line))
				line = line[:0]
				lineWidth = 0
				lastSpace = -1
			}
			continue
		}
		line = append(line, c)
		lineWidth += c.width
		if c.isSpace {
			lastSpace = len(line) - 1
		}
		i++
	}
	return append(lines, renderCells(line))
}

func widthOf(line []cell) int {
	total := 0
	for _, c := range line {
		total += c.width
	}
	return total
}

func lastSpaceIndex(line []cell) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}

// expectedSegments styles a slot's ranked entities by probability. The plain
// text matches render.ExpectedText.
func expectedSegments(expected []model.ExpectedOn) []segment {
	if len(expected) == 0 {
		return []segment{{text: render.ExpectedText(nil), style: coldStyle}}
	}
	segs := []segment{{text: "Expected ON: ", style: labelStyle}}
	for i, e := range expected {
		if i > 0 {
			segs = append(segs, segment{text: ", ", style: labelStyle})
		}
		segs = append(segs,
			segment{text: e.EntityID, style: probabilityStyle(e.P)},
			segment{text: " (p≈" + render.FormatProbability(e.P) + ")", style: labelStyle},
		)
	}
	return segs
}

func probabilityStyle(p float64) lipgloss.Style {
	switch {
	case p >= 0.66:
		return hotStyle
	case p >= 0.33:
		return warmStyle
	default:
		return coldStyle
	}
}
