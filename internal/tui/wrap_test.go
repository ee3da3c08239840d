package tui

import (
	"testing"

	"github.com/verte-zerg/presim/internal/model"
	"github.com/verte-zerg/presim/internal/render"
)

func plainCells(s string) []cell {
	return buildCells([]segment{{text: s, style: valueStyle}})
}

func TestWrapCellsBreaksOnSpaces(t *testing.T) {
	lines := wrapCells(plainCells("alpha beta gamma"), 10)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != renderCells(plainCells("alpha beta")) {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != renderCells(plainCells("gamma")) {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

func TestWrapCellsHardBreaksLongWords(t *testing.T) {
	lines := wrapCells(plainCells("abcdefghij"), 4)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[2] != renderCells(plainCells("ij")) {
		t.Fatalf("unexpected tail %q", lines[2])
	}
}

func TestWrapCellsWithoutWidth(t *testing.T) {
	lines := wrapCells(plainCells("a b"), 0)
	if len(lines) != 1 || lines[0] != renderCells(plainCells("a b")) {
		t.Fatalf("expected single line, got %q", lines)
	}
}

func TestExpectedSegmentsMatchPlainText(t *testing.T) {
	expected := []model.ExpectedOn{{EntityID: "light.kitchen", P: 0.8}, {EntityID: "light.hall", P: 0.25}}
	var text string
	for _, seg := range expectedSegments(expected) {
		text += seg.text
	}
	if text != render.ExpectedText(expected) {
		t.Fatalf("segments %q differ from %q", text, render.ExpectedText(expected))
	}
	if got := expectedSegments(nil); len(got) != 1 || got[0].text != "Expected ON: –" {
		t.Fatalf("unexpected empty segments: %+v", got)
	}
}

func TestProbabilityStyleBuckets(t *testing.T) {
	if probabilityStyle(0.9).Render("x") != hotStyle.Render("x") {
		t.Fatalf("expected hot style for 0.9")
	}
	if probabilityStyle(0.5).Render("x") != warmStyle.Render("x") {
		t.Fatalf("expected warm style for 0.5")
	}
	if probabilityStyle(0.1).Render("x") != coldStyle.Render("x") {
		t.Fatalf("expected cold style for 0.1")
	}
}
