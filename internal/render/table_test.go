package render

import "testing"

func TestTableAlignsColumns(t *testing.T) {
	headers := []string{"Action", "Total", "Failures"}
	rows := [][]string{
		{"train", "12", "0"},
		{"step", "3", "1"},
	}
	lines := Table(headers, rows, map[int]bool{1: true, 2: true})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Action  Total  Failures" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "train      12         0" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "step        3         1" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestTableEmpty(t *testing.T) {
	if lines := Table(nil, nil, nil); lines != nil {
		t.Fatalf("expected nil, got %q", lines)
	}
}
