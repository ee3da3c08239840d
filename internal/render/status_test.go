package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/presim/internal/model"
)

func TestFormatTimestampFallsBackToRaw(t *testing.T) {
	for _, raw := range []string{"soon", "2024-13-45T99:00:00Z", "18:00"} {
		if got := FormatTimestamp(raw, time.UTC); got != raw {
			t.Fatalf("expected %q unchanged, got %q", raw, got)
		}
	}
}

func TestFormatTimestampAbsent(t *testing.T) {
	if got := FormatTimestamp("", time.UTC); got != Placeholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
	if got := FormatTimestamp("  ", time.UTC); got != Placeholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestFormatTimestampConvertsToLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	got := FormatTimestamp("2024-01-01T18:00:00+00:00", berlin)
	if got != "2024-01-01 19:00:00" {
		t.Fatalf("unexpected local time: %q", got)
	}
	got = FormatTimestamp("2024-01-01T18:00:00.123456+01:00", time.UTC)
	if got != "2024-01-01 17:00:00" {
		t.Fatalf("unexpected time with fraction: %q", got)
	}
	got = FormatTimestamp("2024-01-01T18:00:00", berlin)
	if got != "2024-01-01 18:00:00" {
		t.Fatalf("zoneless time should be read in location: %q", got)
	}
}

func TestRelative(t *testing.T) {
	now := time.Date(2024, 1, 1, 17, 55, 0, 0, time.UTC)
	if got := Relative("2024-01-01T18:00:00Z", now); got != "5 minutes from now" {
		t.Fatalf("unexpected relative time: %q", got)
	}
	if got := Relative("garbage", now); got != "" {
		t.Fatalf("expected empty relative time, got %q", got)
	}
}

func TestStatusEndToEndScenario(t *testing.T) {
	st := &model.StatusSnapshot{
		Running: true,
		NextRun: "2024-01-01T18:00:00Z",
		Preview: []model.PreviewSlot{{
			Time:          "2024-01-01T18:00:00Z",
			ExpectedTopOn: []model.ExpectedOn{{EntityID: "light.kitchen", P: 0.81}},
		}},
	}
	view := Status(st, time.UTC)
	if view.Running != RunningYes {
		t.Fatalf("expected running yes, got %q", view.Running)
	}
	if view.NextRun != "2024-01-01 18:00:00" {
		t.Fatalf("unexpected next run: %q", view.NextRun)
	}
	if view.LastRun != Placeholder || view.LastTrain != Placeholder {
		t.Fatalf("expected placeholders, got %q / %q", view.LastRun, view.LastTrain)
	}
	if view.LastStep != "" {
		t.Fatalf("expected cleared last step, got %q", view.LastStep)
	}
	if len(view.Preview.Rows) != 1 || !strings.Contains(view.Preview.Rows[0].Expected, "light.kitchen (p≈0.81)") {
		t.Fatalf("unexpected preview: %+v", view.Preview)
	}
}

func TestStatusNotRunning(t *testing.T) {
	view := Status(&model.StatusSnapshot{}, time.UTC)
	if view.Running != RunningNo {
		t.Fatalf("expected no, got %q", view.Running)
	}
	if !view.Preview.Empty() {
		t.Fatalf("expected empty preview")
	}
}

func TestStatusNilSnapshot(t *testing.T) {
	view := Status(nil, time.UTC)
	if view.Running != Placeholder || view.Preview.Message != EmptyPreviewMessage {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestLastStepPrettyPrints(t *testing.T) {
	raw := json.RawMessage(`{"decision":"on","entities":["light.a"]}`)
	want := "{\n  \"decision\": \"on\",\n  \"entities\": [\n    \"light.a\"\n  ]\n}"
	if got := LastStep(raw); got != want {
		t.Fatalf("unexpected pretty print:\n%s", got)
	}
	if got := LastStep(json.RawMessage("null")); got != "" {
		t.Fatalf("expected null to clear, got %q", got)
	}
	if got := LastStep(nil); got != "" {
		t.Fatalf("expected absent to clear, got %q", got)
	}
}

func TestStatusLines(t *testing.T) {
	lines := Status(&model.StatusSnapshot{Running: true}, time.UTC).Lines()
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0] != "Running        yes" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if lines[3] != "Last training  –" {
		t.Fatalf("unexpected last line: %q", lines[3])
	}
}
