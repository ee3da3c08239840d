package render

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/presim/internal/model"
)

// EmptyPreviewMessage is shown instead of rows when there is no preview.
const EmptyPreviewMessage = "No preview (check time window, interval and entities)."

const expectedPrefix = "Expected ON: "

const sparkChars = " .:-=+*#%@"

// PreviewRow is one rendered preview slot.
type PreviewRow struct {
	Time     string
	Expected string
}

// PreviewView is the rendered preview: either rows or the empty-state message.
type PreviewView struct {
	Rows    []PreviewRow
	Message string
}

// Empty reports whether the view carries the empty-state message instead of rows.
func (v PreviewView) Empty() bool {
	return len(v.Rows) == 0
}

// Lines renders the view as "time  expected" lines.
func (v PreviewView) Lines() []string {
	if v.Empty() {
		return []string{v.Message}
	}
	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		rows[i] = []string{r.Time, r.Expected}
	}
	return Table(nil, rows, nil)
}

// Preview renders slots in the order given. Entities keep the backend's ranking.
func Preview(slots []model.PreviewSlot, loc *time.Location) PreviewView {
	if len(slots) == 0 {
		return PreviewView{Message: EmptyPreviewMessage}
	}
	rows := make([]PreviewRow, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, PreviewRow{
			Time:     FormatTimestamp(slot.Time, loc),
			Expected: ExpectedText(slot.ExpectedTopOn),
		})
	}
	return PreviewView{Rows: rows}
}

// ExpectedText formats a slot's ranked entities as "Expected ON: a (p≈0.8), b (p≈0.4)".
func ExpectedText(expected []model.ExpectedOn) string {
	if len(expected) == 0 {
		return expectedPrefix + Placeholder
	}
	parts := make([]string, len(expected))
	for i, e := range expected {
		parts[i] = e.EntityID + " (p≈" + FormatProbability(e.P) + ")"
	}
	return expectedPrefix + strings.Join(parts, ", ")
}

// FormatProbability prints p in its shortest exact decimal form.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// ProbabilityBar draws p in [0,1] as a bar of the given width.
func ProbabilityBar(p float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(clamp01(p) * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Confidence renders one sparkline character per slot for the top-ranked
// probability, on a fixed 0..1 scale. Slots with no expected entities read as 0.
func Confidence(slots []model.PreviewSlot) string {
	if len(slots) == 0 {
		return ""
	}
	var b strings.Builder
	for _, slot := range slots {
		top := 0.0
		if len(slot.ExpectedTopOn) > 0 {
			top = slot.ExpectedTopOn[0].P
		}
		idx := int(math.Round(clamp01(top) * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
