package render

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/verte-zerg/presim/internal/model"
)

// Labels for the running flag.
const (
	RunningYes = "yes"
	RunningNo  = "no"
)

// StatusView is the display projection of a status snapshot.
type StatusView struct {
	Running   string
	NextRun   string
	LastRun   string
	LastTrain string
	LastStep  string
	Preview   PreviewView
}

// Status projects a snapshot for display. A nil snapshot renders as never-fetched.
func Status(st *model.StatusSnapshot, loc *time.Location) StatusView {
	if st == nil {
		return StatusView{
			Running:   Placeholder,
			NextRun:   Placeholder,
			LastRun:   Placeholder,
			LastTrain: Placeholder,
			Preview:   Preview(nil, loc),
		}
	}
	running := RunningNo
	if st.Running {
		running = RunningYes
	}
	return StatusView{
		Running:   running,
		NextRun:   FormatTimestamp(st.NextRun, loc),
		LastRun:   FormatTimestamp(st.LastRun, loc),
		LastTrain: FormatTimestamp(st.LastTrain, loc),
		LastStep:  LastStep(st.LastStep),
		Preview:   Preview(st.Preview, loc),
	}
}

// LastStep pretty-prints the opaque last-step record. Absent or null gives "".
func LastStep(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// Lines renders the status fields as aligned "label value" lines.
func (v StatusView) Lines() []string {
	return Table(nil, [][]string{
		{"Running", v.Running},
		{"Next run", v.NextRun},
		{"Last run", v.LastRun},
		{"Last training", v.LastTrain},
	}, nil)
}
