package output

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/presim/internal/console"
	"github.com/verte-zerg/presim/internal/model"
	"github.com/verte-zerg/presim/internal/render"
)

// StatusDocument is the printable form of a status snapshot. Machine formats
// carry the backend's timestamps unchanged; the table shows local times.
type StatusDocument struct {
	Running   bool                `json:"running" yaml:"running"`
	NextRun   string              `json:"next_run,omitempty" yaml:"next_run,omitempty"`
	LastRun   string              `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	LastTrain string              `json:"last_train,omitempty" yaml:"last_train,omitempty"`
	LastStep  any                 `json:"last_step,omitempty" yaml:"last_step,omitempty"`
	Preview   []model.PreviewSlot `json:"preview" yaml:"preview"`

	view       render.StatusView
	confidence string
}

// NewStatusDocument builds a document from a snapshot.
func NewStatusDocument(st model.StatusSnapshot, loc *time.Location) StatusDocument {
	preview := st.Preview
	if preview == nil {
		preview = []model.PreviewSlot{}
	}
	return StatusDocument{
		Running:    st.Running,
		NextRun:    st.NextRun,
		LastRun:    st.LastRun,
		LastTrain:  st.LastTrain,
		LastStep:   decodeRaw(st.LastStep),
		Preview:    preview,
		view:       render.Status(&st, loc),
		confidence: render.Confidence(st.Preview),
	}
}

// TableLines implements Tabular.
func (d StatusDocument) TableLines() []string {
	lines := d.view.Lines()
	if d.confidence != "" {
		lines = append(lines, render.Table(nil, [][]string{{"Confidence", "[" + d.confidence + "]"}}, nil)...)
	}
	lines = append(lines, "", "Preview")
	lines = append(lines, d.view.Preview.Lines()...)
	if d.view.LastStep != "" {
		lines = append(lines, "", "Last step")
		lines = append(lines, strings.Split(d.view.LastStep, "\n")...)
	}
	return lines
}

// EntityRow is one registry entry as printed by the entities command.
type EntityRow struct {
	EntityID string `json:"entity_id" yaml:"entity_id"`
	Name     string `json:"name" yaml:"name"`
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Selected bool   `json:"selected" yaml:"selected"`
	Missing  bool   `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// EntityList is the printable entity registry.
type EntityList []EntityRow

// NewEntityList converts selection options into rows, keeping their order.
func NewEntityList(options []console.EntityOption) EntityList {
	rows := make(EntityList, 0, len(options))
	for _, opt := range options {
		rows = append(rows, EntityRow{
			EntityID: opt.EntityID,
			Name:     opt.Name,
			Domain:   opt.Domain,
			Selected: opt.Selected,
			Missing:  opt.Missing,
		})
	}
	return rows
}

// TableLines implements Tabular.
func (l EntityList) TableLines() []string {
	if len(l) == 0 {
		return []string{"No entities found."}
	}
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		selected := ""
		if r.Selected {
			selected = "*"
		}
		name := r.Name
		if r.Missing {
			name = "(not in registry)"
		}
		domain := r.Domain
		if domain == "" {
			domain = domainOf(r.EntityID)
		}
		rows = append(rows, []string{selected, r.EntityID, name, domain})
	}
	return render.Table([]string{"SEL", "ENTITY", "NAME", "DOMAIN"}, rows, nil)
}

// Settings is the printable simulator configuration.
type Settings struct {
	model.Configuration `yaml:",inline"`
}

// TableLines implements Tabular.
func (s Settings) TableLines() []string {
	form := console.FormFromConfig(s.Configuration)
	rows := make([][]string, 0, len(console.Fields)+1)
	for _, f := range console.Fields {
		value, err := form.Value(f.Key)
		if err != nil {
			continue
		}
		rows = append(rows, []string{f.Label, value})
	}
	entities := render.Placeholder
	if len(s.Entities) > 0 {
		entities = strings.Join(s.Entities, ", ")
	}
	rows = append(rows, []string{"Entities", entities})
	return render.Table(nil, rows, nil)
}

// ActionResult is the printable outcome of an action or a save.
type ActionResult struct {
	Action string          `json:"action" yaml:"action"`
	Ack    any             `json:"ack,omitempty" yaml:"ack,omitempty"`
	Status *StatusDocument `json:"status,omitempty" yaml:"status,omitempty"`
}

// NewActionResult builds a result from the acknowledgement and the refreshed status.
func NewActionResult(action string, ack json.RawMessage, status *StatusDocument) ActionResult {
	return ActionResult{Action: action, Ack: decodeRaw(ack), Status: status}
}

// TableLines implements Tabular.
func (r ActionResult) TableLines() []string {
	line := r.Action + ": ok"
	if r.Ack != nil {
		if b, err := json.Marshal(r.Ack); err == nil && string(b) != "{}" {
			line += " " + string(b)
		}
	}
	lines := []string{line}
	if r.Status != nil {
		lines = append(lines, "")
		lines = append(lines, r.Status.TableLines()...)
	}
	return lines
}

// History is the printable action journal.
type History struct {
	Summary []model.ActionSummary `json:"summary" yaml:"summary"`
	Records []model.ActionRecord  `json:"records" yaml:"records"`

	loc *time.Location
}

// NewHistory builds a history document; times are shown in loc.
func NewHistory(summary []model.ActionSummary, records []model.ActionRecord, loc *time.Location) History {
	if summary == nil {
		summary = []model.ActionSummary{}
	}
	if records == nil {
		records = []model.ActionRecord{}
	}
	if loc == nil {
		loc = time.Local
	}
	return History{Summary: summary, Records: records, loc: loc}
}

// TableLines implements Tabular.
func (h History) TableLines() []string {
	if len(h.Records) == 0 && len(h.Summary) == 0 {
		return []string{"No actions recorded."}
	}
	sumRows := make([][]string, 0, len(h.Summary))
	for _, s := range h.Summary {
		sumRows = append(sumRows, []string{
			s.Action,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Failures),
			s.LastAt.In(h.loc).Format(render.DisplayLayout),
		})
	}
	lines := render.Table([]string{"ACTION", "TOTAL", "FAILURES", "LAST"}, sumRows, map[int]bool{1: true, 2: true})

	recRows := make([][]string, 0, len(h.Records))
	for _, r := range h.Records {
		result := "ok"
		if !r.OK {
			result = "failed: " + r.Error
		}
		recRows = append(recRows, []string{
			r.IssuedAt.In(h.loc).Format(render.DisplayLayout),
			r.Action,
			strconv.FormatInt(r.DurationMs, 10) + "ms",
			result,
		})
	}
	lines = append(lines, "")
	lines = append(lines, render.Table([]string{"TIME", "ACTION", "TOOK", "RESULT"}, recRows, map[int]bool{2: true})...)
	return lines
}

func decodeRaw(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(trimmed)
	}
	return exactNumbers(v)
}

// exactNumbers replaces json.Number leaves with int64 or uint64 when the
// literal is an integer, so large ids survive both JSON and YAML encoding.
// Other literals become float64.
func exactNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = exactNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = exactNumbers(e)
		}
		return t
	case json.Number:
		if n, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t
	default:
		return v
	}
}

func domainOf(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		return entityID[:i]
	}
	return ""
}
