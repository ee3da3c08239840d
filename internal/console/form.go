package console

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/presim/internal/model"
)

// Field keys as used on the wire and by `settings --set`.
const (
	FieldStartTime      = "start_time"
	FieldEndTime        = "end_time"
	FieldIntervalMin    = "interval_min"
	FieldTrainingDays   = "training_days"
	FieldSlotMinutes    = "slot_minutes"
	FieldRandomness     = "randomness"
	FieldDarknessMode   = "darkness_mode"
	FieldDarknessEntity = "darkness_entity"
	FieldDarkState      = "dark_state"
	FieldLuxThreshold   = "lux_threshold"
	FieldEntities       = "entities"
)

// Field describes one scalar form control.
type Field struct {
	Key     string
	Label   string
	Numeric bool
}

// Fields lists the scalar form controls in display order.
var Fields = []Field{
	{Key: FieldStartTime, Label: "Start time"},
	{Key: FieldEndTime, Label: "End time"},
	{Key: FieldIntervalMin, Label: "Interval (min)", Numeric: true},
	{Key: FieldTrainingDays, Label: "Training days", Numeric: true},
	{Key: FieldSlotMinutes, Label: "Slot (min)", Numeric: true},
	{Key: FieldRandomness, Label: "Randomness", Numeric: true},
	{Key: FieldDarknessMode, Label: "Darkness mode"},
	{Key: FieldDarknessEntity, Label: "Darkness entity"},
	{Key: FieldDarkState, Label: "Dark state"},
	{Key: FieldLuxThreshold, Label: "Lux threshold", Numeric: true},
}

// CoercionError reports a form value that cannot be read as a number.
type CoercionError struct {
	Field string
	Value string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s: %q is not a number", e.Field, e.Value)
}

// Form is the textual edit buffer behind the settings controls.
type Form struct {
	Entities       []string
	StartTime      string
	EndTime        string
	IntervalMin    string
	TrainingDays   string
	SlotMinutes    string
	Randomness     string
	DarknessMode   string
	DarknessEntity string
	DarkState      string
	LuxThreshold   string
}

// FormFromConfig renders a configuration into form text.
func FormFromConfig(cfg model.Configuration) Form {
	return Form{
		Entities:       append([]string{}, cfg.Entities...),
		StartTime:      cfg.StartTime,
		EndTime:        cfg.EndTime,
		IntervalMin:    strconv.Itoa(cfg.IntervalMin),
		TrainingDays:   strconv.Itoa(cfg.TrainingDays),
		SlotMinutes:    strconv.Itoa(cfg.SlotMinutes),
		Randomness:     formatNumber(cfg.Randomness),
		DarknessMode:   string(cfg.DarknessMode),
		DarknessEntity: cfg.DarknessEntity,
		DarkState:      cfg.DarkState,
		LuxThreshold:   formatNumber(cfg.LuxThreshold),
	}
}

// Configuration coerces the form into a complete configuration. Numeric text is
// trimmed and parsed (blank reads as zero) and free text is trimmed. Ranges and
// time ordering are left to the backend.
func (f Form) Configuration() (model.Configuration, error) {
	cfg := model.Configuration{
		Entities:       append([]string{}, f.Entities...),
		StartTime:      strings.TrimSpace(f.StartTime),
		EndTime:        strings.TrimSpace(f.EndTime),
		DarknessMode:   model.DarknessMode(strings.TrimSpace(f.DarknessMode)),
		DarknessEntity: strings.TrimSpace(f.DarknessEntity),
		DarkState:      strings.TrimSpace(f.DarkState),
	}
	var err error
	if cfg.IntervalMin, err = coerceInt(FieldIntervalMin, f.IntervalMin); err != nil {
		return model.Configuration{}, err
	}
	if cfg.TrainingDays, err = coerceInt(FieldTrainingDays, f.TrainingDays); err != nil {
		return model.Configuration{}, err
	}
	if cfg.SlotMinutes, err = coerceInt(FieldSlotMinutes, f.SlotMinutes); err != nil {
		return model.Configuration{}, err
	}
	if cfg.Randomness, err = coerceFloat(FieldRandomness, f.Randomness); err != nil {
		return model.Configuration{}, err
	}
	if cfg.LuxThreshold, err = coerceFloat(FieldLuxThreshold, f.LuxThreshold); err != nil {
		return model.Configuration{}, err
	}
	return cfg, nil
}

// Value returns the text of a scalar field.
func (f *Form) Value(key string) (string, error) {
	p := f.field(key)
	if p == nil {
		return "", fmt.Errorf("unknown field %q", key)
	}
	return *p, nil
}

// Set replaces the text of a field. For entities the value is a comma-separated list.
func (f *Form) Set(key, value string) error {
	if key == FieldEntities {
		f.Entities = splitList(value)
		return nil
	}
	p := f.field(key)
	if p == nil {
		return fmt.Errorf("unknown field %q", key)
	}
	*p = value
	return nil
}

// Selected reports whether an entity is part of the selection.
func (f *Form) Selected(entityID string) bool {
	for _, id := range f.Entities {
		if id == entityID {
			return true
		}
	}
	return false
}

// Toggle flips the selection of an entity. Newly selected entities go last,
// so the order of existing selections is kept.
func (f *Form) Toggle(entityID string) {
	for i, id := range f.Entities {
		if id == entityID {
			f.Entities = append(f.Entities[:i:i], f.Entities[i+1:]...)
			return
		}
	}
	f.Entities = append(f.Entities, entityID)
}

// CycleDarknessMode advances the darkness mode to the next known mode.
func (f *Form) CycleDarknessMode() {
	f.DarknessMode = string(model.DarknessMode(strings.TrimSpace(f.DarknessMode)).Next())
}

func (f *Form) field(key string) *string {
	switch key {
	case FieldStartTime:
		return &f.StartTime
	case FieldEndTime:
		return &f.EndTime
	case FieldIntervalMin:
		return &f.IntervalMin
	case FieldTrainingDays:
		return &f.TrainingDays
	case FieldSlotMinutes:
		return &f.SlotMinutes
	case FieldRandomness:
		return &f.Randomness
	case FieldDarknessMode:
		return &f.DarknessMode
	case FieldDarknessEntity:
		return &f.DarknessEntity
	case FieldDarkState:
		return &f.DarkState
	case FieldLuxThreshold:
		return &f.LuxThreshold
	default:
		return nil
	}
}

func coerceInt(field, value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	// Whole-valued number spellings such as "5.0" or "1e1" still count.
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, &CoercionError{Field: field, Value: value}
	}
	return int(f), nil
}

func coerceFloat(field, value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &CoercionError{Field: field, Value: value}
	}
	return n, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
