// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"time"
)

// DarknessMode selects how the simulator decides it is dark enough to run.
type DarknessMode string

// Darkness modes understood by the simulator.
const (
	DarknessSun         DarknessMode = "sun"
	DarknessEntityState DarknessMode = "entity_state"
	DarknessLux         DarknessMode = "lux"
)

// DarknessModes lists the known modes in display order.
var DarknessModes = []DarknessMode{DarknessSun, DarknessEntityState, DarknessLux}

// Valid reports whether the mode is one of the known modes.
func (d DarknessMode) Valid() bool {
	for _, m := range DarknessModes {
		if d == m {
			return true
		}
	}
	return false
}

// Next returns the mode following d in display order. Unknown modes map to the first mode.
func (d DarknessMode) Next() DarknessMode {
	for i, m := range DarknessModes {
		if d == m {
			return DarknessModes[(i+1)%len(DarknessModes)]
		}
	}
	return DarknessModes[0]
}

// UsesEntity reports whether darkness_entity is consulted in this mode.
func (d DarknessMode) UsesEntity() bool {
	return d == DarknessEntityState || d == DarknessLux
}

// UsesDarkState reports whether dark_state is consulted in this mode.
func (d DarknessMode) UsesDarkState() bool {
	return d == DarknessEntityState
}

// UsesLuxThreshold reports whether lux_threshold is consulted in this mode.
func (d DarknessMode) UsesLuxThreshold() bool {
	return d == DarknessLux
}

// Configuration holds the simulator's operating parameters.
type Configuration struct {
	Entities       []string     `json:"entities" yaml:"entities"`
	StartTime      string       `json:"start_time" yaml:"start_time"`
	EndTime        string       `json:"end_time" yaml:"end_time"`
	IntervalMin    int          `json:"interval_min" yaml:"interval_min"`
	TrainingDays   int          `json:"training_days" yaml:"training_days"`
	SlotMinutes    int          `json:"slot_minutes" yaml:"slot_minutes"`
	Randomness     float64      `json:"randomness" yaml:"randomness"`
	DarknessMode   DarknessMode `json:"darkness_mode" yaml:"darkness_mode"`
	DarknessEntity string       `json:"darkness_entity" yaml:"darkness_entity"`
	DarkState      string       `json:"dark_state" yaml:"dark_state"`
	LuxThreshold   float64      `json:"lux_threshold" yaml:"lux_threshold"`
}

// Documented defaults used when the backend omits a field.
const (
	DefaultStartTime      = "18:00"
	DefaultEndTime        = "23:30"
	DefaultIntervalMin    = 5
	DefaultTrainingDays   = 14
	DefaultSlotMinutes    = 15
	DefaultRandomness     = 0.15
	DefaultDarknessMode   = DarknessSun
	DefaultDarknessEntity = "sun.sun"
	DefaultDarkState      = "below_horizon"
	DefaultLuxThreshold   = 30
)

// DefaultConfiguration returns a Configuration with every documented default applied.
func DefaultConfiguration() Configuration {
	return Configuration{
		Entities:       []string{},
		StartTime:      DefaultStartTime,
		EndTime:        DefaultEndTime,
		IntervalMin:    DefaultIntervalMin,
		TrainingDays:   DefaultTrainingDays,
		SlotMinutes:    DefaultSlotMinutes,
		Randomness:     DefaultRandomness,
		DarknessMode:   DefaultDarknessMode,
		DarknessEntity: DefaultDarknessEntity,
		DarkState:      DefaultDarkState,
		LuxThreshold:   DefaultLuxThreshold,
	}
}

// Clone returns a deep copy of the configuration.
func (c Configuration) Clone() Configuration {
	out := c
	out.Entities = append([]string{}, c.Entities...)
	return out
}

// ConfigPayload mirrors the configuration as sent by the backend, where any field may be absent.
type ConfigPayload struct {
	Entities       []string      `json:"entities"`
	StartTime      *string       `json:"start_time"`
	EndTime        *string       `json:"end_time"`
	IntervalMin    *int          `json:"interval_min"`
	TrainingDays   *int          `json:"training_days"`
	SlotMinutes    *int          `json:"slot_minutes"`
	Randomness     *float64      `json:"randomness"`
	DarknessMode   *DarknessMode `json:"darkness_mode"`
	DarknessEntity *string       `json:"darkness_entity"`
	DarkState      *string       `json:"dark_state"`
	LuxThreshold   *float64      `json:"lux_threshold"`
}

// Resolve builds a complete Configuration, falling back to the documented default
// for every absent field. Empty strings count as absent.
func (p ConfigPayload) Resolve() Configuration {
	cfg := DefaultConfiguration()
	if p.Entities != nil {
		cfg.Entities = append([]string{}, p.Entities...)
	}
	resolveString(&cfg.StartTime, p.StartTime)
	resolveString(&cfg.EndTime, p.EndTime)
	if p.IntervalMin != nil {
		cfg.IntervalMin = *p.IntervalMin
	}
	if p.TrainingDays != nil {
		cfg.TrainingDays = *p.TrainingDays
	}
	if p.SlotMinutes != nil {
		cfg.SlotMinutes = *p.SlotMinutes
	}
	if p.Randomness != nil {
		cfg.Randomness = *p.Randomness
	}
	if p.DarknessMode != nil && *p.DarknessMode != "" {
		cfg.DarknessMode = *p.DarknessMode
	}
	resolveString(&cfg.DarknessEntity, p.DarknessEntity)
	resolveString(&cfg.DarkState, p.DarkState)
	if p.LuxThreshold != nil {
		cfg.LuxThreshold = *p.LuxThreshold
	}
	return cfg
}

func resolveString(target, value *string) {
	if value == nil || *value == "" {
		return
	}
	*target = *value
}

// EntityRef identifies a selectable entity from the registry.
type EntityRef struct {
	EntityID string `json:"entity_id" yaml:"entity_id"`
	Name     string `json:"name" yaml:"name"`
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// ExpectedOn is one ranked entity prediction within a preview slot.
type ExpectedOn struct {
	EntityID string  `json:"entity_id" yaml:"entity_id"`
	P        float64 `json:"p" yaml:"p"`
}

// PreviewSlot is a predicted future decision point.
type PreviewSlot struct {
	Time          string       `json:"time" yaml:"time"`
	ExpectedTopOn []ExpectedOn `json:"expected_top_on" yaml:"expected_top_on"`
}

// StatusSnapshot is the read-only status returned on every poll. Empty
// timestamp strings mean "never".
type StatusSnapshot struct {
	Running   bool            `json:"running"`
	NextRun   string          `json:"next_run,omitempty"`
	LastRun   string          `json:"last_run,omitempty"`
	LastTrain string          `json:"last_train,omitempty"`
	LastStep  json.RawMessage `json:"last_step,omitempty"`
	Preview   []PreviewSlot   `json:"preview"`
}

// ActionRecord captures one dispatched action in the local journal.
type ActionRecord struct {
	ID         int64     `json:"id" yaml:"id"`
	Action     string    `json:"action" yaml:"action"`
	IssuedAt   time.Time `json:"issued_at" yaml:"issued_at"`
	OK         bool      `json:"ok" yaml:"ok"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`
}

// ActionSummary aggregates journal records for one action.
type ActionSummary struct {
	Action   string    `json:"action" yaml:"action"`
	Total    int       `json:"total" yaml:"total"`
	Failures int       `json:"failures" yaml:"failures"`
	LastAt   time.Time `json:"last_at" yaml:"last_at"`
}

// HistoryFilter narrows journal queries.
type HistoryFilter struct {
	Action string
	Since  *time.Time
	Last   int
}
