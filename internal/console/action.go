package console

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/presim/internal/api"
)

// Action is a one-shot imperative command for the simulator.
type Action string

// Supported actions.
const (
	ActionTrain Action = "train"
	ActionStart Action = "start"
	ActionStop  Action = "stop"
	ActionStep  Action = "step"
)

// Actions lists every action.
var Actions = []Action{ActionTrain, ActionStart, ActionStop, ActionStep}

// ParseAction maps a name to an Action.
func ParseAction(name string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(name)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", name)
	}
	return a, nil
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a.Path() != ""
}

// Path returns the backend endpoint for the action.
func (a Action) Path() string {
	switch a {
	case ActionTrain:
		return api.PathTrain
	case ActionStart:
		return api.PathStart
	case ActionStop:
		return api.PathStop
	case ActionStep:
		return api.PathStep
	default:
		return ""
	}
}
