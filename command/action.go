// Package command implements the natural-language command pipeline: parsing
// model output into typed actions, executing them against the task store,
// and orchestrating whole instructions.
package command

import (
	"fmt"

	"github.com/taskpilot/taskpilot/task"
)

// Kind identifies an action variant.
type Kind string

const (
	KindAdd       Kind = "add"
	KindEdit      Kind = "edit"
	KindDelete    Kind = "delete"
	KindAnalytics Kind = "analytics"

	// KindError marks a synthesized result for a failed or unrecognized
	// instruction; it is never produced by the parser as an action.
	KindError Kind = "error"
)

// Action is one structured instruction derived from natural language.
// Optional fields are nil when the model omitted them; for add actions the
// parser fills Description, Priority, and Status with their defaults.
type Action struct {
	Kind        Kind
	Title       string
	Description *string
	DueDate     *string // absolute calendar date as emitted by the model
	Priority    *task.Priority
	Status      *task.Status
	Query       string // analytics only
}

// ParseError reports model output that could not be decoded into actions.
// Raw carries the full model text for diagnostics.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %s", e.Reason)
}
