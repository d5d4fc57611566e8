package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Violation is a single field-level problem with a command.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violation found in a command so the
// caller can report all of them at once. It is raised before any state
// is mutated.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: message})
}

func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InvalidStateTransitionError reports an attempted status change that is
// not in the aggregate's transition table. The original status is left
// unchanged.
type InvalidStateTransitionError struct {
	AggregateType string
	AggregateID   string
	Current       string
	Target        string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition for %s: %s -> %s",
		e.AggregateType, e.AggregateID, e.Current, e.Target)
}
