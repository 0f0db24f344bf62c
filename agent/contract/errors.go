package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrNotFound           = errors.New("not found")
	ErrUpstreamOverloaded = errors.New("upstream overloaded")
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrTransport          = errors.New("transport failure")
)

// ValidationError describes a tool invocation rejected before dispatch.
type ValidationError struct {
	Tool    string
	Missing []string
	Invalid []string
	Unknown bool
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: tool=%s", ErrValidation, e.Tool)
	if e.Unknown {
		b.WriteString(" is not declared")
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " missing=%s", strings.Join(e.Missing, ","))
	}
	if len(e.Invalid) > 0 {
		fmt.Fprintf(&b, " invalid=%s", strings.Join(e.Invalid, ","))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
