package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores for mutations that matched nothing.
var ErrNotFound = errors.New("not found")

// DuplicateError reports a unique-constraint violation.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Field, e.Value)
}

// InvalidIDError reports an identifier that cannot be parsed.
type InvalidIDError struct {
	Value string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("Invalid id: %s.", e.Value)
}

// ValidationError is a rejected document. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
