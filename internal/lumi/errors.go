package lumi

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("lumi: invalid argument")

// ValidationError rejects an argument before anything is encoded.
type ValidationError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lumi: invalid %s %d: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field string, v int, reason string) error {
	return &ValidationError{Field: field, Value: v, Reason: reason}
}
