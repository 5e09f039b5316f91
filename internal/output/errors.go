package output

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOutputFiles indicates a directory holds no numeric solver output.
	ErrNoOutputFiles = errors.New("output: no output (.sv4) files")

	// ErrMissingField indicates a required field was not imported.
	ErrMissingField = errors.New("output: missing field")

	// ErrLengthMismatch indicates fields combined element-wise have different lengths.
	ErrLengthMismatch = errors.New("output: field length mismatch")
)

// MissingFieldError names the field that was required and its consumer.
type MissingFieldError struct {
	Field string
	For   string
}

func (e *MissingFieldError) Error() string {
	if e.For == "" {
		return fmt.Sprintf("output: missing field %q", e.Field)
	}
	return fmt.Sprintf("output: missing field %q required for %s", e.Field, e.For)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}
