package command

import (
	"errors"
	"fmt"
)

// Sentinel errors for payload parsing.
var (
	// ErrMissingField indicates a required key is absent from the payload.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField indicates a key is present but cannot be converted.
	ErrInvalidField = errors.New("invalid field value")

	// ErrUnknownType indicates a payload type no handler exists for.
	ErrUnknownType = errors.New("unknown command type")

	// ErrMalformed indicates the payload is not a JSON object.
	ErrMalformed = errors.New("malformed payload")
)

// MissingFieldError names the absent key.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingField, e.Field)
}

// Is lets errors.Is match ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
