package inference

import (
	"errors"
	"fmt"
)

// Sentinels for the four malformed-input diagnoses. Use errors.Is against a
// *ValidationError to tell them apart.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrMissingField     = errors.New("missing field")
	ErrInvalidShape     = errors.New("invalid shape")
	ErrConversion       = errors.New("conversion failure")
)

// Reason is the machine-readable sub-reason of a ValidationError.
type Reason string

const (
	ReasonMalformedRequest Reason = "malformed_request"
	ReasonMissingField     Reason = "missing_field"
	ReasonWrongLength      Reason = "wrong_length"
	ReasonWrongArity       Reason = "wrong_arity"
	ReasonConversion       Reason = "conversion_failure"
)

// ValidationError reports a payload that could not be turned into landmarks.
type ValidationError struct {
	Reason Reason
	Msg    string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	switch e.Reason {
	case ReasonMalformedRequest:
		return ErrMalformedRequest
	case ReasonMissingField:
		return ErrMissingField
	case ReasonWrongLength, ReasonWrongArity:
		return ErrInvalidShape
	case ReasonConversion:
		return ErrConversion
	}
	return nil
}

// NewValidationError builds a ValidationError with the canonical message for
// reason.
func NewValidationError(reason Reason) *ValidationError {
	return &ValidationError{Reason: reason, Msg: messages[reason]}
}

var messages = map[Reason]string{
	ReasonMalformedRequest: "invalid or missing JSON body",
	ReasonMissingField:     "missing 'points' field",
	ReasonWrongLength:      "expected 'points' to be a list of length 21",
	ReasonWrongArity:       "expected 'points' shape (21, 3)",
	ReasonConversion:       "could not convert 'points' to a numeric array",
}

// InferenceError reports a classifier failure on valid input.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
