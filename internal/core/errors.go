package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks across layers.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrency conflict")
	ErrGenerationFailed = errors.New("recurring generation failed")
	// ErrDuplicate marks a unique-key violation, such as a second
	// transaction for the same schedule occurrence.
	ErrDuplicate = errors.New("duplicate")
)

// ValidationError reports a malformed input field. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors groups field-level validation failures.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Fields returns field -> message, for callers that render per-field errors.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		out[e.Field] = e.Message
	}
	return out
}

// OrNil returns nil for an empty list so callers can `return errs.OrNil()`.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is surfaced when lock or CAS contention on a goal or
// schedule outlasted the retry budget.
type ConflictError struct {
	Resource string
	ID       string
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: concurrency conflict after %d attempts: %v", e.Resource, e.ID, e.Attempts, e.Err)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// GenerationFailure is a persistence failure while creating one occurrence.
// The schedule anchor is left where it was.
type GenerationFailure struct {
	ScheduleID string
	Occurrence Date
	Err        error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generate schedule %s occurrence %s: %v", e.ScheduleID, e.Occurrence, e.Err)
}

func (e *GenerationFailure) Is(target error) bool { return target == ErrGenerationFailed }

func (e *GenerationFailure) Unwrap() error { return e.Err }
