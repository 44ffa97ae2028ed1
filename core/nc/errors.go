package nc

import (
	"errors"
	"fmt"
	"strings"

	"qualitrack/core/store"
)

var (
	ErrValidation  = errors.New("nc: validation failed")
	ErrNotFound    = errors.New("nc: not found")
	ErrTransition  = errors.New("nc: transition violation")
	ErrReferential = errors.New("nc: referential integrity")
)

// ValidationError lists every missing or malformed input field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransitionViolation is returned only when guards are enabled and an
// operation would skip or repeat a workflow stage.
type TransitionViolation struct {
	NCID      string
	Status    string
	Operation string
}

func (e *TransitionViolation) Error() string {
	return fmt.Sprintf("%s not allowed for nc %s in status %s", e.Operation, e.NCID, e.Status)
}

func (e *TransitionViolation) Is(target error) bool { return target == ErrTransition }

type ReferentialIntegrityError struct {
	Kind string
	NCID string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s references missing nc %s", e.Kind, e.NCID)
}

func (e *ReferentialIntegrityError) Is(target error) bool { return target == ErrReferential }

type fieldErrors []string

func (f *fieldErrors) add(field string) { *f = append(*f, field) }

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: append([]string(nil), f...)}
}

// ErrorKind buckets an error for metrics and logging.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransition):
		return "transition"
	case errors.Is(err, ErrReferential):
		return "referential"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
