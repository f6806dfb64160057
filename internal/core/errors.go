package core

import (
	"errors"
	"fmt"
)

var (
	ErrPersistenceRead = errors.New("persisted document unreadable")
	ErrEstimation      = errors.New("estimation failed")
	ErrInterpretation  = errors.New("food interpretation failed")
	ErrScan            = errors.New("label scan failed")
	ErrValidation      = errors.New("validation failed")
	// ErrNotFound signals a lookup without a match. Callers fall through to
	// another source instead of surfacing it.
	ErrNotFound = errors.New("not found")
)

// EstimationKind names the collaborator operation that failed.
type EstimationKind string

const (
	KindInterpret EstimationKind = "interpret"
	KindLookup    EstimationKind = "lookup"
	KindScan      EstimationKind = "scan"
)

type (
	// PersistenceReadError reports a stored document that could not be
	// decoded. The document is treated as empty.
	PersistenceReadError struct {
		Key string
		Err error
	}

	// EstimationError wraps a collaborator failure: unreachable, non-2xx or
	// unparseable payload.
	EstimationError struct {
		Kind   EstimationKind
		Reason string
		Err    error
	}

	// ValidationError reports user input that must be corrected.
	ValidationError struct {
		Field  string
		Reason string
	}
)

func (e *PersistenceReadError) Error() string {
	return fmt.Sprintf("read document %q: %v", e.Key, e.Err)
}

func (e *PersistenceReadError) Unwrap() error { return e.Err }

func (e *PersistenceReadError) Is(target error) bool { return target == ErrPersistenceRead }

func (e *EstimationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EstimationError) Unwrap() error { return e.Err }

func (e *EstimationError) Is(target error) bool {
	switch target {
	case ErrEstimation:
		return true
	case ErrInterpretation:
		return e.Kind == KindInterpret
	case ErrScan:
		return e.Kind == KindScan
	}
	return false
}

// InterpretationError builds an EstimationError for the free-text parse step.
func InterpretationError(reason string, err error) error {
	return &EstimationError{Kind: KindInterpret, Reason: reason, Err: err}
}

// ScanError builds an EstimationError for the label-scan step.
func ScanError(reason string, err error) error {
	return &EstimationError{Kind: KindScan, Reason: reason, Err: err}
}

// LookupError builds an EstimationError for the nutrient lookup step.
func LookupError(reason string, err error) error {
	return &EstimationError{Kind: KindLookup, Reason: reason, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
