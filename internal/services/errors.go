package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProvider marks failures reported by an external speech, translation,
	// or synthesis backend. Recoverable when a fallback chain has alternatives.
	ErrProvider = errors.New("provider error")
	// ErrPrecondition marks a stage requested while the session is in a state
	// that does not permit it. Never retried automatically.
	ErrPrecondition = errors.New("precondition error")
	// ErrBusy marks an advance attempted while another stage is in flight for
	// the same session.
	ErrBusy          = errors.New("session busy")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error represents a condition that may clear on
// a later attempt of the same stage. Precondition and configuration failures
// never do.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
