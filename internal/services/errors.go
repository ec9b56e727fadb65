package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks rejected input (e.g. an empty prompt). Never persisted.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for records or remote jobs that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks remote calls that failed but are safe to retry later.
	ErrTransient = errors.New("transient failure")
	// ErrRemote marks error responses from an external service.
	ErrRemote = errors.New("remote error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTerminal marks state transitions attempted on an already-terminal job.
	ErrTerminal = errors.New("already terminal")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
