package augment

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying provider failures. A transient failure is
// eligible for bounded retry within one invocation; a permanent failure is
// not. Exhausting retries on a transient failure is treated as permanent for
// that invocation.
var (
	ErrTransient     = errors.New("transient failure")
	ErrPermanent     = errors.New("permanent failure")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message carrying provider context while tagging it
// with the given classification marker.
func Wrap(marker error, provider, operation, message string, err error) error {
	detail := buildDetail(provider, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err should count against the retry budget.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(provider, operation, message string) string {
	parts := make([]string, 0, 3)
	if provider = strings.TrimSpace(provider); provider != "" {
		parts = append(parts, provider)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}
