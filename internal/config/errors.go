package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports invalid configuration. It is raised before any
// data is fetched so a misconfigured run never produces a report.
type ValidationError struct {
	Section  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("config: invalid configuration: %s", strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("config: invalid %s configuration: %s", e.Section, strings.Join(e.Problems, "; "))
}

// NewValidationError returns nil when problems is empty.
func NewValidationError(section string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Section: section, Problems: problems}
}

// IsValidationError reports whether err (or any error it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
