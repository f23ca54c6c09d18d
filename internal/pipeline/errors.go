// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"

	"glimmer-pipeline/internal/issue"
)

// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

type (
	// ConfigurationError reports a project the pipeline cannot build as laid
	// out: a missing source directory, an outdated entry point, unusable
	// options or an unreadable config file.
	ConfigurationError struct {
		// Message describes the problem.
		Message string
		// Issue points at the catalog entry explaining the fix.
		Issue issue.Id
		// Err is the underlying cause, if any.
		Err error
	}

	// StageError records which stage failed.
	StageError struct {
		Stage string
		Err   error
	}
)

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns both the sentinel and the cause for errors.Is() compatibility.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the stage's error.
func (e *StageError) Unwrap() error { return e.Err }
