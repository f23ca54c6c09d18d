// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// LoadOptions defines explicit option loading inputs.
	LoadOptions struct {
		// ProjectDir is the project root searched for glimmer-build.cue.
		// Defaults to the working directory.
		ProjectDir string
		// ConfigFilePath forces loading from a specific options file when set.
		ConfigFilePath string
	}

	// InvalidLoadOptionsError is returned when LoadOptions has invalid fields.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Provider loads build options from explicit inputs.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	fileProvider struct{}
)

// NewProvider creates an options provider backed by the project's options file.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads build options from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is a convenience wrapper around NewProvider().Load that also reports
// which options file was read ("" when only defaults apply).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}
	return loadWithOptions(ctx, opts)
}

// Validate rejects whitespace-only paths, which are almost always a quoting
// mistake on the command line.
func (o LoadOptions) Validate() error {
	var errs []error
	if o.ProjectDir != "" && isBlank(o.ProjectDir) {
		errs = append(errs, fmt.Errorf("project dir %q must not be whitespace-only", o.ProjectDir))
	}
	if o.ConfigFilePath != "" && isBlank(o.ConfigFilePath) {
		errs = append(errs, fmt.Errorf("config file path %q must not be whitespace-only", o.ConfigFilePath))
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidLoadOptionsError.
func (e *InvalidLoadOptionsError) Error() string {
	return fmt.Sprintf("invalid load options: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoadOptions for errors.Is() compatibility.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }

func (o LoadOptions) projectDir() string {
	if o.ProjectDir == "" {
		return "."
	}
	return o.ProjectDir
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
