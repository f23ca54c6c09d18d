// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"glimmer-pipeline/internal/addon"
	"glimmer-pipeline/internal/config"

	"github.com/charmbracelet/log"
)

// DefaultCacheSize bounds the number of memoized stage outputs.
const DefaultCacheSize = 64

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid pipeline options")

// Options configures an App.
type Options struct {
	// ProjectDir is the project root.
	ProjectDir string
	// Environment selects the environment config block and the
	// production-only steps. It is never read from the process environment.
	Environment config.Environment
	// Config holds the build options; nil means config.DefaultConfig().
	Config *config.Config
	// Addons are dispatched in registration order after the built-in
	// static-content addon.
	Addons []addon.Hooks
	// Logger receives stage timing and warnings; nil discards them.
	Logger *log.Logger
	// CacheSize bounds the memo cache; zero means DefaultCacheSize.
	CacheSize int
}

// Validate checks that the options can drive a build.
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ProjectDir) == "" {
		errs = append(errs, errors.New("project directory must not be empty"))
	}
	if valid, envErrs := o.Environment.IsValid(); !valid {
		errs = append(errs, envErrs...)
	}
	if o.Config != nil {
		if valid, cfgErrs := o.Config.IsValid(); !valid {
			errs = append(errs, cfgErrs...)
		}
	}
	if o.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache size must not be negative, got %d", o.CacheSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}
