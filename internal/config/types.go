// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// EnvironmentDevelopment is the default build environment.
	EnvironmentDevelopment Environment = "development"
	// EnvironmentProduction enables minification and fingerprinting.
	EnvironmentProduction Environment = "production"
	// EnvironmentTest adds the test bundle to the output.
	EnvironmentTest Environment = "test"

	// TemplateFormatJSON emits one JavaScript module per template.
	TemplateFormatJSON TemplateFormat = "json"
	// TemplateFormatBytecode emits a binary template program plus a data segment module.
	TemplateFormatBytecode TemplateFormat = "bytecode"

	// BundleFormatES emits an ES module.
	BundleFormatES BundleFormat = "es"
	// BundleFormatIIFE emits an immediately invoked function expression.
	BundleFormatIIFE BundleFormat = "iife"
	// BundleFormatUMD is accepted for compatibility and emitted as IIFE.
	BundleFormatUMD BundleFormat = "umd"
	// BundleFormatCJS emits a CommonJS module.
	BundleFormatCJS BundleFormat = "cjs"

	// PluginDropConsole removes console.* calls from the bundle.
	PluginDropConsole TransformPlugin = "drop-console"
	// PluginDropDebugger removes debugger statements from the bundle.
	PluginDropDebugger TransformPlugin = "drop-debugger"
	// PluginStripDebug removes both console calls and debugger statements.
	PluginStripDebug TransformPlugin = "strip-debug"
)

var (
	// ErrInvalidEnvironment is returned when an Environment value is not recognized.
	ErrInvalidEnvironment = errors.New("invalid environment")
	// ErrInvalidTemplateFormat is returned when a TemplateFormat value is not recognized.
	ErrInvalidTemplateFormat = errors.New("invalid template format")
	// ErrInvalidBundleFormat is returned when a BundleFormat value is not recognized.
	ErrInvalidBundleFormat = errors.New("invalid bundle format")
	// ErrInvalidTransformPlugin is returned when a TransformPlugin value is not recognized.
	ErrInvalidTransformPlugin = errors.New("invalid transform plugin")
	// ErrInvalidOutputPath is returned when an output path is empty or escapes the output directory.
	ErrInvalidOutputPath = errors.New("invalid output path")
	// ErrInvalidStylesConfig is the sentinel error wrapped by InvalidStylesConfigError.
	ErrInvalidStylesConfig = errors.New("invalid styles config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Environment is the build environment. It is always supplied explicitly
	// to the pipeline.
	Environment string

	// InvalidEnvironmentError is returned when an Environment value is not recognized.
	// It wraps ErrInvalidEnvironment for errors.Is() compatibility.
	InvalidEnvironmentError struct {
		Value Environment
	}

	// TemplateFormat selects the compiled template representation.
	TemplateFormat string

	// InvalidTemplateFormatError is returned when a TemplateFormat value is not recognized.
	// It wraps ErrInvalidTemplateFormat for errors.Is() compatibility.
	InvalidTemplateFormatError struct {
		Value TemplateFormat
	}

	// BundleFormat selects the module format of the bundle.
	BundleFormat string

	// InvalidBundleFormatError is returned when a BundleFormat value is not recognized.
	// It wraps ErrInvalidBundleFormat for errors.Is() compatibility.
	InvalidBundleFormatError struct {
		Value BundleFormat
	}

	// Duration is a time.Duration written as a Go duration string ("30s")
	// in option files and TOML output.
	Duration time.Duration

	// TransformPlugin names a source transform applied while bundling.
	TransformPlugin string

	// InvalidTransformPluginError is returned when a TransformPlugin value is not recognized.
	// It wraps ErrInvalidTransformPlugin for errors.Is() compatibility.
	InvalidTransformPluginError struct {
		Value TransformPlugin
	}

	// OutputPath is a forward-slash path relative to the output directory.
	OutputPath string

	// InvalidOutputPathError is returned when an OutputPath is empty, absolute
	// or escapes the output directory.
	InvalidOutputPathError struct {
		Field string
		Value OutputPath
	}

	// InvalidStylesConfigError is returned when a StylesConfig has invalid fields.
	InvalidStylesConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the build options of a project.
	Config struct {
		// OutputPaths names the generated application files.
		OutputPaths OutputPathsConfig `json:"output_paths" mapstructure:"output_paths" toml:"output_paths"`
		// Trees locates the input directories relative to the project root.
		Trees TreesConfig `json:"trees" mapstructure:"trees" toml:"trees"`
		// Rollup holds the options passed through to the bundler.
		Rollup RollupConfig `json:"rollup" mapstructure:"rollup" toml:"rollup"`
		// Babel holds the transform plugins applied while bundling.
		Babel BabelConfig `json:"babel" mapstructure:"babel" toml:"babel"`
		// Sourcemaps toggles inline source maps.
		Sourcemaps SourcemapsConfig `json:"sourcemaps" mapstructure:"sourcemaps" toml:"sourcemaps"`
		// StoreConfigInMeta embeds the environment config in index.html
		// instead of emitting config/environment.js.
		StoreConfigInMeta bool `json:"store_config_in_meta" mapstructure:"store_config_in_meta" toml:"store_config_in_meta"`
		// TemplateFormat selects json or bytecode templates.
		TemplateFormat TemplateFormat `json:"template_format" mapstructure:"template_format" toml:"template_format"`
		// Minify toggles minification of production builds.
		Minify MinifyConfig `json:"minify" mapstructure:"minify" toml:"minify"`
		// Fingerprint configures asset revisioning of production builds.
		Fingerprint FingerprintConfig `json:"fingerprint" mapstructure:"fingerprint" toml:"fingerprint"`
		// Styles configures the style preprocessor.
		Styles StylesConfig `json:"styles" mapstructure:"styles" toml:"styles"`
		// StrictModuleMap makes unclassifiable modules a build error.
		StrictModuleMap bool `json:"strict_module_map" mapstructure:"strict_module_map" toml:"strict_module_map"`
		// ContentFor maps a content-for placeholder name to static content.
		ContentFor map[string]string `json:"content_for" mapstructure:"content_for" toml:"content_for"`
		// EnvironmentPath is the environment config path without extension.
		EnvironmentPath string `json:"environment_path" mapstructure:"environment_path" toml:"environment_path"`
		// VendorNamespace is the package scope whose module entry points are preferred.
		VendorNamespace string `json:"vendor_namespace" mapstructure:"vendor_namespace" toml:"vendor_namespace"`
	}

	// OutputPathsConfig groups output file names.
	OutputPathsConfig struct {
		App AppOutputPaths `json:"app" mapstructure:"app" toml:"app"`
	}

	// AppOutputPaths names the application html, js and css files.
	AppOutputPaths struct {
		HTML OutputPath `json:"html" mapstructure:"html" toml:"html"`
		JS   OutputPath `json:"js" mapstructure:"js" toml:"js"`
		CSS  OutputPath `json:"css" mapstructure:"css" toml:"css"`
	}

	// TreesConfig locates input directories.
	TreesConfig struct {
		Src         string `json:"src" mapstructure:"src" toml:"src"`
		Styles      string `json:"styles" mapstructure:"styles" toml:"styles"`
		Public      string `json:"public" mapstructure:"public" toml:"public"`
		NodeModules string `json:"node_modules" mapstructure:"node_modules" toml:"node_modules"`
		Tests       string `json:"tests" mapstructure:"tests" toml:"tests"`
	}

	// RollupConfig holds bundler passthrough options.
	RollupConfig struct {
		Format    BundleFormat `json:"format" mapstructure:"format" toml:"format"`
		Name      string       `json:"name" mapstructure:"name" toml:"name"`
		External  []string     `json:"external" mapstructure:"external" toml:"external"`
		Treeshake bool         `json:"treeshake" mapstructure:"treeshake" toml:"treeshake"`
	}

	// BabelConfig lists transform plugins.
	BabelConfig struct {
		Plugins []TransformPlugin `json:"plugins" mapstructure:"plugins" toml:"plugins"`
	}

	// SourcemapsConfig toggles source maps.
	SourcemapsConfig struct {
		Enabled bool `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	}

	// MinifyConfig toggles minification. It only applies to production builds.
	MinifyConfig struct {
		Enabled bool `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	}

	// FingerprintConfig configures asset revisioning. It only applies to
	// production builds.
	FingerprintConfig struct {
		Enabled bool `json:"enabled" mapstructure:"enabled" toml:"enabled"`
		// Extensions lists the file extensions that get a content hash.
		Extensions []string `json:"extensions" mapstructure:"extensions" toml:"extensions"`
		// ReplaceExtensions lists the file extensions whose references are rewritten.
		ReplaceExtensions []string `json:"replace_extensions" mapstructure:"replace_extensions" toml:"replace_extensions"`
		// Exclude lists doublestar patterns of files never renamed.
		Exclude []string `json:"exclude" mapstructure:"exclude" toml:"exclude"`
		// Prepend is prefixed to rewritten references, e.g. a CDN URL.
		Prepend string `json:"prepend" mapstructure:"prepend" toml:"prepend"`
	}

	// StylesConfig configures the style preprocessor command.
	StylesConfig struct {
		// Command is a shell command reading $STYLES_IN and writing $STYLES_OUT.
		Command string `json:"command" mapstructure:"command" toml:"command"`
		// Timeout bounds the command run time.
		Timeout Duration `json:"timeout" mapstructure:"timeout" toml:"timeout"`
	}
)

// Error implements the error interface for InvalidEnvironmentError.
func (e *InvalidEnvironmentError) Error() string {
	return fmt.Sprintf("invalid environment %q (valid: development, production, test)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidEnvironmentError) Unwrap() error { return ErrInvalidEnvironment }

// String returns the string representation of the Environment.
func (e Environment) String() string { return string(e) }

// IsValid returns whether the Environment is one of the defined environments,
// and a list of validation errors if it is not.
func (e Environment) IsValid() (bool, []error) {
	switch e {
	case EnvironmentDevelopment, EnvironmentProduction, EnvironmentTest:
		return true, nil
	default:
		return false, []error{&InvalidEnvironmentError{Value: e}}
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool { return e == EnvironmentProduction }

// Error implements the error interface for InvalidTemplateFormatError.
func (e *InvalidTemplateFormatError) Error() string {
	return fmt.Sprintf("invalid template format %q (valid: json, bytecode)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidTemplateFormatError) Unwrap() error { return ErrInvalidTemplateFormat }

// String returns the string representation of the TemplateFormat.
func (f TemplateFormat) String() string { return string(f) }

// IsValid returns whether the TemplateFormat is one of the defined formats,
// and a list of validation errors if it is not.
func (f TemplateFormat) IsValid() (bool, []error) {
	switch f {
	case TemplateFormatJSON, TemplateFormatBytecode:
		return true, nil
	default:
		return false, []error{&InvalidTemplateFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidBundleFormatError.
func (e *InvalidBundleFormatError) Error() string {
	return fmt.Sprintf("invalid bundle format %q (valid: es, iife, umd, cjs)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidBundleFormatError) Unwrap() error { return ErrInvalidBundleFormat }

// String returns the string representation of the BundleFormat.
func (f BundleFormat) String() string { return string(f) }

// IsValid returns whether the BundleFormat is one of the defined formats,
// and a list of validation errors if it is not.
func (f BundleFormat) IsValid() (bool, []error) {
	switch f {
	case BundleFormatES, BundleFormatIIFE, BundleFormatUMD, BundleFormatCJS:
		return true, nil
	default:
		return false, []error{&InvalidBundleFormatError{Value: f}}
	}
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Error implements the error interface for InvalidTransformPluginError.
func (e *InvalidTransformPluginError) Error() string {
	return fmt.Sprintf("unknown transform plugin %q (valid: drop-console, drop-debugger, strip-debug)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidTransformPluginError) Unwrap() error { return ErrInvalidTransformPlugin }

// String returns the string representation of the TransformPlugin.
func (p TransformPlugin) String() string { return string(p) }

// IsValid returns whether the TransformPlugin is one of the known plugins,
// and a list of validation errors if it is not.
func (p TransformPlugin) IsValid() (bool, []error) {
	switch p {
	case PluginDropConsole, PluginDropDebugger, PluginStripDebug:
		return true, nil
	default:
		return false, []error{&InvalidTransformPluginError{Value: p}}
	}
}

// Error implements the error interface for InvalidOutputPathError.
func (e *InvalidOutputPathError) Error() string {
	return fmt.Sprintf("invalid output path %s=%q: must be a non-empty relative path inside the output directory", e.Field, e.Value)
}

// Unwrap returns ErrInvalidOutputPath for errors.Is() compatibility.
func (e *InvalidOutputPathError) Unwrap() error { return ErrInvalidOutputPath }

// String returns the string representation of the OutputPath.
func (p OutputPath) String() string { return string(p) }

// Validate checks p and names field in the error.
func (p OutputPath) Validate(field string) error {
	s := string(p)
	if strings.TrimSpace(s) == "" || strings.HasPrefix(s, "/") || strings.Contains(s, "\\") ||
		s == ".." || strings.HasPrefix(s, "../") || strings.Contains(s, "/../") {
		return &InvalidOutputPathError{Field: field, Value: p}
	}
	return nil
}

// IsValid returns whether the AppOutputPaths are all valid relative paths.
func (p AppOutputPaths) IsValid() (bool, []error) {
	var errs []error
	for _, f := range []struct {
		name  string
		value OutputPath
	}{
		{"output_paths.app.html", p.HTML},
		{"output_paths.app.js", p.JS},
		{"output_paths.app.css", p.CSS},
	} {
		if err := f.value.Validate(f.name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// IsValid returns whether the StylesConfig has valid fields.
func (c StylesConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("styles.timeout must be positive, got %s", c.Timeout))
	}
	if c.Command != "" && strings.TrimSpace(c.Command) == "" {
		errs = append(errs, errors.New("styles.command must not be whitespace-only"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidStylesConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidStylesConfigError.
func (e *InvalidStylesConfigError) Error() string {
	return fmt.Sprintf("invalid styles config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidStylesConfig for errors.Is() compatibility.
func (e *InvalidStylesConfigError) Unwrap() error { return ErrInvalidStylesConfig }

// IsValid returns whether the Config has valid fields. Field errors of all
// sub-components are collected into a single InvalidConfigError.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.OutputPaths.App.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Rollup.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, plugin := range c.Babel.Plugins {
		if valid, fieldErrs := plugin.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.TemplateFormat.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Styles.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if strings.TrimSpace(c.Trees.Src) == "" {
		errs = append(errs, errors.New("trees.src must not be empty"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default build options.
func DefaultConfig() *Config {
	return &Config{
		OutputPaths: OutputPathsConfig{
			App: AppOutputPaths{HTML: "index.html", JS: "app.js", CSS: "app.css"},
		},
		Trees: TreesConfig{
			Src:         "src",
			Styles:      "src/ui/styles",
			Public:      "public",
			NodeModules: "node_modules",
			Tests:       "src",
		},
		Rollup: RollupConfig{
			Format:    BundleFormatES,
			External:  []string{},
			Treeshake: true,
		},
		Babel:          BabelConfig{Plugins: []TransformPlugin{}},
		TemplateFormat: TemplateFormatJSON,
		Minify:         MinifyConfig{Enabled: true},
		Fingerprint: FingerprintConfig{
			Enabled:           true,
			Extensions:        []string{"js", "css", "png", "jpg", "gif", "map", "svg"},
			ReplaceExtensions: []string{"html", "css", "js"},
			Exclude:           []string{},
		},
		Styles:          StylesConfig{Timeout: Duration(30 * time.Second)},
		ContentFor:      map[string]string{},
		EnvironmentPath: "config/environment",
		VendorNamespace: "@glimmer",
	}
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
