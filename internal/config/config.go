// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"glimmer-pipeline/internal/issue"
	"glimmer-pipeline/pkg/cueutil"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "glimmer-build"
	// ConfigFileName is the name of the project options file (without extension).
	ConfigFileName = "glimmer-build"
	// ConfigFileExt is the options file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override options.
	EnvPrefix = "GLIMMER"
)

//go:embed build_schema.cue
var buildSchema []byte

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the loaded options and the path of the
// options file that was read, or "" when only defaults apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load build options canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// An explicit --config path must exist; the project default is optional.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load build options").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'glimmer-build config init' to create a default options file").
				WithIssue(issue.BuildConfigInvalidId).
				Wrap(fmt.Errorf("options file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if projectPath := filepath.Join(opts.projectDir(), ConfigFileName+"."+ConfigFileExt); fileExists(projectPath) {
		resolvedPath = projectPath
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load build options").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the option values match the expected schema").
				WithSuggestion("Run 'glimmer-build config show' to see the default options").
				WithIssue(issue.BuildConfigInvalidId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, "", fmt.Errorf("failed to parse build options: %w", err)
	}

	// CUE checks shapes; cross-field rules and environment overrides are
	// checked here.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate build options").
			WithResource(resolvedPath).
			WithSuggestion("Check GLIMMER_* environment variables for stale overrides").
			WithIssue(issue.BuildConfigInvalidId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("output_paths.app.html", defaults.OutputPaths.App.HTML)
	v.SetDefault("output_paths.app.js", defaults.OutputPaths.App.JS)
	v.SetDefault("output_paths.app.css", defaults.OutputPaths.App.CSS)
	v.SetDefault("trees.src", defaults.Trees.Src)
	v.SetDefault("trees.styles", defaults.Trees.Styles)
	v.SetDefault("trees.public", defaults.Trees.Public)
	v.SetDefault("trees.node_modules", defaults.Trees.NodeModules)
	v.SetDefault("trees.tests", defaults.Trees.Tests)
	v.SetDefault("rollup.format", defaults.Rollup.Format)
	v.SetDefault("rollup.name", defaults.Rollup.Name)
	v.SetDefault("rollup.external", defaults.Rollup.External)
	v.SetDefault("rollup.treeshake", defaults.Rollup.Treeshake)
	v.SetDefault("babel.plugins", defaults.Babel.Plugins)
	v.SetDefault("sourcemaps.enabled", defaults.Sourcemaps.Enabled)
	v.SetDefault("store_config_in_meta", defaults.StoreConfigInMeta)
	v.SetDefault("template_format", defaults.TemplateFormat)
	v.SetDefault("minify.enabled", defaults.Minify.Enabled)
	v.SetDefault("fingerprint.enabled", defaults.Fingerprint.Enabled)
	v.SetDefault("fingerprint.extensions", defaults.Fingerprint.Extensions)
	v.SetDefault("fingerprint.replace_extensions", defaults.Fingerprint.ReplaceExtensions)
	v.SetDefault("fingerprint.exclude", defaults.Fingerprint.Exclude)
	v.SetDefault("fingerprint.prepend", defaults.Fingerprint.Prepend)
	v.SetDefault("styles.command", defaults.Styles.Command)
	v.SetDefault("styles.timeout", defaults.Styles.Timeout.String())
	v.SetDefault("strict_module_map", defaults.StrictModuleMap)
	v.SetDefault("content_for", defaults.ContentFor)
	v.SetDefault("environment_path", defaults.EnvironmentPath)
	v.SetDefault("vendor_namespace", defaults.VendorNamespace)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Build schema,
// and merges its contents into Viper.
//
// The document decodes to map[string]any rather than Config so Viper keeps
// its defaults and environment overrides for fields the file omits.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read options file: %w", err)
	}

	result, err := cueutil.Decode[map[string]any](buildSchema, data, "#Build",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("failed to merge build options: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default options file into projectDir. It
// returns the file path and whether the file was created; an existing file
// is left untouched.
func CreateDefaultConfig(projectDir string) (string, bool, error) {
	cfgPath := filepath.Join(projectDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write options file: %w", err)
	}

	return cfgPath, true, nil
}

// MarshalTOML renders the options as TOML, as shown by 'config show'.
func MarshalTOML(cfg *Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render build options: %w", err)
	}
	return out, nil
}

// GenerateCUE generates a CUE representation of the options.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// glimmer-build options\n")
	sb.WriteString("// Omitted fields keep their defaults. Run 'glimmer-build config show' to see them.\n\n")

	sb.WriteString("output_paths: app: {\n")
	fmt.Fprintf(&sb, "\thtml: %q\n", cfg.OutputPaths.App.HTML)
	fmt.Fprintf(&sb, "\tjs:   %q\n", cfg.OutputPaths.App.JS)
	fmt.Fprintf(&sb, "\tcss:  %q\n", cfg.OutputPaths.App.CSS)
	sb.WriteString("}\n")

	sb.WriteString("\ntrees: {\n")
	fmt.Fprintf(&sb, "\tsrc:          %q\n", cfg.Trees.Src)
	fmt.Fprintf(&sb, "\tstyles:       %q\n", cfg.Trees.Styles)
	fmt.Fprintf(&sb, "\tpublic:       %q\n", cfg.Trees.Public)
	fmt.Fprintf(&sb, "\tnode_modules: %q\n", cfg.Trees.NodeModules)
	fmt.Fprintf(&sb, "\ttests:        %q\n", cfg.Trees.Tests)
	sb.WriteString("}\n")

	sb.WriteString("\nrollup: {\n")
	fmt.Fprintf(&sb, "\tformat:    %q\n", cfg.Rollup.Format)
	if cfg.Rollup.Name != "" {
		fmt.Fprintf(&sb, "\tname:      %q\n", cfg.Rollup.Name)
	}
	fmt.Fprintf(&sb, "\texternal:  %s\n", cueList(cfg.Rollup.External))
	fmt.Fprintf(&sb, "\ttreeshake: %v\n", cfg.Rollup.Treeshake)
	sb.WriteString("}\n")

	plugins := make([]string, len(cfg.Babel.Plugins))
	for i, p := range cfg.Babel.Plugins {
		plugins[i] = p.String()
	}
	fmt.Fprintf(&sb, "\nbabel: plugins: %s\n", cueList(plugins))

	fmt.Fprintf(&sb, "\nsourcemaps: enabled: %v\n", cfg.Sourcemaps.Enabled)
	fmt.Fprintf(&sb, "minify: enabled: %v\n", cfg.Minify.Enabled)
	fmt.Fprintf(&sb, "store_config_in_meta: %v\n", cfg.StoreConfigInMeta)
	fmt.Fprintf(&sb, "template_format: %q\n", cfg.TemplateFormat)
	fmt.Fprintf(&sb, "strict_module_map: %v\n", cfg.StrictModuleMap)

	sb.WriteString("\nfingerprint: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Fingerprint.Enabled)
	fmt.Fprintf(&sb, "\textensions: %s\n", cueList(cfg.Fingerprint.Extensions))
	fmt.Fprintf(&sb, "\treplace_extensions: %s\n", cueList(cfg.Fingerprint.ReplaceExtensions))
	fmt.Fprintf(&sb, "\texclude: %s\n", cueList(cfg.Fingerprint.Exclude))
	sb.WriteString("}\n")

	sb.WriteString("\nstyles: {\n")
	if cfg.Styles.Command != "" {
		fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Styles.Command)
	}
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Styles.Timeout.String())
	sb.WriteString("}\n")

	if len(cfg.ContentFor) > 0 {
		sb.WriteString("\ncontent_for: {\n")
		for _, name := range sortedKeys(cfg.ContentFor) {
			fmt.Fprintf(&sb, "\t%q: %q\n", name, cfg.ContentFor[name])
		}
		sb.WriteString("}\n")
	}

	fmt.Fprintf(&sb, "\nenvironment_path: %q\n", cfg.EnvironmentPath)
	fmt.Fprintf(&sb, "vendor_namespace: %q\n", cfg.VendorNamespace)

	return sb.String()
}

func cueList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
