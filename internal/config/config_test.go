// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glimmer-pipeline/internal/issue"
)

func writeOptions(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write options file: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := Load(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}

	defaults := DefaultConfig()
	if cfg.OutputPaths.App != defaults.OutputPaths.App {
		t.Errorf("output paths = %+v, want %+v", cfg.OutputPaths.App, defaults.OutputPaths.App)
	}
	if cfg.Trees != defaults.Trees {
		t.Errorf("trees = %+v, want %+v", cfg.Trees, defaults.Trees)
	}
	if cfg.Rollup.Format != BundleFormatES || !cfg.Rollup.Treeshake {
		t.Errorf("rollup = %+v", cfg.Rollup)
	}
	if cfg.Styles.Timeout != Duration(30*time.Second) {
		t.Errorf("styles.timeout = %s, want 30s", cfg.Styles.Timeout)
	}
	if len(cfg.Fingerprint.Extensions) != len(defaults.Fingerprint.Extensions) {
		t.Errorf("fingerprint.extensions = %v", cfg.Fingerprint.Extensions)
	}
	if cfg.VendorNamespace != "@glimmer" || cfg.EnvironmentPath != "config/environment" {
		t.Errorf("vendor_namespace = %q, environment_path = %q", cfg.VendorNamespace, cfg.EnvironmentPath)
	}
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := writeOptions(t, dir, `
output_paths: app: js: "assets/app.js"
rollup: {
	format: "iife"
	name:   "App"
	external: ["jquery"]
}
babel: plugins: ["drop-console"]
template_format: "bytecode"
styles: timeout: "2m"
strict_module_map: true
content_for: "head-footer": "<meta name=\"x\">"
`)

	cfg, path, err := Load(context.Background(), LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != want {
		t.Errorf("resolved path = %q, want %q", path, want)
	}
	if cfg.OutputPaths.App.JS != "assets/app.js" {
		t.Errorf("js = %q", cfg.OutputPaths.App.JS)
	}
	if cfg.OutputPaths.App.HTML != "index.html" {
		t.Errorf("html default lost: %q", cfg.OutputPaths.App.HTML)
	}
	if cfg.Rollup.Format != BundleFormatIIFE || cfg.Rollup.Name != "App" {
		t.Errorf("rollup = %+v", cfg.Rollup)
	}
	if len(cfg.Rollup.External) != 1 || cfg.Rollup.External[0] != "jquery" {
		t.Errorf("rollup.external = %v", cfg.Rollup.External)
	}
	if !cfg.Rollup.Treeshake {
		t.Error("rollup.treeshake default lost")
	}
	if len(cfg.Babel.Plugins) != 1 || cfg.Babel.Plugins[0] != PluginDropConsole {
		t.Errorf("babel.plugins = %v", cfg.Babel.Plugins)
	}
	if cfg.TemplateFormat != TemplateFormatBytecode {
		t.Errorf("template_format = %q", cfg.TemplateFormat)
	}
	if cfg.Styles.Timeout != Duration(2*time.Minute) {
		t.Errorf("styles.timeout = %s", cfg.Styles.Timeout)
	}
	if !cfg.StrictModuleMap {
		t.Error("strict_module_map should be true")
	}
	if got := cfg.ContentFor["head-footer"]; got != `<meta name="x">` {
		t.Errorf("content_for[head-footer] = %q", got)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", `nope: true`},
		{"unknown bundle format", `rollup: format: "amd"`},
		{"unknown plugin", `babel: plugins: ["transform-everything"]`},
		{"absolute output path", `output_paths: app: js: "/app.js"`},
		{"escaping output path", `output_paths: app: css: "../app.css"`},
		{"bad duration", `styles: timeout: "soon"`},
		{"syntax error", `rollup: {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeOptions(t, dir, tt.content)

			_, _, err := Load(context.Background(), LoadOptions{ProjectDir: dir})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error should be an ActionableError, got %T", err)
			}
			if ae.Issue != issue.BuildConfigInvalidId {
				t.Errorf("issue = %d, want %d", ae.Issue, issue.BuildConfigInvalidId)
			}
		})
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.cue")
	_, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: missing})
	if err == nil || !strings.Contains(err.Error(), "options file not found") {
		t.Fatalf("Load() error = %v, want options file not found", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := Load(ctx, LoadOptions{ProjectDir: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("GLIMMER_ROLLUP_FORMAT", "cjs")
	t.Setenv("GLIMMER_STRICT_MODULE_MAP", "true")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rollup.Format != BundleFormatCJS {
		t.Errorf("rollup.format = %q, want cjs", cfg.Rollup.Format)
	}
	if !cfg.StrictModuleMap {
		t.Error("strict_module_map should be overridden to true")
	}
}

func TestLoad_InvalidEnvironmentOverride(t *testing.T) {
	t.Setenv("GLIMMER_TEMPLATE_FORMAT", "xml")

	_, _, err := Load(context.Background(), LoadOptions{ProjectDir: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), `"xml"`) {
		t.Errorf("error should name the rejected value: %v", err)
	}
}

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	if err := (LoadOptions{}).Validate(); err != nil {
		t.Errorf("zero LoadOptions should be valid, got %v", err)
	}
	err := LoadOptions{ProjectDir: "  ", ConfigFilePath: "\t"}.Validate()
	if !errors.Is(err, ErrInvalidLoadOptions) {
		t.Fatalf("Validate() error = %v, want ErrInvalidLoadOptions", err)
	}
	var loadErr *InvalidLoadOptionsError
	if !errors.As(err, &loadErr) || len(loadErr.FieldErrors) != 2 {
		t.Errorf("want 2 field errors, got %v", err)
	}
}

func TestGenerateCUE_RoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, created, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if !created {
		t.Fatal("CreateDefaultConfig() should create the file")
	}
	if _, created, _ := CreateDefaultConfig(dir); created {
		t.Error("second CreateDefaultConfig() should keep the existing file")
	}

	cfg, resolved, err := Load(context.Background(), LoadOptions{ProjectDir: dir})
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Trees != DefaultConfig().Trees || cfg.Styles.Timeout != DefaultConfig().Styles.Timeout {
		t.Errorf("generated file changed defaults: %+v", cfg)
	}
}

func TestMarshalTOML(t *testing.T) {
	t.Parallel()

	out, err := MarshalTOML(DefaultConfig())
	if err != nil {
		t.Fatalf("MarshalTOML() error = %v", err)
	}
	for _, want := range []string{"[output_paths.app]", "app.js", "timeout = ", "30s", "vendor_namespace = "} {
		if !strings.Contains(string(out), want) {
			t.Errorf("TOML output missing %q:\n%s", want, out)
		}
	}
}
