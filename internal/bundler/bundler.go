// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/pkg/tree"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	// Stage names bundle failures in TransformErrors.
	Stage = "bundle"

	// EnvModule is the virtual module exposing build-time flags.
	EnvModule = "@glimmer/env"

	// thisIsUndefinedID is esbuild's warning for top-level `this` in ES modules.
	thisIsUndefinedID = "this-is-undefined-in-esm"
)

// ErrConfiguration is returned when bundle options cannot be honored.
var ErrConfiguration = errors.New("invalid bundle configuration")

type (
	// Logger receives bundler warnings. *log.Logger satisfies it.
	Logger interface {
		Warn(msg any, keyvals ...any)
	}

	// Options configures one bundle.
	Options struct {
		// Format is the module format of the bundle.
		Format config.BundleFormat
		// GlobalName names the global of IIFE and UMD bundles.
		GlobalName string
		// External lists packages left as imports.
		External []string
		// Treeshake removes unused exports.
		Treeshake bool
		// Plugins selects source transforms.
		Plugins []config.TransformPlugin
		// Sourcemaps keeps inline source maps and appends one to the bundle.
		Sourcemaps bool
		// Minify minifies the bundle.
		Minify bool
		// Environment sets the flags of EnvModule.
		Environment config.Environment
		// VendorNamespace is the package scope whose es2017 build is preferred.
		VendorNamespace string
		// NodeModules holds installed packages, relative to node_modules.
		NodeModules tree.Tree
		// Logger receives warnings; nil discards them.
		Logger Logger
	}
)

// Bundle bundles entry and everything it imports from src and
// opts.NodeModules into outFile. Nothing is read from disk.
func Bundle(ctx context.Context, src tree.Tree, entry, outFile string, opts Options) (tree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return tree.Tree{}, fmt.Errorf("bundle canceled: %w", err)
	}

	build, err := buildOptions(src, entry, outFile, opts)
	if err != nil {
		return tree.Tree{}, err
	}

	result := api.Build(build)

	var warnings []api.Message
	for _, msg := range result.Warnings {
		if msg.ID != thisIsUndefinedID {
			warnings = append(warnings, msg)
		}
	}
	if opts.Logger != nil {
		for _, w := range warnings {
			keyvals := []any{"stage", Stage}
			if w.Location != nil {
				keyvals = append(keyvals, "file", w.Location.File, "line", w.Location.Line)
			}
			opts.Logger.Warn(w.Text, keyvals...)
		}
	}

	if err := compiler.FromMessages(Stage, result.Errors); err != nil {
		return tree.Tree{}, err
	}

	want := path.Ext(outFile)
	for _, out := range result.OutputFiles {
		if path.Ext(strings.ReplaceAll(out.Path, "\\", "/")) == want {
			return tree.New(tree.File{Path: outFile, Data: out.Contents})
		}
	}
	return tree.Tree{}, &compiler.TransformError{Stage: Stage, Path: entry, Message: "bundle produced no output"}
}

func buildOptions(src tree.Tree, entry, outFile string, opts Options) (api.BuildOptions, error) {
	if entry == "" || outFile == "" {
		return api.BuildOptions{}, fmt.Errorf("%w: entry and output path are required", ErrConfiguration)
	}
	if !src.Has(entry) {
		return api.BuildOptions{}, fmt.Errorf("%w: entry %s does not exist", ErrConfiguration, entry)
	}

	build := api.BuildOptions{
		EntryPoints: []string{entry},
		Outfile:     outFile,
		Bundle:      true,
		Write:       false,
		Target:      api.ES2017,
		Platform:    api.PlatformBrowser,
		LogLevel:    api.LogLevelSilent,
		TreeShaking: api.TreeShakingFalse,
		Define:      defines(opts.Environment),
		Plugins:     []api.Plugin{treePlugin(src, opts)},
	}

	format := opts.Format
	if format == "" {
		format = config.BundleFormatES
	}
	switch format {
	case config.BundleFormatES:
		build.Format = api.FormatESModule
	case config.BundleFormatIIFE, config.BundleFormatUMD:
		build.Format = api.FormatIIFE
		build.GlobalName = opts.GlobalName
	case config.BundleFormatCJS:
		build.Format = api.FormatCommonJS
	default:
		_, errs := format.IsValid()
		return api.BuildOptions{}, fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}

	if opts.Treeshake {
		build.TreeShaking = api.TreeShakingTrue
	}
	if opts.Sourcemaps {
		build.Sourcemap = api.SourceMapInline
		build.SourcesContent = api.SourcesContentInclude
	}
	if opts.Minify {
		build.MinifyWhitespace = true
		build.MinifyIdentifiers = true
		build.MinifySyntax = true
	}

	for _, plugin := range opts.Plugins {
		switch plugin {
		case config.PluginDropConsole:
			build.Drop |= api.DropConsole
		case config.PluginDropDebugger:
			build.Drop |= api.DropDebugger
		case config.PluginStripDebug:
			build.Drop |= api.DropConsole | api.DropDebugger
		default:
			_, errs := plugin.IsValid()
			return api.BuildOptions{}, fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
		}
	}

	return build, nil
}

// defines replaces the bare flag identifiers for code that uses them
// without importing EnvModule.
func defines(env config.Environment) map[string]string {
	if env == "" {
		env = config.EnvironmentDevelopment
	}
	prod := env.IsProduction()
	return map[string]string{
		"DEBUG":                fmt.Sprintf("%t", !prod),
		"PROD":                 fmt.Sprintf("%t", prod),
		"CI":                   "false",
		"process.env.NODE_ENV": fmt.Sprintf("%q", string(env)),
	}
}

// envModule renders EnvModule for env.
func envModule(env config.Environment) string {
	prod := env.IsProduction()
	return fmt.Sprintf("export const DEBUG = %t;\nexport const PROD = %t;\nexport const CI = false;\n", !prod, prod)
}

func isExternal(external []string, specifier string) bool {
	return slices.ContainsFunc(external, func(name string) bool {
		return specifier == name || strings.HasPrefix(specifier, name+"/")
	})
}
