// SPDX-License-Identifier: MPL-2.0

package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/pkg/moduleconfig"
	"glimmer-pipeline/pkg/resolution"
	"glimmer-pipeline/pkg/tree"

	"github.com/zeebo/xxh3"
)

const (
	// Extension marks template sources.
	Extension = ".hbs"
	// Stage names template failures in TransformErrors.
	Stage = "templates"
)

type (
	// Options configures template precompilation.
	Options struct {
		// Format selects per-template modules or one bytecode bundle.
		Format config.TemplateFormat
		// ModulePrefix is the application name used in specifiers.
		ModulePrefix string
		// ModuleConfiguration classifies template paths into specifiers.
		ModuleConfiguration *moduleconfig.Resolved
	}

	// Template is one precompiled template.
	Template struct {
		// Path is the source path relative to the source root.
		Path string `json:"-"`
		// ID is the hex xxh3 hash of the template source.
		ID string `json:"id"`
		// Block is the JSON-encoded statement list.
		Block string `json:"block"`
		// Meta carries the resolver specifier, which is nil for templates
		// that do not classify.
		Meta Meta `json:"meta"`
	}

	// Meta is the template metadata seen by the runtime.
	Meta struct {
		Specifier *string `json:"specifier"`
	}

	// Result is the output of Precompile.
	Result struct {
		// Tree holds the generated modules.
		Tree tree.Tree
		// Templates lists every template in path order.
		Templates []Template
		// Unclassified lists template paths that got no specifier.
		Unclassified []string
	}
)

// IsTemplate reports whether p is a template source.
func IsTemplate(p string) bool {
	return path.Ext(p) == Extension
}

// Precompile compiles every .hbs file in in. Templates are checked for
// balanced blocks and mustaches; the first malformed template fails the run
// with a TransformError.
func Precompile(ctx context.Context, in tree.Tree, opts Options) (Result, error) {
	if opts.ModuleConfiguration == nil {
		return Result{}, errors.New("templates: module configuration is required")
	}
	format := opts.Format
	if format == "" {
		format = config.TemplateFormatJSON
	}
	if valid, errs := format.IsValid(); !valid {
		return Result{}, errors.Join(errs...)
	}

	var res Result
	for _, f := range in.Files() {
		if !IsTemplate(f.Path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("precompile templates canceled: %w", err)
		}
		tpl, err := compileTemplate(f, opts)
		if err != nil {
			return Result{}, err
		}
		if tpl.Meta.Specifier == nil {
			res.Unclassified = append(res.Unclassified, f.Path)
		}
		res.Templates = append(res.Templates, tpl)
	}

	var files []tree.File
	switch format {
	case config.TemplateFormatBytecode:
		if len(res.Templates) > 0 {
			bundle, dataSegment, err := encodeBytecode(res.Templates)
			if err != nil {
				return Result{}, err
			}
			files = append(files,
				tree.File{Path: BytecodePath, Data: bundle},
				tree.File{Path: DataSegmentPath, Data: dataSegment},
			)
		}
	default:
		for _, tpl := range res.Templates {
			mod, err := Module(tpl)
			if err != nil {
				return Result{}, err
			}
			files = append(files, tree.File{Path: ModulePath(tpl.Path), Data: mod})
		}
	}

	out, err := tree.New(files...)
	if err != nil {
		return Result{}, err
	}
	res.Tree = out
	return res, nil
}

// ModulePath maps a template source path to its generated module.
func ModulePath(p string) string {
	return strings.TrimSuffix(p, Extension) + ".js"
}

// Module renders the JavaScript module exporting tpl.
func Module(tpl Template) ([]byte, error) {
	data, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template %s: %w", tpl.Path, err)
	}
	return []byte("export default " + string(data) + ";\n"), nil
}

func compileTemplate(f tree.File, opts Options) (Template, error) {
	src := string(f.Data)
	stmts, err := parse(src)
	if err != nil {
		var pe *parseError
		if errors.As(err, &pe) {
			return Template{}, &compiler.TransformError{Stage: Stage, Path: f.Path, Line: pe.line, Column: pe.column, Message: pe.msg}
		}
		return Template{}, err
	}
	if stmts == nil {
		stmts = []Statement{}
	}
	block, err := json.Marshal(stmts)
	if err != nil {
		return Template{}, fmt.Errorf("failed to encode template %s: %w", f.Path, err)
	}

	tpl := Template{
		Path:  f.Path,
		ID:    fmt.Sprintf("%016x", xxh3.HashString(src)),
		Block: string(block),
	}
	if specifier, err := resolution.SpecifierFor(opts.ModulePrefix, f.Path, opts.ModuleConfiguration); err == nil {
		tpl.Meta.Specifier = &specifier
	}
	return tpl, nil
}
