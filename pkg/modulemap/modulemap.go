// SPDX-License-Identifier: MPL-2.0

// Package modulemap generates the virtual modules the runtime resolver reads:
// the module map (specifier to module default export), the serialized
// resolver configuration and the test entry point.
package modulemap

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"

	"glimmer-pipeline/pkg/moduleconfig"
	"glimmer-pipeline/pkg/resolution"
	"glimmer-pipeline/pkg/tree"
)

const (
	// FilePath is where the generated module map is emitted.
	FilePath = "config/module-map.js"
	// ResolverConfigurationPath is where the serialized resolver
	// configuration is emitted.
	ResolverConfigurationPath = "config/resolver-configuration.js"
	// TestEntrypointPath is where the test entry point is emitted.
	TestEntrypointPath = "tests.js"
)

// ErrResolutionCollision is the sentinel error wrapped by
// ResolutionCollisionError.
var ErrResolutionCollision = errors.New("resolution collision")

type (
	// Entry is one module placed in the map.
	Entry struct {
		// Path is the module path without extension.
		Path      string
		Specifier string
		Binding   string
	}

	// Skip records a file left out of the map. Err is set when the file was
	// skipped because it could not be classified.
	Skip struct {
		Path   string
		Reason string
		Err    error
	}

	// Result is the output of Build.
	Result struct {
		File    tree.File
		Entries []Entry
		Skipped []Skip
	}

	// Option configures Build.
	Option func(*options)

	// ResolutionCollisionError is returned when two module paths resolve to
	// the same specifier. It wraps ErrResolutionCollision for errors.Is()
	// compatibility.
	ResolutionCollisionError struct {
		Specifier string
		First     string
		Second    string
	}

	options struct {
		strict    bool
		sourceDir string
	}
)

func (e *ResolutionCollisionError) Error() string {
	return fmt.Sprintf("modules %q and %q both resolve to %q", e.First, e.Second, e.Specifier)
}

func (e *ResolutionCollisionError) Unwrap() error { return ErrResolutionCollision }

// WithStrictClassification makes an unclassifiable module a build error
// instead of a skipped file.
func WithStrictClassification(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithSourceDir sets the directory, relative to the build root, that module
// paths are relative to. Imports are emitted relative to config/, so the
// default of "" places modules next to config/.
func WithSourceDir(dir string) Option {
	return func(o *options) { o.sourceDir = strings.Trim(dir, "/") }
}

// Build walks compiled in lexicographic order and emits the module map.
// The input tree is not modified.
func Build(compiled tree.Tree, cfg *moduleconfig.Resolved, modulePrefix string, opts ...Option) (Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		res      Result
		owners   = make(map[string]string)
		bindings = make(map[string]struct{})
	)

	for _, p := range compiled.Paths() {
		if !IsModuleFile(p) {
			continue
		}
		module := resolution.StripExtension(p)
		if module == "index" || module == "main" {
			continue
		}

		collection, _ := resolution.CollectionFor(module, cfg)
		if c, ok := cfg.Collection(collection); ok && c.Unresolvable {
			res.Skipped = append(res.Skipped, Skip{Path: p, Reason: fmt.Sprintf("collection %q is unresolvable", collection)})
			continue
		}

		class, err := resolution.Classify(module, cfg)
		if err != nil {
			if o.strict {
				return Result{}, err
			}
			res.Skipped = append(res.Skipped, Skip{Path: p, Reason: "unclassifiable", Err: err})
			continue
		}
		if !resolution.IsResolvable(class, cfg) {
			res.Skipped = append(res.Skipped, Skip{Path: p, Reason: fmt.Sprintf("type %q is unresolvable", class.Type)})
			continue
		}

		specifier := resolution.ResolveSpecifier(modulePrefix, class)
		if first, dup := owners[specifier]; dup {
			return Result{}, &ResolutionCollisionError{Specifier: specifier, First: first, Second: p}
		}
		owners[specifier] = p

		res.Entries = append(res.Entries, Entry{
			Path:      module,
			Specifier: specifier,
			Binding:   uniqueBinding(BindingName(module), bindings),
		})
	}

	res.File = tree.File{Path: FilePath, Data: []byte(render(res.Entries, o.sourceDir))}
	return res, nil
}

// IsModuleFile reports whether p is a JavaScript or TypeScript module.
// Declaration files are not modules.
func IsModuleFile(p string) bool {
	if strings.HasSuffix(p, ".d.ts") {
		return false
	}
	switch path.Ext(p) {
	case ".js", ".ts":
		return true
	}
	return false
}

// BindingName derives the import binding of a module path: "__" followed by
// the path with "/" replaced by "__" and any other character that is not a
// letter or digit replaced by "_", closed by "__".
func BindingName(modulePath string) string {
	var b strings.Builder
	b.Grow(len(modulePath) + 8)
	b.WriteString("__")
	for _, r := range modulePath {
		switch {
		case r == '/':
			b.WriteString("__")
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString("__")
	return b.String()
}

func uniqueBinding(name string, taken map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		if _, ok := taken[candidate]; !ok {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = name + "_" + strconv.Itoa(n)
	}
}

func render(entries []Entry, sourceDir string) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "import { default as %s } from %s;\n", e.Binding, jsString("../"+path.Join(sourceDir, e.Path)))
	}
	if len(entries) == 0 {
		b.WriteString("export default {};\n")
		return b.String()
	}
	b.WriteString("export default {\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s: %s,\n", jsString(e.Specifier), e.Binding)
	}
	b.WriteString("};\n")
	return b.String()
}

// jsString quotes s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
