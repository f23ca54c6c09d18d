// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"glimmer-pipeline/pkg/tree"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/errgroup"
)

// TsconfigFile is the optional compiler configuration in the project root.
const TsconfigFile = "tsconfig.json"

// ErrInvalidTsconfig is returned when tsconfig.json cannot be read or parsed.
var ErrInvalidTsconfig = errors.New("invalid tsconfig.json")

// DefaultTsconfig applies when a project has no tsconfig.json.
const DefaultTsconfig = `{"compilerOptions": {"target": "es2017", "module": "es2015", "moduleResolution": "node"}}`

// Options configures TypeScript compilation.
type Options struct {
	// TsconfigRaw is the tsconfig.json content passed to esbuild.
	TsconfigRaw string
	// Sourcemaps appends an inline source map to every output file.
	Sourcemaps bool
}

// LoadTsconfig reads and validates projectDir/tsconfig.json. A missing file
// yields DefaultTsconfig and ok=false.
func LoadTsconfig(projectDir string) (raw string, ok bool, err error) {
	p := filepath.Join(projectDir, TsconfigFile)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultTsconfig, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInvalidTsconfig, err)
	}

	// esbuild parses tsconfig with comments and trailing commas allowed, the
	// same dialect tsc accepts.
	probe := api.Transform("", api.TransformOptions{Loader: api.LoaderTS, TsconfigRaw: string(data)})
	if len(probe.Errors) > 0 {
		return "", false, fmt.Errorf("%w: %s: %s", ErrInvalidTsconfig, p, probe.Errors[0].Text)
	}
	return string(data), true, nil
}

// IsTypeScript reports whether p is a TypeScript source. Declaration files
// are not compiled.
func IsTypeScript(p string) bool {
	return path.Ext(p) == ".ts" && !strings.HasSuffix(p, ".d.ts")
}

// OutputPath maps a TypeScript path to its JavaScript output path.
func OutputPath(p string) string {
	return strings.TrimSuffix(p, ".ts") + ".js"
}

// CompileFile transpiles one TypeScript source to an ES module.
func CompileFile(p string, src []byte, opts Options) (tree.File, error) {
	sourcemap := api.SourceMapNone
	if opts.Sourcemaps {
		sourcemap = api.SourceMapInline
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:         api.LoaderTS,
		Format:         api.FormatESModule,
		Target:         api.ES2017,
		Sourcefile:     p,
		Sourcemap:      sourcemap,
		SourcesContent: api.SourcesContentInclude,
		TsconfigRaw:    opts.TsconfigRaw,
		LogLevel:       api.LogLevelSilent,
	})
	if err := FromMessages("typescript", result.Errors); err != nil {
		return tree.File{}, err
	}
	return tree.File{Path: OutputPath(p), Data: result.Code}, nil
}

// Compile transpiles every TypeScript file of in. The result holds only the
// generated JavaScript files. Files compile concurrently; the first failure
// cancels the rest.
func Compile(ctx context.Context, in tree.Tree, opts Options) (tree.Tree, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var (
		mu  sync.Mutex
		out []tree.File
	)
	for _, f := range in.Files() {
		if !IsTypeScript(f.Path) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			compiled, err := CompileFile(f.Path, f.Data, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, compiled)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return tree.Tree{}, err
	}
	return tree.New(out...)
}
