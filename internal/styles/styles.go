// SPDX-License-Identifier: MPL-2.0

package styles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"glimmer-pipeline/internal/bundler"
	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/pkg/tree"

	"github.com/evanw/esbuild/pkg/api"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// Stage names style failures in TransformErrors.
	Stage = "styles"

	// EntryFile is bundled with its imports when present.
	EntryFile = "app.css"

	// EnvInput names the directory holding the styles tree for Command.
	EnvInput = "STYLES_IN"
	// EnvOutput names the file Command must write.
	EnvOutput = "STYLES_OUT"

	timeoutPrefix = "timed out after "
)

type (
	// Logger receives style warnings.
	Logger = bundler.Logger

	// Options configures the styles stage.
	Options struct {
		// OutputPath is the stylesheet path in the returned tree.
		OutputPath string
		// Command is a shell script that compiles the styles tree.
		Command string
		// Timeout bounds Command; zero means no limit.
		Timeout time.Duration
		// Dir is the working directory of Command.
		Dir string
		// Minify minifies the stylesheet.
		Minify bool
		// Logger receives warnings; nil discards them.
		Logger Logger
	}
)

// Build compiles the styles tree into a single stylesheet. It returns an
// empty tree when there is nothing to compile.
func Build(ctx context.Context, in tree.Tree, opts Options) (tree.Tree, error) {
	if opts.OutputPath == "" {
		return tree.Tree{}, errors.New("styles: output path is required")
	}
	if in.Empty() {
		return tree.Tree{}, nil
	}
	if opts.Command != "" {
		return runCommand(ctx, in, opts)
	}

	var css, scss []string
	for _, p := range in.Paths() {
		switch path.Ext(p) {
		case ".css":
			css = append(css, p)
		case ".scss", ".sass":
			scss = append(scss, p)
		}
	}
	if len(scss) > 0 {
		opts.warn("ignoring Sass sources because styles.command is not set", "files", strings.Join(scss, ", "))
	}

	switch {
	case in.Has(EntryFile):
		return bundler.Bundle(ctx, in, EntryFile, opts.OutputPath, bundler.Options{Minify: opts.Minify, Logger: opts.Logger})
	case len(css) == 0:
		return tree.Tree{}, nil
	}

	if len(css) > 1 {
		opts.warn("concatenating stylesheets in path order; add "+EntryFile+" to control ordering", "files", strings.Join(css, ", "))
	}
	var buf bytes.Buffer
	for i, p := range css {
		data, _ := in.Get(p)
		if i > 0 && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return finish(buf.Bytes(), css[0], opts)
}

func runCommand(ctx context.Context, in tree.Tree, opts Options) (tree.Tree, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(opts.Command), "styles.command")
	if err != nil {
		return tree.Tree{}, &compiler.TransformError{Stage: Stage, Path: "styles.command", Message: fmt.Sprintf("script syntax error: %v", err)}
	}

	work, err := os.MkdirTemp("", "glimmer-styles-*")
	if err != nil {
		return tree.Tree{}, fmt.Errorf("failed to create styles work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(work) }()

	inDir := filepath.Join(work, "in")
	outFile := filepath.Join(work, "out", filepath.FromSlash(path.Base(opts.OutputPath)))
	if err := in.WriteDir(ctx, inDir); err != nil {
		return tree.Tree{}, err
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return tree.Tree{}, fmt.Errorf("failed to create styles output directory: %w", err)
	}

	dir := opts.Dir
	if dir == "" {
		dir = work
	}
	var stderr bytes.Buffer
	env := append(os.Environ(), EnvInput+"="+inDir, EnvOutput+"="+outFile)
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &stderr, &stderr),
	)
	if err != nil {
		return tree.Tree{}, fmt.Errorf("failed to create interpreter: %w", err)
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	err = runner.Run(runCtx, prog)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return tree.Tree{}, &compiler.TransformError{Stage: Stage, Path: "styles.command", Message: timeoutPrefix + opts.Timeout.String()}
	}
	if ctx.Err() != nil {
		return tree.Tree{}, fmt.Errorf("styles canceled: %w", ctx.Err())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		var status interp.ExitStatus
		if errors.As(err, &status) {
			msg = fmt.Sprintf("exited with status %d: %s", int(status), msg)
		} else {
			msg = fmt.Sprintf("%v: %s", err, msg)
		}
		return tree.Tree{}, &compiler.TransformError{Stage: Stage, Path: "styles.command", Message: strings.TrimSuffix(msg, ": ")}
	}

	data, err := os.ReadFile(outFile)
	if errors.Is(err, os.ErrNotExist) {
		return tree.Tree{}, &compiler.TransformError{Stage: Stage, Path: "styles.command", Message: "command did not write $" + EnvOutput}
	}
	if err != nil {
		return tree.Tree{}, fmt.Errorf("failed to read styles output: %w", err)
	}
	return finish(data, opts.OutputPath, opts)
}

// finish minifies data when requested and places it at the output path.
func finish(data []byte, source string, opts Options) (tree.Tree, error) {
	if opts.Minify {
		result := api.Transform(string(data), api.TransformOptions{
			Loader:           api.LoaderCSS,
			Sourcefile:       source,
			MinifyWhitespace: true,
			MinifySyntax:     true,
			LogLevel:         api.LogLevelSilent,
		})
		if err := compiler.FromMessages(Stage, result.Errors); err != nil {
			return tree.Tree{}, err
		}
		data = result.Code
	}
	return tree.New(tree.File{Path: opts.OutputPath, Data: data})
}

func (o Options) warn(msg string, keyvals ...any) {
	if o.Logger != nil {
		o.Logger.Warn(msg, append([]any{"stage", Stage}, keyvals...)...)
	}
}

// IsTimeout reports whether err is a style command that ran past its timeout.
func IsTimeout(err error) bool {
	var te *compiler.TransformError
	return errors.As(err, &te) && te.Stage == Stage && strings.HasPrefix(te.Message, timeoutPrefix)
}
