// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"glimmer-pipeline/internal/testutil"
	"glimmer-pipeline/pkg/tree"

	"github.com/evanw/esbuild/pkg/api"
)

func TestCompile_StripsTypes(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{
		"src/index.ts":        "const answer: number = 42;\nexport default answer;\n",
		"src/ui/types.d.ts":   "declare const x: number;\n",
		"src/ui/plain.js":     "export default 1;\n",
		"src/ui/template.hbs": "<p></p>",
		"src/ui/helper/fn.ts": "export default function fn(a: string): string { return a; }\n",
	})

	out, err := Compile(context.Background(), in, Options{TsconfigRaw: DefaultTsconfig})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if got, want := out.Paths(), []string{"src/index.js", "src/ui/helper/fn.js"}; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	index, _ := out.Get("src/index.js")
	if strings.Contains(string(index), ": number") {
		t.Errorf("type annotation survived:\n%s", index)
	}
	if !strings.Contains(string(index), "export") {
		t.Errorf("output is not an ES module:\n%s", index)
	}
	if strings.Contains(string(index), "sourceMappingURL") {
		t.Error("source map emitted although disabled")
	}
}

func TestCompileFile_InlineSourcemap(t *testing.T) {
	t.Parallel()

	f, err := CompileFile("src/a.ts", []byte("export const a: string = 'a';\n"), Options{Sourcemaps: true})
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != "src/a.js" {
		t.Errorf("Path = %q", f.Path)
	}
	if !strings.Contains(string(f.Data), "//# sourceMappingURL=data:application/json;base64,") {
		t.Errorf("missing inline source map:\n%s", f.Data)
	}
}

func TestCompile_SyntaxErrorIsTransformError(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{
		"src/ok.ts":     "export default 1;\n",
		"src/broken.ts": "export default function (\n",
	})

	_, err := Compile(context.Background(), in, Options{})
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("Compile() error = %v, want ErrTransform", err)
	}
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("error is not a TransformError: %T", err)
	}
	if te.Path != "src/broken.ts" || te.Line == 0 || te.Stage != "typescript" {
		t.Errorf("TransformError = %+v", te)
	}
}

func TestCompile_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := tree.MustNew(tree.File{Path: "a.ts", Data: []byte("export default 1;")})
	if _, err := Compile(ctx, in, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Compile() error = %v, want context.Canceled", err)
	}
}

func TestLoadTsconfig(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		raw, ok, err := LoadTsconfig(t.TempDir())
		if err != nil || ok || raw != DefaultTsconfig {
			t.Errorf("LoadTsconfig() = %q, %v, %v", raw, ok, err)
		}
	})

	t.Run("comments and trailing commas", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		body := "{\n  // strict mode\n  \"compilerOptions\": {\"strict\": true,},\n}\n"
		testutil.MustWriteFiles(t, dir, map[string]string{TsconfigFile: body})
		raw, ok, err := LoadTsconfig(dir)
		if err != nil || !ok || raw != body {
			t.Errorf("LoadTsconfig() = %q, %v, %v", raw, ok, err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		testutil.MustWriteFiles(t, dir, map[string]string{TsconfigFile: `{"compilerOptions": `})
		if _, _, err := LoadTsconfig(dir); !errors.Is(err, ErrInvalidTsconfig) {
			t.Errorf("LoadTsconfig() error = %v, want ErrInvalidTsconfig", err)
		}
	})
}

func TestFromMessages(t *testing.T) {
	t.Parallel()

	if FromMessages("x", nil) != nil {
		t.Error("no messages should yield nil")
	}

	err := FromMessages("bundle", []api.Message{
		{Text: "first", Location: &api.Location{File: "a.js", Line: 3, Column: 4}},
		{Text: "second"},
	})
	if got := err.Error(); !strings.Contains(got, "bundle: a.js:3:4: first") || !strings.Contains(got, "bundle: <unknown>: second") {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrTransform) {
		t.Error("joined errors should match ErrTransform")
	}
}
