// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func mustFromMap(t *testing.T, m map[string]string) Tree {
	t.Helper()
	tr, err := FromMap(m)
	if err != nil {
		t.Fatalf("FromMap(%v) failed: %v", m, err)
	}
	return tr
}

func TestMerge_ConflictWithoutOverwrite(t *testing.T) {
	t.Parallel()

	a := mustFromMap(t, map[string]string{"a.js": "1"})
	b := mustFromMap(t, map[string]string{"a.js": "2"})

	_, err := Merge([]Named{{Name: "first", Tree: a}, {Name: "second", Tree: b}}, MergeOptions{})
	if err == nil {
		t.Fatal("expected merge conflict, got nil")
	}
	if !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("error should wrap ErrMergeConflict, got: %v", err)
	}
	var conflict *MergeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *MergeConflictError, got %T", err)
	}
	if conflict.Path != "a.js" || conflict.First != "first" || conflict.Second != "second" {
		t.Errorf("unexpected conflict details: %+v", conflict)
	}
}

func TestMerge_OverwriteLaterWins(t *testing.T) {
	t.Parallel()

	a := mustFromMap(t, map[string]string{"a.js": "1"})
	b := mustFromMap(t, map[string]string{"a.js": "2"})

	out, err := Merge([]Named{{Name: "a", Tree: a}, {Name: "b", Tree: b}}, MergeOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"a.js": "2"}
	if got := out.Map(); !maps.Equal(got, want) {
		t.Errorf("Merge() = %v, want %v", got, want)
	}
}

func TestMerge_OverwriteShadowing(t *testing.T) {
	t.Parallel()

	a := mustFromMap(t, map[string]string{
		"config/module-map.js": "stub",
		"index.js":             "entry",
		"ui/app.js":            "app",
	})
	b := mustFromMap(t, map[string]string{
		"config/module-map.js": "generated",
		"ui/app.js":            "compiled",
	})

	out, err := Merge([]Named{{Name: "a", Tree: a}, {Name: "b", Tree: b}}, MergeOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range b.Paths() {
		got, _ := out.Get(p)
		want, _ := b.Get(p)
		if string(got) != string(want) {
			t.Errorf("shadowed path %s = %q, want %q from B", p, got, want)
		}
	}
	for _, p := range a.Paths() {
		if b.Has(p) {
			continue
		}
		got, _ := out.Get(p)
		want, _ := a.Get(p)
		if string(got) != string(want) {
			t.Errorf("non-shadowed path %s = %q, want %q from A", p, got, want)
		}
	}
	if out.Len() != 3 {
		t.Errorf("expected 3 files, got %d: %v", out.Len(), out.Paths())
	}
}

func TestMerge_SkipsEmptyTrees(t *testing.T) {
	t.Parallel()

	a := mustFromMap(t, map[string]string{"a.js": "1"})
	out, err := Merge([]Named{{Name: "empty", Tree: Tree{}}, {Name: "a", Tree: a}, {Name: "empty2"}}, MergeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(out.Paths(), []string{"a.js"}) {
		t.Errorf("unexpected paths: %v", out.Paths())
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	a := mustFromMap(t, map[string]string{"a.js": "1"})
	b := mustFromMap(t, map[string]string{"a.js": "2", "b.js": "3"})
	before := a.Hash()

	if _, err := Merge([]Named{{Name: "a", Tree: a}, {Name: "b", Tree: b}}, MergeOptions{Overwrite: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Hash() != before || a.Len() != 1 {
		t.Error("Merge mutated its input tree")
	}
}

func TestFunnel(t *testing.T) {
	t.Parallel()

	src := mustFromMap(t, map[string]string{
		"src/index.ts":                       "entry",
		"src/ui/index.html":                  "<html>",
		"src/ui/components/app/template.hbs": "tpl",
		"src/ui/components/app/component.ts": "cmp",
		"src/types.d.ts":                     "decl",
		"public/robots.txt":                  "robots",
	})

	tests := []struct {
		name string
		opts FunnelOptions
		want []string
	}{
		{
			name: "src dir strips prefix",
			opts: FunnelOptions{SrcDir: "src"},
			want: []string{"index.ts", "types.d.ts", "ui/components/app/component.ts", "ui/components/app/template.hbs", "ui/index.html"},
		},
		{
			name: "include and exclude",
			opts: FunnelOptions{SrcDir: "src", Include: []string{"**/*.ts"}, Exclude: []string{"**/*.d.ts"}},
			want: []string{"index.ts", "ui/components/app/component.ts"},
		},
		{
			name: "dest dir",
			opts: FunnelOptions{SrcDir: "public", DestDir: "assets"},
			want: []string{"assets/robots.txt"},
		},
		{
			name: "files with rename",
			opts: FunnelOptions{
				SrcDir: "src",
				Files:  []string{"ui/index.html"},
				Rename: func(p string) string {
					if p == "ui/index.html" {
						return "app.html"
					}
					return p
				},
			},
			want: []string{"app.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Funnel(src, tt.opts)
			if err != nil {
				t.Fatalf("Funnel() error: %v", err)
			}
			if !slices.Equal(got.Paths(), tt.want) {
				t.Errorf("Funnel() paths = %v, want %v", got.Paths(), tt.want)
			}
		})
	}
}

func TestFunnel_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := Funnel(Tree{}, FunnelOptions{Include: []string{"[unclosed"}})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestNew_RejectsInvalidPaths(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"", "/abs.js", "../escape.js", "a\\b.js", "."} {
		t.Run(p, func(t *testing.T) {
			t.Parallel()
			_, err := New(File{Path: p, Data: []byte("x")})
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("New(%q) error = %v, want ErrInvalidPath", p, err)
			}
		})
	}
}

func TestHash_StableAndContentSensitive(t *testing.T) {
	t.Parallel()

	a := mustFromMap(t, map[string]string{"a.js": "1", "b.js": "2"})
	b := mustFromMap(t, map[string]string{"b.js": "2", "a.js": "1"})
	c := mustFromMap(t, map[string]string{"a.js": "1", "b.js": "3"})
	d := mustFromMap(t, map[string]string{"a.js1": "", "b.js": "2"})

	if a.Hash() != b.Hash() {
		t.Error("identical trees should hash identically")
	}
	if a.Hash() == c.Hash() {
		t.Error("different content should change the hash")
	}
	if a.Hash() == d.Hash() {
		t.Error("moving bytes between path and data should change the hash")
	}
}

func TestWithAndWithout(t *testing.T) {
	t.Parallel()

	base := mustFromMap(t, map[string]string{"a.js": "1"})
	added, err := base.With("b.js", []byte("2"))
	if err != nil {
		t.Fatalf("With() error: %v", err)
	}
	if base.Has("b.js") {
		t.Error("With mutated the receiver")
	}
	if !added.Has("b.js") {
		t.Error("With did not add the file")
	}
	removed := added.Without("a.js")
	if removed.Has("a.js") || !added.Has("a.js") {
		t.Error("Without should return a copy without the path")
	}
}

func TestReadDirAndWriteDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "in", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "in", "nested", "x.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	in, err := ReadDir(ctx, filepath.Join(dir, "in"))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if !slices.Equal(in.Paths(), []string{"nested/x.txt"}) {
		t.Fatalf("unexpected paths: %v", in.Paths())
	}

	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "stale.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := in.WriteDir(ctx, out); err != nil {
		t.Fatalf("WriteDir() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "stale.txt")); !os.IsNotExist(err) {
		t.Error("WriteDir should remove stale output")
	}
	data, err := os.ReadFile(filepath.Join(out, "nested", "x.txt"))
	if err != nil || string(data) != "x" {
		t.Errorf("unexpected written content %q (err %v)", data, err)
	}

	_, found, err := ReadOptionalDir(ctx, filepath.Join(dir, "missing"))
	if err != nil || found {
		t.Errorf("ReadOptionalDir(missing) = found %v, err %v", found, err)
	}
}
