// SPDX-License-Identifier: MPL-2.0

package templates

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"glimmer-pipeline/internal/compiler"
	"glimmer-pipeline/internal/config"
	"glimmer-pipeline/internal/testutil"
	"glimmer-pipeline/pkg/moduleconfig"
)

func options(format config.TemplateFormat) Options {
	return Options{
		Format:              format,
		ModulePrefix:        "my-app",
		ModuleConfiguration: moduleconfig.MustCompile(moduleconfig.Default()),
	}
}

func TestPrecompile_JSON(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{
		"ui/components/hello-world/template.hbs": "<h1>{{#if @name}}Hi {{@name}}{{else}}Hi{{/if}}</h1>",
		"ui/components/hello-world/component.ts": "export default class {}",
	})

	res, err := Precompile(context.Background(), in, options(config.TemplateFormatJSON))
	if err != nil {
		t.Fatalf("Precompile() error = %v", err)
	}
	if paths := res.Tree.Paths(); len(paths) != 1 || paths[0] != "ui/components/hello-world/template.js" {
		t.Fatalf("paths = %v", paths)
	}
	if len(res.Unclassified) != 0 {
		t.Errorf("Unclassified = %v", res.Unclassified)
	}

	data, _ := res.Tree.Get("ui/components/hello-world/template.js")
	src := string(data)
	if !strings.HasPrefix(src, "export default ") || !strings.HasSuffix(src, ";\n") {
		t.Fatalf("module = %s", src)
	}
	var tpl struct {
		ID    string `json:"id"`
		Block string `json:"block"`
		Meta  struct {
			Specifier *string `json:"specifier"`
		} `json:"meta"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(src, "export default "), ";\n")), &tpl); err != nil {
		t.Fatalf("module is not a JSON export: %v", err)
	}
	if len(tpl.ID) != 16 {
		t.Errorf("id = %q, want 16 hex digits", tpl.ID)
	}
	if tpl.Meta.Specifier == nil || *tpl.Meta.Specifier != "template:/my-app/components/hello-world" {
		t.Errorf("specifier = %v", tpl.Meta.Specifier)
	}

	var stmts []Statement
	if err := json.Unmarshal([]byte(tpl.Block), &stmts); err != nil {
		t.Fatalf("block is not a statement list: %v", err)
	}
	want := []Statement{
		{OpText, "<h1>"},
		{OpOpenBlock, "if @name"},
		{OpText, "Hi "},
		{OpAppend, "@name"},
		{OpElse, ""},
		{OpText, "Hi"},
		{OpCloseBlock, "if"},
		{OpText, "</h1>"},
	}
	if len(stmts) != len(want) {
		t.Fatalf("statements = %v", stmts)
	}
	for i := range want {
		if stmts[i] != want[i] {
			t.Errorf("statement %d = %v, want %v", i, stmts[i], want[i])
		}
	}
}

func TestPrecompile_StableID(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{
		"ui/components/a/template.hbs": "same",
		"ui/components/b/template.hbs": "same",
		"ui/components/c/template.hbs": "other",
	})
	res, err := Precompile(context.Background(), in, options(config.TemplateFormatJSON))
	if err != nil {
		t.Fatal(err)
	}
	if res.Templates[0].ID != res.Templates[1].ID {
		t.Error("identical sources should share an id")
	}
	if res.Templates[0].ID == res.Templates[2].ID {
		t.Error("different sources should not share an id")
	}
}

func TestPrecompile_Unclassified(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{"ui/nowhere/thing.hbs": "x"})
	res, err := Precompile(context.Background(), in, options(config.TemplateFormatJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Unclassified) != 1 || res.Unclassified[0] != "ui/nowhere/thing.hbs" {
		t.Errorf("Unclassified = %v", res.Unclassified)
	}
	data, _ := res.Tree.Get("ui/nowhere/thing.js")
	if !strings.Contains(string(data), `"specifier":null`) {
		t.Errorf("module = %s", data)
	}
}

func TestPrecompile_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		line   int
		column int
		msg    string
	}{
		{"unclosed mustache", "ok\n  {{name", 2, 2, "unclosed mustache"},
		{"unclosed block", "{{#each items}}\n{{this}}", 1, 0, "unclosed block {{#each}}"},
		{"mismatched close", "{{#if a}}{{/each}}", 1, 9, "does not match"},
		{"stray close", "text {{/if}}", 1, 5, "closes no block"},
		{"stray else", "{{else}}", 1, 0, "outside of a block"},
		{"empty mustache", "{{ }}", 1, 0, "empty mustache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := testutil.MustTree(t, map[string]string{"ui/components/x/template.hbs": tt.src})
			_, err := Precompile(context.Background(), in, options(config.TemplateFormatJSON))
			if !errors.Is(err, compiler.ErrTransform) {
				t.Fatalf("Precompile() error = %v, want ErrTransform", err)
			}
			var te *compiler.TransformError
			if !errors.As(err, &te) {
				t.Fatalf("error should be a TransformError, got %T", err)
			}
			if te.Stage != Stage || te.Path != "ui/components/x/template.hbs" {
				t.Errorf("stage/path = %s/%s", te.Stage, te.Path)
			}
			if te.Line != tt.line || te.Column != tt.column {
				t.Errorf("position = %d:%d, want %d:%d", te.Line, te.Column, tt.line, tt.column)
			}
			if !strings.Contains(te.Message, tt.msg) {
				t.Errorf("message = %q, want %q", te.Message, tt.msg)
			}
		})
	}
}

func TestPrecompile_Comments(t *testing.T) {
	t.Parallel()

	stmts, err := parse("{{! short }}{{!-- has }} inside --}}{{{raw}}}")
	if err != nil {
		t.Fatal(err)
	}
	want := []Statement{{OpComment, "short"}, {OpComment, "has }} inside"}, {OpTrusted, "raw"}}
	if len(stmts) != len(want) {
		t.Fatalf("statements = %v", stmts)
	}
	for i := range want {
		if stmts[i] != want[i] {
			t.Errorf("statement %d = %v, want %v", i, stmts[i], want[i])
		}
	}
}

func TestPrecompile_Bytecode(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{
		"ui/components/b-list/template.hbs": "<ul></ul>",
		"ui/components/a-item/template.hbs": "<li>{{@item}}</li>",
	})
	res, err := Precompile(context.Background(), in, options(config.TemplateFormatBytecode))
	if err != nil {
		t.Fatalf("Precompile() error = %v", err)
	}
	if paths := res.Tree.Paths(); len(paths) != 2 || paths[0] != DataSegmentPath || paths[1] != BytecodePath {
		t.Fatalf("paths = %v", paths)
	}

	data, _ := res.Tree.Get(BytecodePath)
	entries, err := DecodeBytecode(data)
	if err != nil {
		t.Fatalf("DecodeBytecode() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].Handle != 0 || entries[0].Specifier != "template:/my-app/components/a-item" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Handle != 1 || entries[1].Specifier != "template:/my-app/components/b-list" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[0].Block != res.Templates[0].Block {
		t.Errorf("block = %s, want %s", entries[0].Block, res.Templates[0].Block)
	}

	segment, _ := res.Tree.Get(DataSegmentPath)
	for _, want := range []string{`"template:/my-app/components/a-item":0`, `"template:/my-app/components/b-list":1`} {
		if !strings.Contains(string(segment), want) {
			t.Errorf("data segment missing %s:\n%s", want, segment)
		}
	}
}

func TestDecodeBytecode_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"bad magic":       []byte("NOPE\x00\x00\x00\x00"),
		"truncated count": []byte("GBX1\x01"),
		"count too large": []byte("GBX1\xff\x00\x00\x00"),
		"truncated entry": []byte("GBX1\x01\x00\x00\x00\x00\x00\x00\x00\x09\x00\x00\x00ab"),
		"trailing bytes":  []byte("GBX1\x00\x00\x00\x00!"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeBytecode(data); !errors.Is(err, ErrInvalidBytecode) {
				t.Errorf("DecodeBytecode() error = %v, want ErrInvalidBytecode", err)
			}
		})
	}
}

func TestPrecompile_NoTemplates(t *testing.T) {
	t.Parallel()

	in := testutil.MustTree(t, map[string]string{"index.ts": "x"})
	for _, format := range []config.TemplateFormat{config.TemplateFormatJSON, config.TemplateFormatBytecode} {
		res, err := Precompile(context.Background(), in, options(format))
		if err != nil {
			t.Fatal(err)
		}
		if !res.Tree.Empty() {
			t.Errorf("%s: tree = %v", format, res.Tree.Paths())
		}
	}
}
