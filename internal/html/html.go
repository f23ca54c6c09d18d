// SPDX-License-Identifier: MPL-2.0

package html

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"glimmer-pipeline/internal/addon"
	"glimmer-pipeline/pkg/tree"
)

// IndexPath is the page template, relative to the source root.
const IndexPath = "ui/index.html"

var (
	// ErrMissingIndex is returned when the source tree has no page template.
	ErrMissingIndex = errors.New("missing index.html")

	rootURLPattern    = regexp.MustCompile(`\{\{\s*rootURL\s*\}\}`)
	contentForPattern = regexp.MustCompile(`\{\{\s*content-for\s+['"](.+?)['"]\s*\}\}`)
)

// Options configures the page.
type Options struct {
	// OutputPath is the page path in the returned tree.
	OutputPath string
	// RootURL replaces {{rootURL}}.
	RootURL string
	// MetaTag is prepended to the "head" content when not empty.
	MetaTag string
	// Addons contribute {{content-for}} markup.
	Addons *addon.Registry
}

// Build moves the page template of src to opts.OutputPath and fills in its
// placeholders.
func Build(src tree.Tree, opts Options) (tree.Tree, error) {
	data, ok := src.Get(IndexPath)
	if !ok {
		return tree.Tree{}, fmt.Errorf("%w: expected %s in the source tree", ErrMissingIndex, IndexPath)
	}
	if opts.OutputPath == "" {
		return tree.Tree{}, errors.New("html: output path is required")
	}
	return tree.New(tree.File{Path: opts.OutputPath, Data: []byte(Render(string(data), opts))})
}

// Render replaces {{rootURL}} and {{content-for "type"}} in page. Unknown
// content types render as nothing.
func Render(page string, opts Options) string {
	page = rootURLPattern.ReplaceAllLiteralString(page, opts.RootURL)
	return contentForPattern.ReplaceAllStringFunc(page, func(m string) string {
		contentType := contentForPattern.FindStringSubmatch(m)[1]
		var initial []string
		if contentType == "head" && opts.MetaTag != "" {
			initial = append(initial, opts.MetaTag)
		}
		return strings.Join(opts.Addons.ContentFor(contentType, initial), "\n")
	})
}
