// SPDX-License-Identifier: MPL-2.0

package fingerprint

import (
	"cmp"
	"fmt"
	"maps"
	"path"
	"regexp"
	"slices"
	"strings"

	"glimmer-pipeline/pkg/tree"

	"github.com/zeebo/xxh3"
)

// reference matches anything that could be a path: a run of characters
// bounded by whitespace, quotes, parentheses and markup punctuation.
var reference = regexp.MustCompile("[^\\s\"'`(),=<>;]+")

type (
	// Options selects and rewrites assets.
	Options struct {
		// Extensions lists the asset extensions to rename, without dots.
		Extensions []string
		// ReplaceExtensions lists the extensions of files whose references
		// are rewritten.
		ReplaceExtensions []string
		// Exclude lists doublestar patterns of assets kept as is.
		Exclude []string
		// Prepend replaces the directory part of every rewritten reference,
		// typically a CDN origin.
		Prepend string
	}

	// Result is a revisioned tree plus the rename table.
	Result struct {
		Tree tree.Tree
		// Manifest maps original asset paths to their new paths.
		Manifest map[string]string
	}
)

// Apply renames every selected asset to name-<hash>.ext, with the hash taken
// from the original content, and rewrites references to renamed assets.
func Apply(in tree.Tree, opts Options) (Result, error) {
	manifest := make(map[string]string)
	for _, f := range in.Files() {
		if !selected(f.Path, opts.Extensions) || tree.Match(opts.Exclude, f.Path) {
			continue
		}
		manifest[f.Path] = revisioned(f.Path, f.Data)
	}
	if len(manifest) == 0 {
		return Result{Tree: in, Manifest: manifest}, nil
	}

	// Longest paths first so nested assets win over same-named ones higher up.
	assets := slices.SortedFunc(maps.Keys(manifest), func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})

	files := make([]tree.File, 0, in.Len())
	for _, f := range in.Files() {
		data := f.Data
		if selected(f.Path, opts.ReplaceExtensions) {
			data = rewrite(data, assets, manifest, opts.Prepend)
		}
		p := f.Path
		if renamed, ok := manifest[p]; ok {
			p = renamed
		}
		files = append(files, tree.File{Path: p, Data: data})
	}

	out, err := tree.New(files...)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint: %w", err)
	}
	return Result{Tree: out, Manifest: manifest}, nil
}

func revisioned(p string, data []byte) string {
	ext := path.Ext(p)
	return fmt.Sprintf("%s-%016x%s", strings.TrimSuffix(p, ext), xxh3.Hash(data), ext)
}

func rewrite(data []byte, assets []string, manifest map[string]string, prepend string) []byte {
	return reference.ReplaceAllFunc(data, func(token []byte) []byte {
		ref := string(token)
		ref, suffix := splitSuffix(ref)
		for _, asset := range assets {
			if ref != asset && !strings.HasSuffix(ref, "/"+asset) {
				continue
			}
			if prepend != "" {
				return []byte(prepend + manifest[asset] + suffix)
			}
			return []byte(strings.TrimSuffix(ref, asset) + manifest[asset] + suffix)
		}
		return token
	})
}

// splitSuffix separates a query string or fragment from a reference.
func splitSuffix(ref string) (string, string) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}

func selected(p string, extensions []string) bool {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	return ext != "" && slices.Contains(extensions, ext)
}
