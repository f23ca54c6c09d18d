// SPDX-License-Identifier: MPL-2.0

// Package tree provides BuildTree, the immutable unit of composition in the
// build graph.
//
// A Tree maps forward-slash relative paths to file contents. Trees are never
// mutated in place: every operation (Merge, Funnel, With, Without) returns a
// new Tree that may share file data with its inputs. Iteration is always in
// lexicographic path order so every stage built on top of a Tree produces
// reproducible output.
package tree

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
)

// ErrInvalidPath is returned when a file path is absolute, empty, or escapes
// the tree root.
var ErrInvalidPath = errors.New("invalid tree path")

type (
	// File is a single entry of a Tree.
	File struct {
		// Path is the forward-slash relative path of the file.
		Path string
		// Data is the file content. Callers must treat it as read-only.
		Data []byte
	}

	// Tree is an immutable mapping from relative output paths to content.
	// The zero value is an empty tree.
	Tree struct {
		files map[string][]byte
		paths []string
	}

	// InvalidPathError is returned when a path cannot be stored in a Tree.
	// It wraps ErrInvalidPath for errors.Is() compatibility.
	InvalidPathError struct {
		Path string
	}
)

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid tree path %q: paths must be relative, non-empty and stay inside the tree", e.Path)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// New builds a Tree from files. A later file with the same path replaces an
// earlier one.
func New(files ...File) (Tree, error) {
	t := Tree{files: make(map[string][]byte, len(files))}
	for _, f := range files {
		p, err := CleanPath(f.Path)
		if err != nil {
			return Tree{}, err
		}
		t.files[p] = f.Data
	}
	t.paths = sortedKeys(t.files)
	return t, nil
}

// MustNew is like New but panics on an invalid path. It is intended for
// generated paths that are known to be valid and for tests.
func MustNew(files ...File) Tree {
	t, err := New(files...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromMap builds a Tree from string contents.
func FromMap(m map[string]string) (Tree, error) {
	files := make([]File, 0, len(m))
	for p, data := range m {
		files = append(files, File{Path: p, Data: []byte(data)})
	}
	return New(files...)
}

// CleanPath normalizes a tree path and rejects anything that is not a
// relative path inside the tree.
func CleanPath(p string) (string, error) {
	if p == "" || strings.Contains(p, "\\") {
		return "", &InvalidPathError{Path: p}
	}
	if strings.HasPrefix(p, "/") {
		return "", &InvalidPathError{Path: p}
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &InvalidPathError{Path: p}
	}
	return cleaned, nil
}

// Len returns the number of files in the tree.
func (t Tree) Len() int { return len(t.paths) }

// Empty reports whether the tree has no files.
func (t Tree) Empty() bool { return len(t.paths) == 0 }

// Paths returns all file paths in lexicographic order.
func (t Tree) Paths() []string { return slices.Clone(t.paths) }

// Has reports whether the tree contains p.
func (t Tree) Has(p string) bool {
	_, ok := t.files[p]
	return ok
}

// Get returns the content stored at p.
func (t Tree) Get(p string) ([]byte, bool) {
	data, ok := t.files[p]
	return data, ok
}

// Files returns every file in lexicographic order.
func (t Tree) Files() []File {
	out := make([]File, 0, len(t.paths))
	for _, p := range t.paths {
		out = append(out, File{Path: p, Data: t.files[p]})
	}
	return out
}

// Map returns the tree as path -> string content. Mostly useful in tests.
func (t Tree) Map() map[string]string {
	out := make(map[string]string, len(t.paths))
	for _, p := range t.paths {
		out[p] = string(t.files[p])
	}
	return out
}

// With returns a copy of t with the file at p set to data.
func (t Tree) With(p string, data []byte) (Tree, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return Tree{}, err
	}
	files := make(map[string][]byte, len(t.files)+1)
	for k, v := range t.files {
		files[k] = v
	}
	files[cleaned] = data
	return Tree{files: files, paths: sortedKeys(files)}, nil
}

// Without returns a copy of t without the given paths.
func (t Tree) Without(paths ...string) Tree {
	if len(paths) == 0 {
		return t
	}
	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		drop[p] = struct{}{}
	}
	files := make(map[string][]byte, len(t.files))
	for k, v := range t.files {
		if _, ok := drop[k]; !ok {
			files[k] = v
		}
	}
	return Tree{files: files, paths: sortedKeys(files)}
}

// Hash returns a stable content hash over every (path, data) pair. Two trees
// with identical files always hash identically, which makes Hash usable as a
// memoization key for pure tree transforms.
func (t Tree) Hash() uint64 {
	h := xxh3.New()
	var sep = []byte{0}
	for _, p := range t.paths {
		_, _ = h.WriteString(p)
		_, _ = h.Write(sep)
		_, _ = h.Write(t.files[p])
		_, _ = h.Write(sep)
	}
	return h.Sum64()
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
