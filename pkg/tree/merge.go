// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"errors"
	"fmt"
)

// ErrMergeConflict is the sentinel error wrapped by MergeConflictError.
var ErrMergeConflict = errors.New("merge conflict")

type (
	// Named pairs a Tree with the annotation used in conflict messages.
	Named struct {
		Name string
		Tree Tree
	}

	// MergeOptions controls Merge.
	MergeOptions struct {
		// Overwrite lets later inputs replace earlier ones on a path collision.
		// When false a collision is a MergeConflictError.
		Overwrite bool
	}

	// MergeConflictError is returned by a non-overwriting Merge when two inputs
	// emit the same path. It wraps ErrMergeConflict for errors.Is()
	// compatibility.
	MergeConflictError struct {
		Path   string
		First  string
		Second string
	}
)

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on %q: emitted by both %q and %q (enable overwrite to let the later tree win)",
		e.Path, e.First, e.Second)
}

func (e *MergeConflictError) Unwrap() error { return ErrMergeConflict }

// Merge composes inputs path by path. Input order is load-bearing: with
// Overwrite enabled the last tree to emit a path wins, so authoritative
// generated trees must come after raw or stub trees.
func Merge(inputs []Named, opts MergeOptions) (Tree, error) {
	files := make(map[string][]byte)
	owner := make(map[string]string)

	for _, in := range inputs {
		for _, p := range in.Tree.paths {
			if prev, seen := owner[p]; seen && !opts.Overwrite {
				return Tree{}, &MergeConflictError{Path: p, First: prev, Second: in.Name}
			}
			files[p] = in.Tree.files[p]
			owner[p] = in.Name
		}
	}

	return Tree{files: files, paths: sortedKeys(files)}, nil
}

// Overlay is shorthand for an overwriting Merge of unnamed trees.
func Overlay(trees ...Tree) Tree {
	inputs := make([]Named, len(trees))
	for i, t := range trees {
		inputs[i] = Named{Name: fmt.Sprintf("tree[%d]", i), Tree: t}
	}
	// Overwriting merges cannot fail.
	out, _ := Merge(inputs, MergeOptions{Overwrite: true})
	return out
}
