// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FunnelOptions selects and relocates a subset of a Tree.
//
// Filters are applied in this order: SrcDir, Files, Include, Exclude, Rename,
// DestDir. Include and Exclude are doublestar patterns matched against the
// path after SrcDir has been stripped.
type FunnelOptions struct {
	// SrcDir keeps only files under this directory and strips the prefix.
	SrcDir string
	// DestDir prefixes every surviving path.
	DestDir string
	// Files, when non-empty, keeps only these exact paths.
	Files []string
	// Include keeps only paths matching at least one pattern.
	Include []string
	// Exclude drops paths matching any pattern.
	Exclude []string
	// Rename maps a surviving path to its destination path.
	Rename func(string) string
}

// Funnel returns the subset of t described by opts.
func Funnel(t Tree, opts FunnelOptions) (Tree, error) {
	if err := validatePatterns(opts.Include, "include"); err != nil {
		return Tree{}, err
	}
	if err := validatePatterns(opts.Exclude, "exclude"); err != nil {
		return Tree{}, err
	}

	srcDir := strings.Trim(opts.SrcDir, "/")
	destDir := strings.Trim(opts.DestDir, "/")

	var wanted map[string]struct{}
	if len(opts.Files) > 0 {
		wanted = make(map[string]struct{}, len(opts.Files))
		for _, f := range opts.Files {
			wanted[f] = struct{}{}
		}
	}

	files := make(map[string][]byte)
	for _, p := range t.paths {
		rel := p
		if srcDir != "" {
			if !strings.HasPrefix(p, srcDir+"/") {
				continue
			}
			rel = strings.TrimPrefix(p, srcDir+"/")
		}
		if wanted != nil {
			if _, ok := wanted[rel]; !ok {
				continue
			}
		}
		if len(opts.Include) > 0 && !matchAny(opts.Include, rel) {
			continue
		}
		if matchAny(opts.Exclude, rel) {
			continue
		}
		if opts.Rename != nil {
			rel = opts.Rename(rel)
		}
		if destDir != "" {
			rel = path.Join(destDir, rel)
		}
		cleaned, err := CleanPath(rel)
		if err != nil {
			return Tree{}, err
		}
		files[cleaned] = t.files[p]
	}

	return Tree{files: files, paths: sortedKeys(files)}, nil
}

// Match reports whether p matches any doublestar pattern.
func Match(patterns []string, p string) bool {
	return matchAny(patterns, p)
}

func matchAny(patterns []string, p string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, p); err == nil && ok {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("funnel: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
