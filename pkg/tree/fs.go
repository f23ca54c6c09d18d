// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ReadDir loads every regular file under dir into a Tree. Symlinked
// directories are not followed.
func ReadDir(ctx context.Context, dir string) (Tree, error) {
	files := make(map[string][]byte)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return Tree{}, fmt.Errorf("read tree %s: %w", dir, err)
	}

	return Tree{files: files, paths: sortedKeys(files)}, nil
}

// ReadOptionalDir is like ReadDir but returns an empty tree and false when
// dir does not exist.
func ReadOptionalDir(ctx context.Context, dir string) (Tree, bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Tree{}, false, nil
	}
	if err != nil {
		return Tree{}, false, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return Tree{}, false, fmt.Errorf("%s is not a directory", dir)
	}
	t, err := ReadDir(ctx, dir)
	if err != nil {
		return Tree{}, false, err
	}
	return t, true, nil
}

// WriteDir replaces the contents of dir with t. The directory is created if
// needed and any previous content is removed first.
func (t Tree) WriteDir(ctx context.Context, dir string) error {
	if dir == "" || dir == "/" || dir == "." {
		return fmt.Errorf("refusing to write tree into %q", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	for _, p := range t.paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", p, err)
		}
		if err := os.WriteFile(dest, t.files[p], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
