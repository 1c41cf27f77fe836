// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Relocate moves one item's staged output into the final tree. A
// missing counterpart is a plain rename. With overwrite, the existing
// counterpart is fully replaced. Without it, the staged tree is
// deep-merged file by file, preferring the existing file on conflict,
// and the emptied staged directories are pruned. Relocation happens
// per item as soon as it succeeds, so a later failure in the same run
// cannot roll back earlier items.
func (s *Stager) Relocate(rel string, overwrite bool) error {
	src := filepath.Join(s.stagingRoot, rel)
	dst := filepath.Join(s.outputRoot, rel)

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("staged item %s: %w", rel, err)
	}

	if _, err := os.Stat(dst); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("relocating %s: %w", rel, err)
		}
		return nil
	}

	if overwrite {
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("replacing %s: %w", rel, err)
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("relocating %s: %w", rel, err)
		}
		return nil
	}

	if err := mergeTrees(src, dst); err != nil {
		return fmt.Errorf("merging %s: %w", rel, err)
	}
	return nil
}

// mergeTrees moves every staged file that has no counterpart under dst
// into place, discards staged files that do, and removes the staged
// directories once they are empty.
func mergeTrees(src, dst string) error {
	var dirs []string

	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			dirs = append(dirs, path)
			return os.MkdirAll(target, 0o755)
		}

		if _, err := os.Stat(target); err == nil {
			// Existing file wins; drop the staged duplicate.
			return os.Remove(path)
		}
		return os.Rename(path, target)
	})
	if err != nil {
		return err
	}

	// Deepest first, so each directory is empty by the time it goes.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) > strings.Count(dirs[j], string(os.PathSeparator))
	})
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("pruning %s: %w", dir, err)
		}
	}
	return nil
}
