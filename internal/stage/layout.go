// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlehane/sdkdump/pkg/types"
)

const frameworkSuffix = ".framework"

// NormalizeLayout renames dumped framework directories under each
// category to match the requested layout: bundle-suffixed names
// ("Foo.framework") or suffix-stripped names ("Foo"). It is idempotent
// and runs both before a dump, to align pre-existing output, and after
// relocation. A rename whose target already exists is left alone.
func NormalizeLayout(outputRoot string, categories []types.Category, layout types.LayoutMode) error {
	for _, cat := range categories {
		dir := filepath.Join(outputRoot, string(cat))
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			var want string
			switch layout {
			case types.LayoutStripped:
				want = strings.TrimSuffix(name, frameworkSuffix)
			case types.LayoutSuffixed:
				want = name
				if !strings.HasSuffix(name, frameworkSuffix) {
					want = name + frameworkSuffix
				}
			default:
				return fmt.Errorf("unknown layout mode %q", layout)
			}
			if want == name {
				continue
			}
			target := filepath.Join(dir, want)
			if _, err := os.Stat(target); err == nil {
				continue
			}
			if err := os.Rename(filepath.Join(dir, name), target); err != nil {
				return fmt.Errorf("renaming %s: %w", name, err)
			}
		}
	}
	return nil
}
