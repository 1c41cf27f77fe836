// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlehane/sdkdump/pkg/types"
)

const (
	frameworkSuffix = ".framework"
	dylibSuffix     = ".dylib"
	usrLib          = "usr/lib"
)

var auxExtensions = []string{".bundle", ".xpc", ".appex"}

// frameworkItems lists the frameworks in scanRoot the selection wants,
// in lexicographic order so re-runs are reproducible and failure
// reports are stable.
func (o *Orchestrator) frameworkItems(cat types.Category, scanRoot string) ([]string, error) {
	entries, err := os.ReadDir(scanRoot)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", scanRoot, err)
	}

	var items []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), frameworkSuffix) {
			continue
		}
		normalized := strings.ToLower(entry.Name())
		if !o.dc.Selection.WantsFramework(normalized) {
			continue
		}
		if o.foundNamed != nil {
			o.foundNamed[normalized] = true
		}
		items = append(items, entry.Name())
	}
	sort.Strings(items)
	return items, nil
}

// missingNamed reports explicitly named frameworks that no category
// scan produced, as per-item failures.
func (o *Orchestrator) missingNamed(result *types.BatchResult) {
	var missing []string
	for name := range o.dc.Selection.Frameworks {
		if !o.foundNamed[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		o.reportFailure(result, types.ItemResult{
			Item: name,
			Err:  fmt.Errorf("framework %s not found in any namespace", name),
		})
	}
}

// dumpBundles dumps the selected auxiliary bundles under the system
// library root. Bundles are always per-item.
func (o *Orchestrator) dumpBundles(ctx context.Context, result *types.BatchResult) error {
	var rels []string
	if o.dc.Selection.AllBundles {
		found, err := o.discoverBundles()
		if err != nil {
			return err
		}
		rels = found
	} else {
		for rel := range o.dc.Selection.Bundles {
			rels = append(rels, rel)
		}
	}
	sort.Strings(rels)

	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(o.dc.SystemRoot, systemLibrary, rel)
		if _, err := os.Stat(path); err != nil {
			o.reportFailure(result, types.ItemResult{Item: rel, Err: fmt.Errorf("bundle not found: %w", err)})
			continue
		}
		if err := o.dumpItem(ctx, rel, path, "bundle", result); err != nil {
			return err
		}
	}
	return nil
}

// discoverBundles walks the system library root two levels deep for
// directories carrying an auxiliary bundle extension, skipping the
// framework namespaces.
func (o *Orchestrator) discoverBundles() ([]string, error) {
	root := filepath.Join(o.dc.SystemRoot, systemLibrary)
	top, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var rels []string
	for _, entry := range top {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == string(types.CategoryFrameworks) || name == string(types.CategoryPrivateFrameworks) {
			continue
		}
		if hasAuxExtension(name) {
			rels = append(rels, name)
			continue
		}
		sub, err := os.ReadDir(filepath.Join(root, name))
		if err != nil {
			continue
		}
		for _, inner := range sub {
			if inner.IsDir() && hasAuxExtension(inner.Name()) {
				rels = append(rels, filepath.Join(name, inner.Name()))
			}
		}
	}
	return rels, nil
}

func hasAuxExtension(name string) bool {
	for _, ext := range auxExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// dumpDylibs dumps the selected raw libraries under usr/lib.
func (o *Orchestrator) dumpDylibs(ctx context.Context, result *types.BatchResult) error {
	var names []string
	if o.dc.Selection.AllDylibs {
		entries, err := os.ReadDir(filepath.Join(o.dc.SystemRoot, usrLib))
		if err != nil {
			return fmt.Errorf("reading %s: %w", usrLib, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), dylibSuffix) {
				names = append(names, entry.Name())
			}
		}
	} else {
		for name := range o.dc.Selection.Dylibs {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(o.dc.SystemRoot, usrLib, name)
		if _, err := os.Stat(path); err != nil {
			o.reportFailure(result, types.ItemResult{Item: name, Err: fmt.Errorf("library not found: %w", err)})
			continue
		}
		rel := filepath.Join(usrLib, name)
		if err := o.dumpItem(ctx, rel, path, "dylib", result); err != nil {
			return err
		}
	}
	return nil
}

// artifactsExist reports whether the item already has dumped output in
// the final tree, under either layout naming.
func (o *Orchestrator) artifactsExist(rel string) bool {
	candidates := []string{rel, strings.TrimSuffix(rel, frameworkSuffix)}
	for _, c := range candidates {
		dir := filepath.Join(o.dc.OutputRoot, c)
		if empty, err := dirIsEmpty(dir); err == nil && !empty {
			return true
		}
	}
	return false
}

func dirIsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true, err
	}
	return len(entries) == 0, nil
}

// countHeaders counts the artifact files under dir.
func countHeaders(dir string) int {
	n := 0
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			switch filepath.Ext(path) {
			case ".h", ".swiftinterface":
				n++
			}
		}
		return nil
	})
	return n
}
