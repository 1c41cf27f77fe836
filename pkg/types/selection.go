// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for sdkdump: target
// selections, run contexts, extraction records, and the error taxonomy.
package types

import "strings"

// Category is a top-level framework namespace under the system library root.
type Category string

const (
	CategoryFrameworks        Category = "Frameworks"
	CategoryPrivateFrameworks Category = "PrivateFrameworks"
)

// Selection is the normalized result of parsing the target list: which
// categories to scan, which named items to dump, and which "dump all"
// scopes are enabled. Presets expand additively and never narrow an
// explicit list.
type Selection struct {
	// Categories is the ordered set of framework namespaces to scan.
	Categories []Category

	// Frameworks holds explicitly named frameworks, lower-cased and
	// normalized to the ".framework" suffix. Ignored when AllFrameworks
	// is set.
	Frameworks map[string]bool

	// Filters holds case-insensitive substring filters applied to
	// framework names during category scans.
	Filters []string

	// Bundles holds auxiliary bundle paths relative to the system
	// library root (e.g. "PreferenceBundles/Foo.bundle").
	Bundles map[string]bool

	// Dylibs holds bare raw-library filenames under /usr/lib.
	Dylibs map[string]bool

	AllFrameworks bool
	AllBundles    bool
	AllDylibs     bool

	// NestedBundles enables discovery of PlugIns and XPCServices inside
	// each dumped framework.
	NestedBundles bool
}

// HasExplicitItems reports whether the selection names individual items
// or filters, which forces per-item dispatch.
func (s Selection) HasExplicitItems() bool {
	return len(s.Frameworks) > 0 || len(s.Bundles) > 0 || len(s.Dylibs) > 0 || len(s.Filters) > 0
}

// Empty reports whether no scope is selected at all. An empty selection
// is rejected before any side effect.
func (s Selection) Empty() bool {
	return !s.AllFrameworks && !s.AllBundles && !s.AllDylibs && !s.HasExplicitItems()
}

// WantsFramework reports whether the named framework (already normalized)
// is selected, either by the all-frameworks scope, by name, or by filter.
func (s Selection) WantsFramework(name string) bool {
	if s.AllFrameworks && len(s.Filters) == 0 {
		return true
	}
	if s.Frameworks[name] {
		return true
	}
	lower := strings.ToLower(name)
	for _, f := range s.Filters {
		if strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
