// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selector parses the target list into a normalized Selection.
// Targets name frameworks, auxiliary bundles under the system library
// root, raw libraries under /usr/lib, or presets ("@frameworks",
// "@system", "@all"). Presets are additive and never narrow an explicit
// list.
package selector

import (
	"path"
	"strings"

	"github.com/mlehane/sdkdump/pkg/types"
)

const (
	frameworkSuffix = ".framework"
	dylibSuffix     = ".dylib"
	dylibRoot       = "/usr/lib/"
	bundleRoot      = "/System/Library/"
)

// auxExtensions are the recognized auxiliary-bundle extensions for
// targets under the system library root.
var auxExtensions = []string{".bundle", ".xpc", ".appex"}

// frameworkCategories is the ordered set of namespaces scanned whenever
// frameworks are in scope.
var frameworkCategories = []types.Category{
	types.CategoryFrameworks,
	types.CategoryPrivateFrameworks,
}

// Parse turns the raw target list into a Selection. An empty list
// defaults to dumping all frameworks.
func Parse(targets []string) (types.Selection, error) {
	sel := types.Selection{
		Frameworks: make(map[string]bool),
		Bundles:    make(map[string]bool),
		Dylibs:     make(map[string]bool),
	}

	if len(targets) == 0 {
		sel.AllFrameworks = true
	}

	for _, raw := range targets {
		target := strings.TrimSpace(raw)
		if target == "" {
			return sel, &types.InvalidTargetError{Target: raw, Reason: "empty target"}
		}
		if err := parseOne(target, &sel); err != nil {
			return sel, err
		}
	}

	// A preset that enables all frameworks supersedes any explicitly
	// named frameworks.
	if sel.AllFrameworks {
		sel.Frameworks = make(map[string]bool)
	}

	if sel.AllFrameworks || len(sel.Frameworks) > 0 || len(sel.Filters) > 0 {
		sel.Categories = append([]types.Category(nil), frameworkCategories...)
	}

	if sel.Empty() {
		return sel, &types.InvalidTargetError{
			Target: strings.Join(targets, " "),
			Reason: "selection matches no frameworks, bundles, or libraries",
		}
	}
	return sel, nil
}

func parseOne(target string, sel *types.Selection) error {
	// Rule 1: presets.
	if strings.HasPrefix(target, "@") {
		switch strings.ToLower(target) {
		case "@frameworks":
			sel.AllFrameworks = true
		case "@system":
			sel.AllFrameworks = true
			sel.AllBundles = true
		case "@all":
			sel.AllFrameworks = true
			sel.AllBundles = true
			sel.AllDylibs = true
		default:
			return &types.InvalidTargetError{Target: target, Reason: "unknown preset"}
		}
		return nil
	}

	// Rule 2: anything carrying the framework bundle pattern, including
	// paths under a frameworks namespace.
	if isFrameworkTarget(target) {
		sel.Frameworks[normalizeFramework(target)] = true
		return nil
	}

	// Rule 3: raw libraries.
	if strings.HasSuffix(target, dylibSuffix) || strings.HasPrefix(target, dylibRoot) {
		name := strings.TrimPrefix(target, dylibRoot)
		if strings.Contains(name, "/") {
			return &types.InvalidTargetError{Target: target, Reason: "library name must not contain subdirectories"}
		}
		sel.Dylibs[name] = true
		return nil
	}

	// Rule 4: auxiliary bundle paths relative to the system library root.
	if strings.Contains(target, "/") || hasAuxExtension(target) {
		rel, err := normalizeBundle(target)
		if err != nil {
			return err
		}
		sel.Bundles[rel] = true
		return nil
	}

	// Rule 5: bare framework name, for backward compatibility.
	sel.Frameworks[normalizeFramework(target)] = true
	return nil
}

// isFrameworkTarget reports whether target names a framework: by the
// ".framework" suffix, or by a frameworks namespace leading the
// root-relative path. The namespace must be the first segment so that
// bundle paths with dot segments cannot be reclassified as frameworks.
func isFrameworkTarget(target string) bool {
	if strings.HasSuffix(target, frameworkSuffix) {
		return true
	}
	rel := strings.TrimPrefix(target, bundleRoot)
	rel = strings.TrimPrefix(rel, "/")
	first, rest, ok := strings.Cut(rel, "/")
	if !ok || rest == "" {
		return false
	}
	for _, cat := range frameworkCategories {
		if first == string(cat) {
			return true
		}
	}
	return false
}

// normalizeFramework reduces a framework target to its canonical form:
// the bare bundle name, lower-cased, with the ".framework" suffix.
func normalizeFramework(target string) string {
	name := path.Base(strings.TrimSuffix(target, "/"))
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, frameworkSuffix) {
		name += frameworkSuffix
	}
	return name
}

func hasAuxExtension(target string) bool {
	for _, ext := range auxExtensions {
		if strings.HasSuffix(target, ext) {
			return true
		}
	}
	return false
}

// normalizeBundle validates an auxiliary bundle target and returns its
// path relative to the system library root. Dot segments are rejected so
// no target can escape the root; frameworks namespaces are rejected
// because those targets are framework names, not bundle paths.
func normalizeBundle(target string) (string, error) {
	rel := strings.TrimPrefix(target, bundleRoot)
	rel = strings.TrimPrefix(rel, "/")

	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", &types.InvalidTargetError{Target: target, Reason: "bundle path must not contain dot segments"}
		}
		if seg == "" {
			return "", &types.InvalidTargetError{Target: target, Reason: "bundle path contains an empty segment"}
		}
	}

	first := strings.SplitN(rel, "/", 2)[0]
	for _, cat := range frameworkCategories {
		if first == string(cat) {
			return "", &types.InvalidTargetError{Target: target, Reason: "frameworks are named directly, not as bundle paths"}
		}
	}

	if !hasAuxExtension(rel) {
		return "", &types.InvalidTargetError{Target: target, Reason: "unrecognized bundle extension"}
	}
	return rel, nil
}
