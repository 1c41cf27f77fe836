// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selector

import (
	"reflect"
	"testing"

	"github.com/mlehane/sdkdump/pkg/types"
)

func TestParseBareFrameworkName(t *testing.T) {
	sel, err := Parse([]string{"SafariShared"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantCats := []types.Category{types.CategoryFrameworks, types.CategoryPrivateFrameworks}
	if !reflect.DeepEqual(sel.Categories, wantCats) {
		t.Errorf("categories = %v, want %v", sel.Categories, wantCats)
	}
	if !sel.Frameworks["safarishared.framework"] {
		t.Errorf("frameworks = %v, want safarishared.framework", sel.Frameworks)
	}
	if len(sel.Bundles) != 0 || len(sel.Dylibs) != 0 {
		t.Errorf("unexpected bundle/dylib items: %v %v", sel.Bundles, sel.Dylibs)
	}
	if sel.AllFrameworks {
		t.Error("AllFrameworks should be false for an explicit name")
	}
}

func TestParseNormalizesFrameworkVariants(t *testing.T) {
	for _, target := range []string{
		"SafariShared",
		"SafariShared.framework",
		"Frameworks/SafariShared",
		"PrivateFrameworks/SafariShared.framework",
		"/System/Library/PrivateFrameworks/SafariShared.framework",
	} {
		sel, err := Parse([]string{target})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", target, err)
		}
		if !sel.Frameworks["safarishared.framework"] {
			t.Errorf("%q: frameworks = %v", target, sel.Frameworks)
		}
	}
}

func TestParseBundlePath(t *testing.T) {
	sel, err := Parse([]string{"PreferenceBundles/Foo.bundle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.Categories) != 0 {
		t.Errorf("categories = %v, want none", sel.Categories)
	}
	if len(sel.Bundles) != 1 || !sel.Bundles["PreferenceBundles/Foo.bundle"] {
		t.Errorf("bundles = %v", sel.Bundles)
	}
}

func TestParseBundlePathRejectsDotSegments(t *testing.T) {
	for _, target := range []string{
		"PreferenceBundles/../Frameworks/Foo.bundle",
		"/System/Library/PreferenceBundles/../Frameworks/Foo.bundle",
		"./PreferenceBundles/Foo.bundle",
		"PreferenceBundles/./Foo.bundle",
	} {
		_, err := Parse([]string{target})
		if !types.IsInvalidTarget(err) {
			t.Errorf("%q: got %v, want InvalidTargetError", target, err)
		}
	}
}

func TestParseBundleRejectsUnknownExtension(t *testing.T) {
	_, err := Parse([]string{"PreferenceBundles/Foo.kext"})
	if !types.IsInvalidTarget(err) {
		t.Fatalf("got %v, want InvalidTargetError", err)
	}
}

func TestParseDylib(t *testing.T) {
	for _, target := range []string{"libobjc.dylib", "/usr/lib/libobjc.dylib"} {
		sel, err := Parse([]string{target})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", target, err)
		}
		if !sel.Dylibs["libobjc.dylib"] {
			t.Errorf("%q: dylibs = %v", target, sel.Dylibs)
		}
		for name := range sel.Dylibs {
			if name != "" && name[0] == '/' {
				t.Errorf("dylib name %q contains a path", name)
			}
		}
	}
}

func TestParseDylibRejectsSubdirectory(t *testing.T) {
	_, err := Parse([]string{"/usr/lib/system/libsystem_c.dylib"})
	if !types.IsInvalidTarget(err) {
		t.Fatalf("got %v, want InvalidTargetError", err)
	}
}

func TestParseDefaultEqualsFrameworksPreset(t *testing.T) {
	def, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	preset, err := Parse([]string{"@frameworks"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(def, preset) {
		t.Errorf("default selection %+v != @frameworks selection %+v", def, preset)
	}
}

func TestParsePresetMonotonicity(t *testing.T) {
	tests := []struct {
		preset     string
		frameworks bool
		bundles    bool
		dylibs     bool
	}{
		{"@frameworks", true, false, false},
		{"@system", true, true, false},
		{"@all", true, true, true},
	}
	for _, tt := range tests {
		sel, err := Parse([]string{tt.preset})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.preset, err)
		}
		if sel.AllFrameworks != tt.frameworks || sel.AllBundles != tt.bundles || sel.AllDylibs != tt.dylibs {
			t.Errorf("%s: got (%v %v %v), want (%v %v %v)", tt.preset,
				sel.AllFrameworks, sel.AllBundles, sel.AllDylibs,
				tt.frameworks, tt.bundles, tt.dylibs)
		}
		if len(sel.Frameworks) != 0 {
			t.Errorf("%s: named items should be empty, got %v", tt.preset, sel.Frameworks)
		}
	}
}

func TestParsePresetSupersedesNamedFrameworks(t *testing.T) {
	sel, err := Parse([]string{"SafariShared", "@frameworks"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sel.AllFrameworks {
		t.Error("AllFrameworks not set")
	}
	if len(sel.Frameworks) != 0 {
		t.Errorf("named frameworks should be discarded, got %v", sel.Frameworks)
	}
}

func TestParsePresetsAdditiveAcrossEntries(t *testing.T) {
	sel, err := Parse([]string{"@frameworks", "libobjc.dylib"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sel.AllFrameworks || !sel.Dylibs["libobjc.dylib"] {
		t.Errorf("additive parse lost scope: %+v", sel)
	}
}

func TestParseUnknownPreset(t *testing.T) {
	_, err := Parse([]string{"@everything"})
	if !types.IsInvalidTarget(err) {
		t.Fatalf("got %v, want InvalidTargetError", err)
	}
}
