// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlehane/sdkdump/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLockContentionFailsFast(t *testing.T) {
	root := t.TempDir()

	first, err := New(root)
	if err != nil {
		t.Fatalf("first run could not lock: %v", err)
	}
	defer first.Close()

	_, err = New(root)
	if !types.IsLocked(err) {
		t.Fatalf("second run: got %v, want LockedError", err)
	}

	// The contending run must not have created a staging directory.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	staging := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".staging-") {
			staging++
		}
	}
	if staging != 1 {
		t.Errorf("found %d staging directories, want only the first run's", staging)
	}
}

func TestLockReleasedOnClose(t *testing.T) {
	root := t.TempDir()

	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, lockFileName)); !os.IsNotExist(err) {
		t.Error("lock file survived a clean close")
	}
	if _, err := os.Stat(s.StagingRoot()); !os.IsNotExist(err) {
		t.Error("staging directory survived a clean close")
	}

	// A new run can lock again.
	again, err := New(root)
	if err != nil {
		t.Fatalf("relock after close: %v", err)
	}
	again.Close()
}

func TestLockFileRecordsOwner(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	data, err := os.ReadFile(filepath.Join(root, lockFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "pid=") || !strings.Contains(string(data), "started=") {
		t.Errorf("lock content = %q", data)
	}
}

func TestRelocateIntoEmptyTree(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	item := "Frameworks/Foo.framework"
	dir, err := s.ItemDir(item)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "Headers", "SFFoo.h"), "h")

	if err := s.Relocate(item, false); err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, item, "Headers", "SFFoo.h")); err != nil {
		t.Errorf("final file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.StagingRoot(), item)); !os.IsNotExist(err) {
		t.Error("staged item still present after relocation")
	}
}

func TestRelocateOverwriteReplaces(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	item := "Frameworks/Foo.framework"
	writeFile(t, filepath.Join(root, item, "Headers", "Old.h"), "old")

	dir, _ := s.ItemDir(item)
	writeFile(t, filepath.Join(dir, "Headers", "New.h"), "new")

	if err := s.Relocate(item, true); err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, item, "Headers", "Old.h")); !os.IsNotExist(err) {
		t.Error("overwrite kept a stale file")
	}
	if _, err := os.Stat(filepath.Join(root, item, "Headers", "New.h")); err != nil {
		t.Errorf("new file missing: %v", err)
	}
}

func TestRelocateMergePrefersExisting(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	item := "Frameworks/Foo.framework"
	writeFile(t, filepath.Join(root, item, "Headers", "Both.h"), "existing")

	dir, _ := s.ItemDir(item)
	writeFile(t, filepath.Join(dir, "Headers", "Both.h"), "staged")
	writeFile(t, filepath.Join(dir, "Headers", "OnlyStaged.h"), "staged-only")

	if err := s.Relocate(item, false); err != nil {
		t.Fatalf("relocate: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(root, item, "Headers", "Both.h"))
	if string(data) != "existing" {
		t.Errorf("conflict resolved wrong way: %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, item, "Headers", "OnlyStaged.h")); err != nil {
		t.Errorf("staged-only file not merged: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.StagingRoot(), item)); !os.IsNotExist(err) {
		t.Error("emptied staged directories not pruned")
	}
}

func TestNormalizeLayoutIdempotent(t *testing.T) {
	root := t.TempDir()
	cats := []types.Category{types.CategoryFrameworks}
	writeFile(t, filepath.Join(root, "Frameworks", "Foo.framework", "Headers", "a.h"), "x")
	writeFile(t, filepath.Join(root, "Frameworks", "Bar.framework", "Headers", "b.h"), "x")

	if err := NormalizeLayout(root, cats, types.LayoutStripped); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadDir(filepath.Join(root, "Frameworks"))

	if err := NormalizeLayout(root, cats, types.LayoutStripped); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadDir(filepath.Join(root, "Frameworks"))

	if len(first) != len(second) {
		t.Fatalf("entry count changed on second pass: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name() != second[i].Name() {
			t.Errorf("second pass changed names: %s vs %s", first[i].Name(), second[i].Name())
		}
	}
	for _, e := range second {
		if strings.HasSuffix(e.Name(), ".framework") {
			t.Errorf("suffix survived stripping: %s", e.Name())
		}
	}
}

func TestNormalizeLayoutRoundTrip(t *testing.T) {
	root := t.TempDir()
	cats := []types.Category{types.CategoryFrameworks}
	writeFile(t, filepath.Join(root, "Frameworks", "Foo.framework", "Headers", "a.h"), "x")

	if err := NormalizeLayout(root, cats, types.LayoutStripped); err != nil {
		t.Fatal(err)
	}
	if err := NormalizeLayout(root, cats, types.LayoutSuffixed); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "Frameworks", "Foo.framework", "Headers", "a.h")); err != nil {
		t.Errorf("round trip lost the tree: %v", err)
	}
}

func TestLedgerIsAdditive(t *testing.T) {
	root := t.TempDir()

	if err := AppendFailures(root, []types.ItemResult{{Item: "Frameworks/A.framework"}}); err != nil {
		t.Fatal(err)
	}
	if err := AppendFailures(root, []types.ItemResult{{Item: "Frameworks/B.framework"}}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "failed.txt"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "Frameworks/A.framework") || !strings.Contains(text, "Frameworks/B.framework") {
		t.Errorf("ledger lost entries:\n%s", text)
	}
	if strings.Count(text, "# ") != 2 {
		t.Errorf("want one summary line per batch:\n%s", text)
	}
}

func TestLedgerSkipsEmptyBatch(t *testing.T) {
	root := t.TempDir()
	if err := AppendFailures(root, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "failed.txt")); !os.IsNotExist(err) {
		t.Error("empty batch created a ledger file")
	}
}

func TestWriteSummary(t *testing.T) {
	root := t.TempDir()
	sum := types.RunSummary{
		Timestamp:   "2026-08-30T12:00:00Z",
		Platform:    "simulator",
		Version:     "17.4",
		Layout:      "stripped",
		HeaderCount: 1234,
	}
	if err := WriteSummary(root, sum); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "dump-info.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "header_count: 1234") {
		t.Errorf("summary content:\n%s", data)
	}
}
