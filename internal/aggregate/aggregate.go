// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate merges statically decoded metadata records with the
// runtime-introspection fallback and writes the deduplicated set to
// disk. Static records win; the runtime only supplies classes the
// static decoder missed for that specific image.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mlehane/sdkdump/internal/extractor"
	"github.com/mlehane/sdkdump/pkg/types"
)

const headersDir = "Headers"

// pathCacheSize bounds the symlink-resolution cache. Nested-bundle
// passes resolve the same parent paths repeatedly.
const pathCacheSize = 512

// Aggregator produces the maximal record set for one image at a time.
type Aggregator struct {
	source  extractor.RecordSource
	verbose bool
	out     io.Writer

	resolved *lru.Cache[string, string]
}

// New returns an Aggregator reading records from source. Status and
// verbose diagnostics go to out.
func New(source extractor.RecordSource, verbose bool, out io.Writer) *Aggregator {
	cache, _ := lru.New[string, string](pathCacheSize)
	return &Aggregator{source: source, verbose: verbose, out: out, resolved: cache}
}

// Dump extracts imagePath, merges in the runtime fallback when enabled,
// and writes header files under outDir/Headers plus the module interface
// next to them. It returns the number of headers written.
func (a *Aggregator) Dump(ctx context.Context, imagePath, outDir string, useRuntime bool) (int, error) {
	static, err := a.source.StaticRecords(ctx, imagePath)
	if err != nil {
		return 0, err
	}
	if a.verbose {
		fmt.Fprintf(a.out, "  %s: %d static records\n", imagePath, static.Count())
	}

	// Module interface generation runs while records are merged and
	// written; the result is awaited at the end.
	ifaceCh := a.source.ModuleInterface(ctx, imagePath)

	classes := make(map[string]types.ClassRecord)
	classOrder := make([]string, 0, len(static.Classes))
	for _, c := range static.Classes {
		// First successful decode of a name is kept; later class-list
		// section variants do not overwrite it.
		if _, ok := classes[c.Name]; ok {
			continue
		}
		classes[c.Name] = c
		classOrder = append(classOrder, c.Name)
	}

	if useRuntime {
		added, err := a.runtimeSupplement(ctx, imagePath, classes)
		if err != nil {
			if a.verbose {
				fmt.Fprintf(a.out, "  warning: runtime fallback for %s: %v\n", imagePath, err)
			}
		} else {
			classOrder = append(classOrder, added...)
		}
	}

	written := 0
	hdrDir := filepath.Join(outDir, headersDir)
	if err := os.MkdirAll(hdrDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", hdrDir, err)
	}

	for _, name := range classOrder {
		n, err := a.writeHeader(hdrDir, name, classes[name].Header)
		if err != nil {
			return written, err
		}
		written += n
	}

	protocols := make(map[string]bool)
	for _, p := range static.Protocols {
		if protocols[p.Name] {
			continue
		}
		protocols[p.Name] = true
		n, err := a.writeHeader(hdrDir, p.Name+"-Protocol", p.Header)
		if err != nil {
			return written, err
		}
		written += n
	}

	categories := make(map[string]bool)
	for _, c := range static.Categories {
		key := c.Key()
		if categories[key] {
			continue
		}
		categories[key] = true
		n, err := a.writeHeader(hdrDir, key, c.Header)
		if err != nil {
			return written, err
		}
		written += n
	}

	// An empty interface is "nothing to write"; a generation failure is
	// reported in verbose mode and never aborts the image's dump.
	iface := <-ifaceCh
	switch {
	case iface.Err != nil:
		if a.verbose {
			fmt.Fprintf(a.out, "  warning: module interface for %s: %v\n", imagePath, iface.Err)
		}
	case strings.TrimSpace(iface.Text) != "":
		base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
		path := filepath.Join(outDir, Filename(base, ".swiftinterface"))
		if err := os.WriteFile(path, []byte(iface.Text), 0o644); err != nil {
			return written, fmt.Errorf("writing module interface: %w", err)
		}
		written++
	}

	return written, nil
}

// writeHeader validates the record name and writes one header file.
// Corrupted names are skipped with a diagnostic rather than failing the
// image.
func (a *Aggregator) writeHeader(hdrDir, name, header string) (int, error) {
	if err := ValidateName(name); err != nil {
		if a.verbose {
			fmt.Fprintf(a.out, "  warning: %v\n", err)
		}
		return 0, nil
	}
	path := filepath.Join(hdrDir, Filename(name, ".h"))
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return 0, fmt.Errorf("writing header %s: %w", name, err)
	}
	return 1, nil
}

// runtimeSupplement adds classes the live runtime attributes to this
// image and the static decoder missed. It returns the added names in
// discovery order.
func (a *Aggregator) runtimeSupplement(ctx context.Context, imagePath string, classes map[string]types.ClassRecord) ([]string, error) {
	images, err := a.source.RuntimeRecords(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		// No name-based query result; fall back to the slower
		// whole-runtime scan filtered by image path.
		images, err = a.source.RuntimeScan(ctx)
		if err != nil {
			return nil, err
		}
	}

	var added []string
	for _, img := range images {
		if !a.sameImage(img.ImagePath, imagePath) {
			continue
		}
		for _, c := range img.Classes {
			if _, ok := classes[c.Name]; ok {
				continue
			}
			classes[c.Name] = c
			added = append(added, c.Name)
		}
	}
	return added, nil
}

// sameImage reports whether two image paths refer to the same binary,
// comparing symlink-resolved paths and versioned bundle variants.
func (a *Aggregator) sameImage(got, want string) bool {
	if got == "" {
		return false
	}
	rg, rw := a.resolve(got), a.resolve(want)
	if rg == rw {
		return true
	}
	for _, v := range imageVariants(rw) {
		if rg == v {
			return true
		}
	}
	for _, v := range imageVariants(rg) {
		if rw == v {
			return true
		}
	}
	return false
}

func (a *Aggregator) resolve(path string) string {
	if cached, ok := a.resolved.Get(path); ok {
		return cached
	}
	out := filepath.Clean(path)
	if r, err := filepath.EvalSymlinks(path); err == nil {
		out = r
	}
	a.resolved.Add(path, out)
	return out
}

// imageVariants lists the versioned-bundle subpaths a runtime may report
// for a framework's main binary.
func imageVariants(path string) []string {
	dir, base := filepath.Dir(path), filepath.Base(path)
	return []string{
		filepath.Join(dir, "Versions", "A", base),
		filepath.Join(dir, "Versions", "Current", base),
	}
}
