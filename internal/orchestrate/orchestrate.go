// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate drives a dump run: per-category bulk extraction
// with downgrade to per-item split mode, retry and mode-fallback
// handling, nested-bundle discovery, and immediate relocation of
// successful output.
package orchestrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlehane/sdkdump/internal/aggregate"
	"github.com/mlehane/sdkdump/internal/environ"
	"github.com/mlehane/sdkdump/internal/extractor"
	"github.com/mlehane/sdkdump/internal/manifest"
	"github.com/mlehane/sdkdump/internal/shell"
	"github.com/mlehane/sdkdump/internal/stage"
	"github.com/mlehane/sdkdump/pkg/types"
)

const systemLibrary = "System/Library"

// nestedNamespaces are the two sub-namespaces searched for bundles
// nested inside a dumped framework. The search is not recursive.
var nestedNamespaces = []string{"PlugIns", "XPCServices"}

// Orchestrator runs one dump.
type Orchestrator struct {
	dc       types.DumpContext
	run      shell.Runner
	client   *extractor.Client
	resolver *environ.Resolver
	stager   *stage.Stager
	store    *manifest.Store
	runID    int64
	out      io.Writer
	errOut   io.Writer

	headers    int
	succeeded  int
	dispatched bool
	foundNamed map[string]bool
}

// New assembles an Orchestrator. store may be nil when the manifest is
// unavailable; recording is then skipped.
func New(dc types.DumpContext, run shell.Runner, client *extractor.Client, resolver *environ.Resolver, stager *stage.Stager, store *manifest.Store, out, errOut io.Writer) *Orchestrator {
	return &Orchestrator{
		dc:       dc,
		run:      run,
		client:   client,
		resolver: resolver,
		stager:   stager,
		store:    store,
		out:      out,
		errOut:   errOut,
	}
}

// Run executes the dump described by the context. When the simulator
// setup or the very first extraction fails with a recognized transient
// condition under an auto-selected mode, the whole run is rebuilt once
// under host mode.
func (o *Orchestrator) Run(ctx context.Context) (types.BatchResult, error) {
	result, err := o.runOnce(ctx)
	if err != nil && o.succeeded == 0 &&
		environ.FallbackEligible(err, o.dc.ModeExplicit, o.dc.HostExtractorPath) {
		fmt.Fprintf(o.errOut, "simulator execution failed (%v); retrying on the host\n", err)
		o.dc = o.dc.WithHostMode()
		result, err = o.runOnce(ctx)
	}

	if lerr := stage.AppendFailures(o.dc.OutputRoot, result.Failed); lerr != nil {
		fmt.Fprintf(o.errOut, "warning: could not update failures ledger: %v\n", lerr)
	}
	if err != nil {
		return result, err
	}

	if nerr := stage.NormalizeLayout(o.dc.OutputRoot, o.dc.Selection.Categories, o.dc.Layout); nerr != nil {
		return result, nerr
	}
	if serr := o.writeSummary(ctx); serr != nil {
		fmt.Fprintf(o.errOut, "warning: could not write run summary: %v\n", serr)
	}
	return result, nil
}

func (o *Orchestrator) runOnce(ctx context.Context) (types.BatchResult, error) {
	var result types.BatchResult
	o.foundNamed = make(map[string]bool)

	if o.store != nil {
		id, err := o.store.BeginRun(o.dc)
		if err != nil {
			fmt.Fprintf(o.errOut, "warning: manifest unavailable: %v\n", err)
			o.store = nil
		} else {
			o.runID = id
		}
	}

	// Align pre-existing output with the working (suffixed) layout so
	// skip-existing checks and merges see one naming scheme. The
	// requested layout is applied again after relocation.
	if err := stage.NormalizeLayout(o.dc.OutputRoot, o.dc.Selection.Categories, types.LayoutSuffixed); err != nil {
		return result, err
	}

	for _, cat := range o.dc.Selection.Categories {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := o.dumpCategory(ctx, cat, &result); err != nil {
			return result, err
		}
	}

	o.missingNamed(&result)

	if err := o.dumpBundles(ctx, &result); err != nil {
		return result, err
	}
	if err := o.dumpDylibs(ctx, &result); err != nil {
		return result, err
	}

	fmt.Fprintf(o.out, "\nDump summary: %d dumped, %d skipped, %d failed (total: %d)\n",
		result.Dumped, result.Skipped, len(result.Failed), result.Total())
	return result, nil
}

// splitRequired reports whether a category must be dumped item by item
// rather than with one recursive bulk pass.
func (o *Orchestrator) splitRequired() bool {
	if o.dc.Platform == types.PlatformSimulator && o.dc.Mode == types.ModeHost {
		return true
	}
	return o.dc.Selection.NestedBundles ||
		o.dc.Selection.HasExplicitItems() ||
		o.dc.SkipExisting
}

// dumpCategory tries one recursive bulk extraction over the category
// and downgrades to split mode when the extractor was killed by the OS.
// Exactly one downgrade: a killed split attempt fails normally.
func (o *Orchestrator) dumpCategory(ctx context.Context, cat types.Category, result *types.BatchResult) error {
	scanRoot := filepath.Join(o.dc.SystemRoot, systemLibrary, string(cat))
	if _, err := os.Stat(scanRoot); os.IsNotExist(err) {
		fmt.Fprintf(o.out, "skipping %s: not present under %s\n", cat, o.dc.SystemRoot)
		return nil
	}

	if o.splitRequired() {
		return o.splitCategory(ctx, cat, scanRoot, result)
	}

	fmt.Fprintf(o.out, "dumping %s (bulk)\n", cat)
	stagingDir, err := o.stager.ItemDir(string(cat))
	if err != nil {
		return err
	}

	opts := extractor.Options{
		Recursive:        true,
		KeepLayout:       true,
		HeadersSubfolder: true,
		SharedCache:      o.dc.SharedCache,
		Verbose:          o.dc.Verbose,
	}
	tail, err := o.dispatchWithRetry(ctx, scanRoot, stagingDir, opts)
	first := !o.dispatched
	o.dispatched = true
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err == nil {
		o.headers += countHeaders(stagingDir)
		if rerr := o.stager.Relocate(string(cat), !o.dc.SkipExisting); rerr != nil {
			return rerr
		}
		o.succeeded++
		result.Dumped++
		o.record(string(cat), "category", countHeaders(filepath.Join(o.dc.OutputRoot, string(cat))))
		return nil
	}

	if types.IsKilled(err) {
		// The split pass restages the same paths, so the killed
		// attempt's partial writes must be dropped first or they would
		// ride along into the final tree.
		if derr := o.stager.Discard(string(cat)); derr != nil {
			return derr
		}
		fmt.Fprintf(o.out, "bulk dump of %s killed by the OS; retrying item by item\n", cat)
		return o.splitCategory(ctx, cat, scanRoot, result)
	}

	// A transient failure of the very first dispatch unwinds so the run
	// can be rebuilt under host mode.
	if first && environ.FallbackEligible(err, o.dc.ModeExplicit, o.dc.HostExtractorPath) {
		return err
	}

	// A non-killed failing exit is fatal for this category only.
	o.reportFailure(result, types.ItemResult{Item: string(cat), Err: err, Diagnostics: tail})
	return nil
}

// splitCategory dumps every selected framework in the category
// individually, in lexicographic order, isolating per-item failures.
func (o *Orchestrator) splitCategory(ctx context.Context, cat types.Category, scanRoot string, result *types.BatchResult) error {
	items, err := o.frameworkItems(cat, scanRoot)
	if err != nil {
		return err
	}

	for _, name := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := filepath.Join(string(cat), name)
		if err := o.dumpItem(ctx, rel, filepath.Join(scanRoot, name), "framework", result); err != nil {
			return err
		}
	}
	return nil
}

// dumpItem runs one per-item extraction attempt: skip-existing check,
// dispatch, nested-bundle discovery, and immediate relocation.
func (o *Orchestrator) dumpItem(ctx context.Context, rel, imagePath, kind string, result *types.BatchResult) error {
	if o.dc.SkipExisting && o.artifactsExist(rel) {
		if o.dc.VerboseSkip {
			// The manifest tells a recorded earlier dump apart from
			// stray artifacts someone placed in the output tree.
			note := "already dumped"
			if o.store != nil {
				if seen, serr := o.store.Seen(rel); serr == nil && !seen {
					note = "artifacts present but not recorded"
				}
			}
			fmt.Fprintf(o.out, "skipped: %s (%s)\n", rel, note)
		}
		result.Skipped++
		return nil
	}

	start := time.Now()
	stagingDir, err := o.stager.ItemDir(rel)
	if err != nil {
		return err
	}

	tail, err := o.dispatchItem(ctx, imagePath, stagingDir)
	first := !o.dispatched
	o.dispatched = true
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err != nil {
		if first && environ.FallbackEligible(err, o.dc.ModeExplicit, o.dc.HostExtractorPath) {
			return err
		}
		o.reportFailure(result, types.ItemResult{
			Item:        rel,
			Err:         err,
			Diagnostics: tail,
			Killed:      types.IsKilled(err),
		})
		return nil
	}

	wrote := countHeaders(stagingDir)
	o.headers += wrote

	if err := o.stager.Relocate(rel, !o.dc.SkipExisting); err != nil {
		return err
	}
	o.succeeded++
	result.Dumped++
	o.record(rel, kind, wrote)

	if o.dc.Profile {
		fmt.Fprintf(o.out, "dumped: %s (%d headers, %s)\n", rel, wrote, time.Since(start).Round(time.Millisecond))
	} else {
		fmt.Fprintf(o.out, "dumped: %s\n", rel)
	}

	if kind == "framework" && o.dc.Selection.NestedBundles {
		if err := o.dumpNested(ctx, rel, imagePath, result); err != nil {
			return err
		}
	}
	return nil
}

// dispatchItem picks the extraction path for one item: the in-process
// aggregator on the host, or a spawned extractor inside the simulator.
func (o *Orchestrator) dispatchItem(ctx context.Context, imagePath, stagingDir string) ([]string, error) {
	if o.dc.Mode == types.ModeHost {
		agg := aggregate.New(o.client.Source(o.dc), o.dc.Verbose, o.out)
		_, err := agg.Dump(ctx, imagePath, stagingDir, o.dc.RuntimeFallback)
		return shell.DiagnosticTail(err, types.DiagnosticTail), err
	}

	opts := extractor.Options{
		HeadersSubfolder: true,
		SharedCache:      o.dc.SharedCache,
		Verbose:          o.dc.Verbose,
	}
	return o.dispatchWithRetry(ctx, imagePath, stagingDir, opts)
}

// dispatchWithRetry runs one extractor dispatch and, on a stale
// simulator session, force-reboots the device once and retries the same
// command exactly once more.
func (o *Orchestrator) dispatchWithRetry(ctx context.Context, input, outputDir string, opts extractor.Options) ([]string, error) {
	tail, err := o.client.Dispatch(ctx, o.dc, input, outputDir, opts)
	if !types.IsStaleSession(err) || o.dc.Mode != types.ModeSimulator {
		return tail, err
	}

	fmt.Fprintf(o.errOut, "stale simulator session; rebooting %s and retrying\n", o.dc.Device.Name)
	dev, berr := o.resolver.Control().Boot(ctx, o.dc.Device, true)
	if berr != nil {
		return tail, berr
	}
	o.dc.Device = dev
	return o.client.Dispatch(ctx, o.dc, input, outputDir, opts)
}

// dumpNested discovers bundles in the two fixed sub-namespaces of a
// just-dumped framework and dumps each one.
func (o *Orchestrator) dumpNested(ctx context.Context, parentRel, parentPath string, result *types.BatchResult) error {
	for _, ns := range nestedNamespaces {
		entries, err := os.ReadDir(filepath.Join(parentPath, ns))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !entry.IsDir() {
				continue
			}
			rel := filepath.Join(parentRel, ns, entry.Name())
			path := filepath.Join(parentPath, ns, entry.Name())
			if err := o.dumpItem(ctx, rel, path, "nested-bundle", result); err != nil {
				return err
			}
		}
	}
	return nil
}

// reportFailure prints the item's diagnostic tail and accumulates it.
func (o *Orchestrator) reportFailure(result *types.BatchResult, item types.ItemResult) {
	fmt.Fprintf(o.errOut, "failed: %s (%v)\n", item.Item, item.Err)
	for _, line := range item.Diagnostics {
		fmt.Fprintf(o.errOut, "  %s\n", line)
	}
	result.Failed = append(result.Failed, item)
}

func (o *Orchestrator) record(item, kind string, headers int) {
	if o.store == nil {
		return
	}
	if err := o.store.RecordImage(o.runID, item, kind, headers); err != nil {
		fmt.Fprintf(o.errOut, "warning: %v\n", err)
	}
}

func (o *Orchestrator) writeSummary(ctx context.Context) error {
	toolchain, err := o.run.Output(ctx, "xcrun", "--version")
	if err != nil {
		toolchain = ""
	}
	return stage.WriteSummary(o.dc.OutputRoot, types.RunSummary{
		Timestamp:   time.Now().Format(time.RFC3339),
		Platform:    string(o.dc.Platform),
		Version:     o.dc.Runtime.Version,
		Build:       o.dc.Runtime.Build,
		Layout:      string(o.dc.Layout),
		HeaderCount: o.headers,
		Toolchain:   strings.TrimSpace(toolchain),
	})
}
