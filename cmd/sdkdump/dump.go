// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlehane/sdkdump/internal/environ"
	"github.com/mlehane/sdkdump/internal/extractor"
	"github.com/mlehane/sdkdump/internal/manifest"
	"github.com/mlehane/sdkdump/internal/orchestrate"
	"github.com/mlehane/sdkdump/internal/selector"
	"github.com/mlehane/sdkdump/internal/shell"
	"github.com/mlehane/sdkdump/internal/stage"
	"github.com/mlehane/sdkdump/pkg/types"
)

const defaultOutputDir = "headers"

var dumpCmd = &cobra.Command{
	Use:   "dump [targets...]",
	Short: "Extract interface headers from system library images",
	Long: `Dump extracts Objective-C headers and Swift module interfaces from the
selected frameworks, bundles, and dynamic libraries.

Targets are framework names (UIKit), auxiliary bundle paths
(PreferenceBundles/Foo.bundle), raw library names (libobjc.A.dylib), or
presets: @frameworks, @system, and @all. Presets expand additively.
With no targets, all frameworks are dumped.`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().String("platform", "", "library platform: simulator (default) or host")
	dumpCmd.Flags().String("mode", "", "execution mode: simulator or host (default: auto-select)")
	dumpCmd.Flags().String("runtime", "", "simulator OS version to use (default: latest installed)")
	dumpCmd.Flags().String("device", "", "simulator device UDID or name (default: dedicated clone)")
	dumpCmd.Flags().String("device-type", "", "device type when a device must be created")
	dumpCmd.Flags().StringP("output", "o", defaultOutputDir, "output directory root")
	dumpCmd.Flags().Bool("force", false, "replace existing output instead of merging around it")
	dumpCmd.Flags().Bool("skip-existing", false, "skip items that already have artifacts on disk")
	dumpCmd.Flags().String("layout", string(types.LayoutSuffixed), "output layout: suffixed or stripped")
	dumpCmd.Flags().Bool("shared-cache", false, "look up stripped on-disk images in the shared cache")
	dumpCmd.Flags().Bool("nested", false, "also dump PlugIns and XPCServices inside each framework")
	dumpCmd.Flags().Bool("runtime-fallback", false, "supplement static records with live-runtime classes")
	dumpCmd.Flags().StringArray("filter", nil, "case-insensitive substring filter on framework names (repeatable)")
	dumpCmd.Flags().Bool("verbose", false, "print extractor diagnostics")
	dumpCmd.Flags().Bool("verbose-skip", false, "report every skipped item")
	dumpCmd.Flags().Bool("profile", false, "print per-item timing")
	dumpCmd.Flags().Bool("trace-interface", false, "trace the extractor's module-interface builder")

	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	sel, err := selector.Parse(args)
	if err != nil {
		return err
	}
	filters, _ := cmd.Flags().GetStringArray("filter")
	sel.Filters = append(sel.Filters, filters...)
	sel.NestedBundles = sel.NestedBundles || boolSetting(cmd, "nested")

	cfg := types.DumpConfig{
		Platform:        stringSetting(cmd, "platform"),
		Mode:            stringSetting(cmd, "mode"),
		RuntimeVersion:  stringSetting(cmd, "runtime"),
		Device:          stringSetting(cmd, "device"),
		DeviceType:      stringSetting(cmd, "device-type"),
		OutputDir:       stringSetting(cmd, "output"),
		Force:           boolSetting(cmd, "force"),
		SkipExisting:    boolSetting(cmd, "skip-existing"),
		Layout:          stringSetting(cmd, "layout"),
		SharedCache:     boolSetting(cmd, "shared-cache"),
		RuntimeFallback: boolSetting(cmd, "runtime-fallback"),
		Verbose:         boolSetting(cmd, "verbose"),
		VerboseSkip:     boolSetting(cmd, "verbose-skip"),
		Profile:         boolSetting(cmd, "profile"),
		TraceInterface:  boolSetting(cmd, "trace-interface"),
	}
	layout, err := parseLayout(cfg.Layout)
	if err != nil {
		return err
	}

	run := shell.OSRunner{}
	hostBin, simBin := extractor.Locate(run)
	if hostBin == "" && simBin == "" {
		return &types.EnvUnavailableError{Reason: "no extractor binary found next to sdkdump or on PATH"}
	}

	ctx := cmd.Context()
	resolver := environ.NewResolver(run)
	setup, err := resolver.Resolve(ctx, cfg, hostBin, simBin)
	if err != nil {
		// Environment provisioning can fail transiently (a device that
		// refuses to boot). When the mode was auto-selected, retry the
		// whole resolution in host mode before giving up.
		if !environ.FallbackEligible(err, setup.ModeExplicit, hostBin) {
			return err
		}
		fmt.Fprintf(os.Stderr, "simulator setup failed (%v), falling back to host execution\n", err)
		cfg.Mode = string(types.ModeHost)
		setup, err = resolver.Resolve(ctx, cfg, hostBin, simBin)
		if err != nil {
			return err
		}
	}

	binPath := hostBin
	if setup.Mode == types.ModeSimulator {
		binPath = simBin
	}
	if binPath == "" {
		return &types.EnvUnavailableError{Reason: fmt.Sprintf("no extractor binary for %s mode", setup.Mode)}
	}

	stager, err := stage.New(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer stager.Close()

	store, err := manifest.Open(cfg.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: manifest unavailable: %v\n", err)
	} else {
		defer store.Close()
	}

	dc := types.DumpContext{
		Platform:          setup.Platform,
		Mode:              setup.Mode,
		ModeExplicit:      setup.ModeExplicit,
		Runtime:           setup.Runtime,
		Device:            setup.Device,
		ExtractorPath:     binPath,
		HostExtractorPath: hostBin,
		SystemRoot:        setup.SystemRoot,
		OutputRoot:        stager.OutputRoot(),
		StagingRoot:       stager.StagingRoot(),
		SkipExisting:      cfg.SkipExisting && !cfg.Force,
		Layout:            layout,
		SharedCache:       cfg.SharedCache,
		RuntimeFallback:   cfg.RuntimeFallback,
		Selection:         sel,
		Verbose:           cfg.Verbose,
		VerboseSkip:       cfg.VerboseSkip,
		Profile:           cfg.Profile,
		TraceInterface:    cfg.TraceInterface,
		Started:           time.Now(),
	}

	client := extractor.NewClient(run, os.Stdout)
	orch := orchestrate.New(dc, run, client, resolver, stager, store, os.Stdout, os.Stderr)

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d item(s) failed", len(result.Failed))
	}
	return nil
}

func parseLayout(s string) (types.LayoutMode, error) {
	switch s {
	case "", string(types.LayoutSuffixed):
		return types.LayoutSuffixed, nil
	case string(types.LayoutStripped):
		return types.LayoutStripped, nil
	}
	return "", &types.InvalidTargetError{Target: s, Flag: "layout", Reason: "unknown layout (want suffixed or stripped)"}
}
