// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extractor invokes the hdump metadata extractor, either
// directly on the host or spawned inside a booted simulator device, and
// classifies the outcome of each attempt. The extractor itself is a
// black box; this package only builds invocations and interprets exit
// states.
package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlehane/sdkdump/internal/environ"
	"github.com/mlehane/sdkdump/internal/shell"
	"github.com/mlehane/sdkdump/pkg/types"
)

const (
	hostBinName = "hdump"
	simBinName  = "hdump-sim"
)

// staleSessionMarkers are the two device-control messages that signal a
// dead simulator session. Kept verbatim; the recovery is one forced
// reboot and one retry.
var staleSessionMarkers = []string{
	"invalid device state",
	"device is not booted",
}

// Locate resolves the host- and simulator-mode extractor binaries,
// looking next to the sdkdump executable first and then on PATH. A
// missing binary yields an empty path, not an error; mode selection
// decides what is fatal.
func Locate(run shell.Runner) (hostBin, simBin string) {
	var dirs []string
	if self, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(self))
	}

	find := func(name string) string {
		for _, dir := range dirs {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
		if p, err := run.LookPath(name); err == nil {
			return p
		}
		return ""
	}
	return find(hostBinName), find(simBinName)
}

// Options are the extractor flags a dispatch can enable.
type Options struct {
	// Recursive dumps every image under the input root.
	Recursive bool

	// KeepLayout preserves the original directory layout in the output.
	KeepLayout bool

	// HeadersSubfolder nests generated headers under a Headers/ folder.
	HeadersSubfolder bool

	// SkipExisting leaves images alone that already have output.
	SkipExisting bool

	// SingleSymbol restricts extraction to one symbol name.
	SingleSymbol string

	// SharedCache enables shared-cache lookup for images whose on-disk
	// file is absent or stripped.
	SharedCache bool

	Verbose bool

	// PreferRuntime asks the extractor for runtime metadata over static
	// decoding.
	PreferRuntime bool
}

// Argv builds the extractor argument vector for one input and output.
func (o Options) Argv(input, outputDir string) []string {
	args := []string{input, "-o", outputDir}
	if o.Recursive {
		args = append(args, "--recursive")
	}
	if o.KeepLayout {
		args = append(args, "--keep-layout")
	}
	if o.HeadersSubfolder {
		args = append(args, "--headers-folder")
	}
	if o.SkipExisting {
		args = append(args, "--skip-existing")
	}
	if o.SingleSymbol != "" {
		args = append(args, "--symbol", o.SingleSymbol)
	}
	if o.SharedCache {
		args = append(args, "--shared-cache")
	}
	if o.Verbose {
		args = append(args, "--verbose")
	}
	if o.PreferRuntime {
		args = append(args, "--prefer-runtime")
	}
	return args
}

// Client dispatches extractor invocations for one run context.
type Client struct {
	run shell.Runner
	out io.Writer
}

// NewClient returns a Client writing extractor output to out.
func NewClient(run shell.Runner, out io.Writer) *Client {
	return &Client{run: run, out: out}
}

// Dispatch runs one extraction attempt under dc's execution mode and
// returns the retained output tail. Failures are classified: an OS-level
// kill and a stale simulator session come back as TransientError so the
// orchestrator can pick the matching recovery; anything else is an
// ordinary failure carrying the diagnostic tail.
func (c *Client) Dispatch(ctx context.Context, dc types.DumpContext, input, outputDir string, opts Options) ([]string, error) {
	argv := opts.Argv(input, outputDir)

	var name string
	var args []string
	var extraEnv []string

	if dc.Mode == types.ModeSimulator {
		name = "xcrun"
		args = environ.SpawnArgv(dc.Device, append([]string{dc.ExtractorPath}, argv...))
		extraEnv = environ.ChildEnv(childEnv(dc))
	} else {
		name = dc.ExtractorPath
		args = argv
		extraEnv = childEnv(dc)
	}

	res, err := c.run.Stream(ctx, c.out, types.DiagnosticTail, extraEnv, name, args...)
	if err == nil {
		return res.Tail, nil
	}

	if res.Killed {
		return res.Tail, &types.TransientError{
			Reason: fmt.Sprintf("extractor killed by the OS while dumping %s", input),
			Killed: true,
		}
	}
	if isStaleSession(res.Tail) {
		return res.Tail, &types.TransientError{
			Reason:       fmt.Sprintf("stale simulator session while dumping %s", input),
			StaleSession: true,
		}
	}
	return res.Tail, fmt.Errorf("extractor failed on %s: %w", input, err)
}

// childEnv builds the environment the extractor child should see.
func childEnv(dc types.DumpContext) []string {
	var env []string
	if dc.Verbose {
		env = append(env, "HDUMP_VERBOSE=1")
	}
	if dc.TraceInterface {
		env = append(env, "HDUMP_INTERFACE_TRACE=1")
	}
	return env
}

func isStaleSession(tail []string) bool {
	for _, line := range tail {
		lower := strings.ToLower(line)
		for _, marker := range staleSessionMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
