// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Platform identifies the OS whose libraries are being dumped.
type Platform string

const (
	PlatformHost      Platform = "host"
	PlatformSimulator Platform = "simulator"
)

// ExecMode selects where the extractor runs.
type ExecMode string

const (
	// ModeHost runs the extractor binary directly on the host.
	ModeHost ExecMode = "host"

	// ModeSimulator spawns the extractor inside a booted simulator device.
	ModeSimulator ExecMode = "simulator"
)

// LayoutMode selects how dumped framework directories are named in the
// output tree.
type LayoutMode string

const (
	// LayoutSuffixed keeps bundle-style names ("Foo.framework").
	LayoutSuffixed LayoutMode = "suffixed"

	// LayoutStripped removes the bundle suffix ("Foo") for easier searching.
	LayoutStripped LayoutMode = "stripped"
)

// SimRuntime identifies one installed simulator OS image.
type SimRuntime struct {
	// Version is the dotted OS version (e.g. "17.4").
	Version string

	// Build is the OS build identifier.
	Build string

	// Identifier is the stable runtime identifier used by the device
	// control tool.
	Identifier string

	// Root is the runtime's filesystem root on the host.
	Root string
}

// SimDevice is one device instance of a simulator runtime.
type SimDevice struct {
	Name   string
	UDID   string
	Booted bool
}

// DumpContext is the immutable per-run configuration, created once after
// all resolution steps succeed. A simulator-to-host mode fallback rebuilds
// a fresh context via WithHostMode rather than mutating the live one.
type DumpContext struct {
	Platform Platform
	Mode     ExecMode

	// ModeExplicit records whether the execution mode was requested by
	// the user rather than auto-selected. An explicitly requested mode is
	// never silently replaced by the host fallback.
	ModeExplicit bool

	// Runtime and Device are set only when Mode is ModeSimulator.
	Runtime SimRuntime
	Device  SimDevice

	// ExtractorPath is the resolved extractor binary for the chosen mode.
	ExtractorPath string

	// HostExtractorPath is the host-mode binary, kept so a fallback can
	// rebuild the context without re-resolving.
	HostExtractorPath string

	// SystemRoot is the filesystem root the libraries are read from:
	// "/" on the host, or the simulator runtime root.
	SystemRoot string

	OutputRoot  string
	StagingRoot string

	SkipExisting bool
	Layout       LayoutMode
	SharedCache  bool

	// RuntimeFallback lets the aggregator supplement static records
	// with classes visible to the live runtime.
	RuntimeFallback bool

	Selection Selection

	Verbose     bool
	VerboseSkip bool
	Profile     bool

	// TraceInterface turns on event tracing inside the extractor's
	// module-interface builder.
	TraceInterface bool

	Started time.Time
}

// WithHostMode returns a copy of the context rebuilt for host
// execution. The platform and its library root are unchanged, since the
// host process reads the simulator runtime's files directly, but the device
// is dropped and the extractor switches to the host binary.
func (c DumpContext) WithHostMode() DumpContext {
	c.Mode = ModeHost
	c.Device = SimDevice{}
	c.ExtractorPath = c.HostExtractorPath
	return c
}
