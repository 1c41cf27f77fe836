// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DumpConfig holds the user-facing settings for a dump run, populated
// from flags, the config file, and SDKDUMP_* environment overrides before
// any resolution step runs.
type DumpConfig struct {
	// Platform selects host or simulator libraries ("" = default,
	// simulator).
	Platform string `json:"platform" yaml:"platform"`

	// Mode selects the execution mode ("" = auto-select).
	Mode string `json:"mode" yaml:"mode"`

	// RuntimeVersion pins a simulator OS version ("" = latest installed).
	RuntimeVersion string `json:"runtime_version" yaml:"runtime_version"`

	// Device matches a simulator device by UDID or name ("" = use or
	// create the dedicated clone).
	Device string `json:"device" yaml:"device"`

	// DeviceType is the device type used when a device must be created
	// from scratch.
	DeviceType string `json:"device_type" yaml:"device_type"`

	// OutputDir is the output tree root.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Force replaces existing output instead of merging around it.
	Force bool `json:"force" yaml:"force"`

	// SkipExisting skips items that already have artifacts on disk.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing"`

	// Layout is "suffixed" or "stripped".
	Layout string `json:"layout" yaml:"layout"`

	// SharedCache enables shared-cache lookup for stripped on-disk images.
	SharedCache bool `json:"shared_cache" yaml:"shared_cache"`

	// Nested enables nested-bundle discovery inside dumped frameworks.
	Nested bool `json:"nested" yaml:"nested"`

	// RuntimeFallback supplements static records with classes visible
	// to the live runtime.
	RuntimeFallback bool `json:"runtime_fallback" yaml:"runtime_fallback"`

	Verbose     bool `json:"verbose" yaml:"verbose"`
	VerboseSkip bool `json:"verbose_skip" yaml:"verbose_skip"`
	Profile     bool `json:"profile" yaml:"profile"`

	// TraceInterface enables event tracing inside the module-interface
	// builder of the extractor.
	TraceInterface bool `json:"trace_interface" yaml:"trace_interface"`
}

// RunSummary is the metadata record written to the output root once a run
// completes successfully.
type RunSummary struct {
	Timestamp   string `yaml:"timestamp"`
	Platform    string `yaml:"platform"`
	Version     string `yaml:"version,omitempty"`
	Build       string `yaml:"build,omitempty"`
	Layout      string `yaml:"layout"`
	HeaderCount int    `yaml:"header_count"`
	Toolchain   string `yaml:"toolchain,omitempty"`
}
