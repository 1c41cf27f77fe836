// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package environ

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mlehane/sdkdump/internal/shell"
	"github.com/mlehane/sdkdump/pkg/types"
)

// defaultDeviceType is used when a device must be created from scratch
// and no override is configured.
const defaultDeviceType = "iPhone 15"

// Resolver picks the platform, execution mode, and (for simulator runs)
// a concrete runtime and booted device.
type Resolver struct {
	ctl *DeviceControl
}

// NewResolver returns a Resolver backed by the given runner.
func NewResolver(run shell.Runner) *Resolver {
	return &Resolver{ctl: NewDeviceControl(run)}
}

// Control exposes the underlying device-control wrapper, used by the
// orchestrator for forced reboots.
func (r *Resolver) Control() *DeviceControl {
	return r.ctl
}

// Setup is the resolved execution environment a DumpContext is built
// from.
type Setup struct {
	Platform     types.Platform
	Mode         types.ExecMode
	ModeExplicit bool
	Runtime      types.SimRuntime
	Device       types.SimDevice
	SystemRoot   string
}

// Resolve decides platform and execution mode from cfg and the resolved
// extractor binaries, then ensures a usable booted device when simulator
// execution is chosen. hostBin and simBin are empty when the respective
// binary was not found.
func (r *Resolver) Resolve(ctx context.Context, cfg types.DumpConfig, hostBin, simBin string) (Setup, error) {
	var s Setup

	switch cfg.Platform {
	case "", string(types.PlatformSimulator):
		s.Platform = types.PlatformSimulator
	case string(types.PlatformHost):
		s.Platform = types.PlatformHost
	default:
		return s, &types.InvalidTargetError{Target: cfg.Platform, Flag: "platform", Reason: "unknown platform"}
	}

	runtimes, rtErr := r.ctl.Runtimes(ctx)

	switch cfg.Mode {
	case string(types.ModeHost):
		s.Mode, s.ModeExplicit = types.ModeHost, true
	case string(types.ModeSimulator):
		s.Mode, s.ModeExplicit = types.ModeSimulator, true
	case "":
		mode, err := chooseMode(s.Platform, len(runtimes) > 0 && rtErr == nil, hostBin, simBin)
		if err != nil {
			return s, err
		}
		s.Mode = mode
	default:
		return s, &types.InvalidTargetError{Target: cfg.Mode, Flag: "mode", Reason: "unknown execution mode"}
	}

	if s.Platform == types.PlatformHost {
		s.SystemRoot = "/"
		if s.Mode == types.ModeSimulator {
			return s, &types.InvalidTargetError{Target: cfg.Mode, Flag: "mode", Reason: "simulator execution requires the simulator platform"}
		}
		return s, nil
	}

	// Simulator platform: a runtime is needed for the library tree even
	// when the extractor itself runs on the host.
	if rtErr != nil {
		return s, fmt.Errorf("enumerating runtimes: %w", rtErr)
	}
	rt, err := pickRuntime(runtimes, cfg.RuntimeVersion)
	if err != nil {
		return s, err
	}
	s.Runtime = rt
	s.SystemRoot = rt.Root

	if s.Mode != types.ModeSimulator {
		return s, nil
	}

	dev, err := r.resolveDevice(ctx, rt, cfg.Device, cfg.DeviceType)
	if err != nil {
		return s, err
	}
	dev, err = r.ctl.Boot(ctx, dev, false)
	if err != nil {
		return s, err
	}
	s.Device = dev
	return s, nil
}

// chooseMode auto-selects the execution mode. The host platform always
// executes on the host; the extractor cannot be spawned into a device
// that does not hold the libraries being dumped. For the simulator
// platform: spawned-in-simulator when any runtime is enumerable and a
// simulator-mode binary exists, else in-process host when its binary
// exists, else whichever binary exists.
func chooseMode(platform types.Platform, runtimesAvailable bool, hostBin, simBin string) (types.ExecMode, error) {
	if platform == types.PlatformHost {
		if hostBin == "" {
			return "", &types.EnvUnavailableError{Reason: "no host-mode extractor binary found"}
		}
		return types.ModeHost, nil
	}
	switch {
	case runtimesAvailable && simBin != "":
		return types.ModeSimulator, nil
	case hostBin != "":
		return types.ModeHost, nil
	case simBin != "":
		return types.ModeSimulator, nil
	default:
		return "", &types.EnvUnavailableError{Reason: "no extractor binary found for any execution mode"}
	}
}

// pickRuntime selects the requested runtime version, or the highest
// installed version when none is requested. Both misses are definitive:
// switching execution mode cannot install a runtime.
func pickRuntime(runtimes []types.SimRuntime, version string) (types.SimRuntime, error) {
	if len(runtimes) == 0 {
		return types.SimRuntime{}, &types.EnvUnavailableError{Reason: "no simulator runtimes installed"}
	}
	if version != "" {
		for _, rt := range runtimes {
			if rt.Version == version {
				return rt, nil
			}
		}
		return types.SimRuntime{}, &types.EnvUnavailableError{Reason: "runtime version " + version + " is not installed"}
	}
	best := runtimes[0]
	for _, rt := range runtimes[1:] {
		if compareVersions(rt.Version, best.Version) > 0 {
			best = rt
		}
	}
	return best, nil
}

// cloneName is the deterministic name of the dedicated device sdkdump
// creates for a runtime, so later runs find and reuse it.
func cloneName(rt types.SimRuntime) string {
	return "sdkdump-" + rt.Version
}

// resolveDevice finds or creates the device a simulator run uses. An
// explicit query matches UDID first, then name, both case-insensitively,
// and fails when nothing matches. Without a query the dedicated clone is
// reused, created by cloning the first base device, or created from the
// preferred device type when the runtime has no devices at all.
func (r *Resolver) resolveDevice(ctx context.Context, rt types.SimRuntime, query, deviceType string) (types.SimDevice, error) {
	devices, err := r.ctl.Devices(ctx, rt)
	if err != nil {
		return types.SimDevice{}, err
	}

	if query != "" {
		for _, dev := range devices {
			if strings.EqualFold(dev.UDID, query) {
				return dev, nil
			}
		}
		for _, dev := range devices {
			if strings.EqualFold(dev.Name, query) {
				return dev, nil
			}
		}
		return types.SimDevice{}, &types.EnvUnavailableError{Reason: "no device matches " + query}
	}

	name := cloneName(rt)
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}

	if len(devices) > 0 {
		return r.ctl.Clone(ctx, devices[0], name)
	}

	if deviceType == "" {
		deviceType = defaultDeviceType
	}
	dev, err := r.ctl.Create(ctx, name, deviceType, rt)
	if err != nil {
		return types.SimDevice{}, &types.EnvUnavailableError{Reason: fmt.Sprintf("no device creatable for runtime %s: %v", rt.Version, err)}
	}
	return dev, nil
}

// compareVersions orders dotted numeric versions ("17.4" < "17.10").
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

// FallbackEligible reports whether a setup or dispatch failure under
// auto-selected simulator mode should rebuild the run under host mode.
// Definitive environment errors are exempt: switching modes cannot fix
// them. An OS-level kill is exempt too, because its recovery is the
// split-mode downgrade, not a mode switch.
func FallbackEligible(err error, modeExplicit bool, hostBin string) bool {
	if err == nil || modeExplicit || hostBin == "" {
		return false
	}
	if types.IsEnvUnavailable(err) || types.IsKilled(err) {
		return false
	}
	return types.IsTransient(err)
}
