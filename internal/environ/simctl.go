// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package environ resolves where a dump runs: the platform whose
// libraries are read, the execution mode for the extractor, and, for
// simulator runs, a concrete runtime and booted device.
package environ

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mlehane/sdkdump/internal/shell"
	"github.com/mlehane/sdkdump/pkg/types"
)

const (
	xcrunBin  = "xcrun"
	simctlCmd = "simctl"

	// ChildEnvPrefix is the prefix simctl strips from environment
	// variables before exposing them to a spawned process.
	ChildEnvPrefix = "SIMCTL_CHILD_"
)

// DeviceControl wraps the simulator device-control tool.
type DeviceControl struct {
	run shell.Runner
}

// NewDeviceControl returns a DeviceControl backed by the given runner.
func NewDeviceControl(run shell.Runner) *DeviceControl {
	return &DeviceControl{run: run}
}

type runtimeListJSON struct {
	Runtimes []struct {
		Version     string `json:"version"`
		Build       string `json:"buildversion"`
		Identifier  string `json:"identifier"`
		RuntimeRoot string `json:"runtimeRoot"`
		IsAvailable bool   `json:"isAvailable"`
	} `json:"runtimes"`
}

type deviceListJSON struct {
	Devices map[string][]struct {
		Name        string `json:"name"`
		UDID        string `json:"udid"`
		State       string `json:"state"`
		IsAvailable bool   `json:"isAvailable"`
	} `json:"devices"`
}

// Runtimes lists the installed simulator runtimes, newest last, skipping
// unavailable ones.
func (d *DeviceControl) Runtimes(ctx context.Context) ([]types.SimRuntime, error) {
	out, err := d.run.Output(ctx, xcrunBin, simctlCmd, "list", "runtimes", "-j")
	if err != nil {
		return nil, fmt.Errorf("listing runtimes: %w", err)
	}
	var parsed runtimeListJSON
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("parsing runtime list: %w", err)
	}
	var runtimes []types.SimRuntime
	for _, rt := range parsed.Runtimes {
		if !rt.IsAvailable {
			continue
		}
		runtimes = append(runtimes, types.SimRuntime{
			Version:    rt.Version,
			Build:      rt.Build,
			Identifier: rt.Identifier,
			Root:       rt.RuntimeRoot,
		})
	}
	return runtimes, nil
}

// Devices lists the available devices belonging to one runtime.
func (d *DeviceControl) Devices(ctx context.Context, runtime types.SimRuntime) ([]types.SimDevice, error) {
	out, err := d.run.Output(ctx, xcrunBin, simctlCmd, "list", "devices", "-j")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	var parsed deviceListJSON
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("parsing device list: %w", err)
	}
	var devices []types.SimDevice
	for _, dev := range parsed.Devices[runtime.Identifier] {
		if !dev.IsAvailable {
			continue
		}
		devices = append(devices, types.SimDevice{
			Name:   dev.Name,
			UDID:   dev.UDID,
			Booted: dev.State == "Booted",
		})
	}
	return devices, nil
}

// Clone duplicates an existing device under a new name and returns the
// clone. The tool prints the new device's UDID on stdout.
func (d *DeviceControl) Clone(ctx context.Context, src types.SimDevice, name string) (types.SimDevice, error) {
	out, err := d.run.Output(ctx, xcrunBin, simctlCmd, "clone", src.UDID, name)
	if err != nil {
		return types.SimDevice{}, fmt.Errorf("cloning device %s: %w", src.Name, err)
	}
	return types.SimDevice{Name: name, UDID: strings.TrimSpace(out)}, nil
}

// Create makes a brand-new device of the given device type.
func (d *DeviceControl) Create(ctx context.Context, name, deviceType string, runtime types.SimRuntime) (types.SimDevice, error) {
	out, err := d.run.Output(ctx, xcrunBin, simctlCmd, "create", name, deviceType, runtime.Identifier)
	if err != nil {
		return types.SimDevice{}, fmt.Errorf("creating device %s: %w", name, err)
	}
	return types.SimDevice{Name: name, UDID: strings.TrimSpace(out)}, nil
}

// Boot boots the device. Booting is idempotent: a device already
// reported booted is left alone unless force is set, in which case it is
// shut down and booted again (the recovery for a stale session).
func (d *DeviceControl) Boot(ctx context.Context, dev types.SimDevice, force bool) (types.SimDevice, error) {
	if dev.Booted {
		if !force {
			return dev, nil
		}
		if err := d.run.Run(ctx, xcrunBin, simctlCmd, "shutdown", dev.UDID); err != nil {
			return dev, fmt.Errorf("shutting down device %s: %w", dev.Name, err)
		}
	}
	if err := d.run.Run(ctx, xcrunBin, simctlCmd, "boot", dev.UDID); err != nil {
		return dev, &types.TransientError{Reason: fmt.Sprintf("booting device %s: %v", dev.Name, err)}
	}
	dev.Booted = true
	return dev, nil
}

// SpawnArgv builds the argv that runs a command inside the device.
func SpawnArgv(dev types.SimDevice, argv []string) []string {
	out := []string{simctlCmd, "spawn", dev.UDID}
	return append(out, argv...)
}

// ChildEnv prefixes each "KEY=value" entry so simctl passes it through
// to the spawned child.
func ChildEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		out = append(out, ChildEnvPrefix+kv)
	}
	return out
}
