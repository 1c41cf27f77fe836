// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package shell runs external commands behind a small interface so the
// rest of sdkdump can be tested with a recording double. The same shape
// serves extractor subprocesses, simulator device control, and toolchain
// queries.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
)

// killedMarker is the log line an OS-level kill of a child leaves in its
// output. Detecting it (or a signal-terminated wait status) distinguishes
// resource exhaustion from an ordinary failing exit.
const killedMarker = "Killed: 9"

// Result describes a streamed command's terminal state.
type Result struct {
	// Tail holds the last lines of combined output, newest last.
	Tail []string

	// Killed reports that the process died from an OS-level kill rather
	// than exiting on its own.
	Killed bool
}

// Runner executes external commands.
type Runner interface {
	// LookPath reports whether file is an executable on PATH and returns
	// its resolved location.
	LookPath(file string) (string, error)

	// Output runs the command and captures its stdout. A non-zero exit
	// is an error; its stderr rides along in the error chain and can be
	// recovered with DiagnosticTail.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// Run runs the command and checks its exit status. Output is
	// discarded.
	Run(ctx context.Context, name string, args ...string) error

	// Stream runs the command, forwarding combined output to w, keeping
	// the last tailLen lines, and detecting OS-level kills. extraEnv
	// entries ("KEY=value") are appended to the inherited environment.
	Stream(ctx context.Context, w io.Writer, tailLen int, extraEnv []string, name string, args ...string) (Result, error)
}

// activeChild holds the pid of the most recently started streamed child,
// or 0. It is written only by Stream and read by the signal forwarder, so
// a single atomic slot is sufficient.
var activeChild atomic.Int64

// ForwardSignal delivers sig to the active streamed child, if any. Safe
// to call from the signal-handling goroutine; it performs no allocation
// beyond the Signal call itself.
func ForwardSignal(sig os.Signal) {
	pid := activeChild.Load()
	if pid == 0 {
		return
	}
	if proc, err := os.FindProcess(int(pid)); err == nil {
		proc.Signal(sig)
	}
}

// DiagnosticTail returns the last n stderr lines carried by an
// exec.ExitError in err's chain. Captured (non-streamed) invocations
// report their diagnostics this way; a nil or unrelated error yields nil.
func DiagnosticTail(err error, n int) []string {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || len(exitErr.Stderr) == 0 {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(exitErr.Stderr), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// OSRunner is the production Runner backed by os/exec.
type OSRunner struct{}

func (OSRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (OSRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("running %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (OSRunner) Run(ctx context.Context, name string, args ...string) error {
	if err := exec.CommandContext(ctx, name, args...).Run(); err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

func (OSRunner) Stream(ctx context.Context, w io.Writer, tailLen int, extraEnv []string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	tail := newTailWriter(tailLen)
	out := io.MultiWriter(w, tail)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("starting %s: %w", name, err)
	}
	activeChild.Store(int64(cmd.Process.Pid))
	err := cmd.Wait()
	activeChild.Store(0)

	res := Result{Tail: tail.Lines()}
	if tail.SawKillMarker() {
		res.Killed = true
	}
	if err != nil {
		// ExitCode() is -1 when the process was terminated by a signal.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
			res.Killed = true
		}
		return res, fmt.Errorf("running %s: %w", name, err)
	}
	return res, nil
}
