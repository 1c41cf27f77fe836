// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// InvalidTargetError reports bad target syntax or an unusable flag value.
// Always fatal, and always raised before any side effect. Flag names the
// offending option when the bad value came from a flag rather than a
// positional target.
type InvalidTargetError struct {
	Target string
	Flag   string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	if e.Flag != "" {
		return fmt.Sprintf("invalid --%s value %q: %s", e.Flag, e.Target, e.Reason)
	}
	return fmt.Sprintf("invalid target %q: %s", e.Target, e.Reason)
}

// EnvUnavailableError reports a definitive environment problem: no
// simulator runtimes installed, a requested runtime version absent, no
// device creatable. Switching execution mode cannot fix these, so they
// are exempt from the host fallback.
type EnvUnavailableError struct {
	Reason string
}

func (e *EnvUnavailableError) Error() string {
	return "environment unavailable: " + e.Reason
}

// TransientError reports a recoverable execution failure: a stale
// simulator session, an unbooted device, or an OS-level kill of the
// extractor. The orchestrator recovers locally (reboot-and-retry, split
// mode, or mode fallback) instead of aborting the run.
type TransientError struct {
	Reason string

	// StaleSession marks the device session as unusable; the recovery is
	// one forced reboot and one retry.
	StaleSession bool

	// Killed marks an OS-level kill of a bulk extraction; the recovery
	// is a single downgrade to split mode.
	Killed bool
}

func (e *TransientError) Error() string {
	return "transient failure: " + e.Reason
}

// LockedError reports that another run holds the output directory lock.
// Fatal immediately, never retried.
type LockedError struct {
	Dir   string
	Owner string
}

func (e *LockedError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("output directory %s is locked (%s)", e.Dir, e.Owner)
	}
	return fmt.Sprintf("output directory %s is locked", e.Dir)
}

// IsInvalidTarget reports whether err is an InvalidTargetError.
func IsInvalidTarget(err error) bool {
	var e *InvalidTargetError
	return errors.As(err, &e)
}

// IsEnvUnavailable reports whether err is a definitive environment error.
func IsEnvUnavailable(err error) bool {
	var e *EnvUnavailableError
	return errors.As(err, &e)
}

// IsTransient reports whether err is a recoverable execution failure.
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// IsStaleSession reports whether err carries the stale-session marker.
func IsStaleSession(err error) bool {
	var e *TransientError
	return errors.As(err, &e) && e.StaleSession
}

// IsKilled reports whether err marks an OS-level kill.
func IsKilled(err error) bool {
	var e *TransientError
	return errors.As(err, &e) && e.Killed
}

// IsLocked reports whether err is a lock contention error.
func IsLocked(err error) bool {
	var e *LockedError
	return errors.As(err, &e)
}
