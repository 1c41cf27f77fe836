// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DiagnosticTail is how many trailing output lines an ItemResult keeps
// from a failed extraction.
const DiagnosticTail = 12

// ItemResult is the outcome of one per-item extraction attempt.
type ItemResult struct {
	// Item is the target the attempt was for, relative to its scan root
	// (e.g. "PrivateFrameworks/SafariShared.framework").
	Item string

	// Err is nil on success.
	Err error

	// Diagnostics holds the last DiagnosticTail lines of extractor
	// output when the attempt failed.
	Diagnostics []string

	// Killed marks the extractor process as killed by the OS, which is
	// treated as resource exhaustion rather than an ordinary failure and
	// selects the narrower split-mode retry.
	Killed bool
}

// BatchResult summarizes one batch of per-item attempts.
type BatchResult struct {
	Dumped  int
	Skipped int
	Failed  []ItemResult
}

// Total returns the number of items processed.
func (r BatchResult) Total() int {
	return r.Dumped + r.Skipped + len(r.Failed)
}

// HasFailures reports whether any item failed. A batch with failures
// suppresses whole-category bulk relocation; per-item relocations that
// already happened are preserved.
func (r BatchResult) HasFailures() bool {
	return len(r.Failed) > 0
}
