// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage owns the output tree: the exclusive run lock, the
// per-run staging directory, relocation of staged results into the
// final tree, layout normalization, and the failures ledger.
package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mlehane/sdkdump/pkg/types"
)

const lockFileName = ".sdkdump.lock"

// Lock is the mandatory mutual-exclusion token for an output directory.
// It lives for exactly one run.
type Lock struct {
	path string
}

// AcquireLock takes the output directory's exclusive lock without
// blocking. Contention is immediately fatal: a LockedError carrying the
// owner line from the existing lock file, never a silent wait.
func AcquireLock(outputRoot string) (*Lock, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(outputRoot, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			owner := ""
			if data, readErr := os.ReadFile(path); readErr == nil {
				owner = strings.TrimSpace(string(data))
			}
			return nil, &types.LockedError{Dir: outputRoot, Owner: owner}
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}

	_, werr := fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing lock file: %w", firstErr(werr, cerr))
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
