// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stager owns the locked output tree and the run's staging directory.
// Extraction writes land only under staging; nothing there is final
// output until Relocate moves it.
type Stager struct {
	outputRoot  string
	stagingRoot string
	lock        *Lock
}

// New locks outputRoot and creates the run's staging directory inside
// it. The directory name carries the process id and a timestamp so an
// orphan left by a crashed run is attributable and cannot collide with
// a later run.
func New(outputRoot string) (*Stager, error) {
	lock, err := AcquireLock(outputRoot)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf(".staging-%d-%s", os.Getpid(), time.Now().Format("20060102-150405"))
	stagingRoot := filepath.Join(outputRoot, name)
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		lock.Release()
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	return &Stager{outputRoot: outputRoot, stagingRoot: stagingRoot, lock: lock}, nil
}

// OutputRoot returns the final tree root.
func (s *Stager) OutputRoot() string { return s.outputRoot }

// StagingRoot returns the run's staging directory.
func (s *Stager) StagingRoot() string { return s.stagingRoot }

// ItemDir returns the staging path for one item, creating it.
func (s *Stager) ItemDir(rel string) (string, error) {
	dir := filepath.Join(s.stagingRoot, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating staging item %s: %w", rel, err)
	}
	return dir, nil
}

// Discard removes an item's staged output without touching the final
// tree. A downgraded bulk attempt drops its partial writes this way
// before the same paths are restaged item by item.
func (s *Stager) Discard(rel string) error {
	if err := os.RemoveAll(filepath.Join(s.stagingRoot, rel)); err != nil {
		return fmt.Errorf("discarding staged %s: %w", rel, err)
	}
	return nil
}

// Close discards whatever is still staged and releases the lock. It
// runs on every exit path, including unwinding after a fatal error, so
// a finished run never leaves the output directory locked.
func (s *Stager) Close() error {
	rmErr := os.RemoveAll(s.stagingRoot)
	relErr := s.lock.Release()
	return firstErr(rmErr, relErr)
}
