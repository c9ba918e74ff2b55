// SPDX-License-Identifier: Apache-2.0

// Package plock provides a file based mutual exclusion lock for provisioning
// runs. Reconciliation reads host state and then mutates it, so two runs
// against the same host must never overlap; callers hold the lock for the
// duration of the whole run.
package plock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/joomcode/errorx"
)

var (
	Errors         = errorx.NewNamespace("nodeprep.plock")
	ErrLockHeld    = Errors.NewType("lock_held")
	ErrLockFailure = Errors.NewType("lock_failure")
)

// RunLock is a non-blocking advisory lock backed by a lock file.
type RunLock struct {
	fl *flock.Flock
}

// Acquire takes the lock at the given path without blocking. It fails with
// ErrLockHeld when another process already holds it.
func Acquire(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ErrLockFailure.Wrap(err, "failed to create lock directory")
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, ErrLockFailure.Wrap(err, "failed to acquire lock %s", path)
	}
	if !ok {
		return nil, ErrLockHeld.New("another provisioning run holds %s", path)
	}

	return &RunLock{fl: fl}, nil
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *RunLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return ErrLockFailure.Wrap(err, "failed to release lock %s", l.fl.Path())
	}
	return nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.fl.Path()
}
