// Package scanlock provides the exclusive, scoped filesystem lock that
// guards a scan or reconcile run: only one such run may hold the lock for
// a given hot zone at a time, and a second attempt fails fast rather than
// blocking.
package scanlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned by Acquire when another process already holds the
// lock.
var ErrHeld = errors.New("scanlock: lock is held by another process")

// Lock is an exclusive, non-blocking file lock scoped to one named
// resource (e.g. "scan" or "reconcile") within a hot zone directory.
type Lock struct {
	fl   *flock.Flock
	path string
}

// New returns a Lock for the given name inside dir. The lock file itself
// is not created until Acquire is called.
func New(dir, name string) *Lock {
	path := filepath.Join(dir, fmt.Sprintf(".%s.lock", name))
	return &Lock{fl: flock.New(path), path: path}
}

// Acquire takes the lock without blocking. Returns ErrHeld if another
// process holds it.
func (l *Lock) Acquire() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("scanlock: acquire %s: %w", l.path, err)
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Release drops the lock. Safe to call even if Acquire failed.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("scanlock: release %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file's path, for diagnostics.
func (l *Lock) Path() string { return l.path }
