package staging

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the workspace lock.
var ErrLocked = errors.New("another build for this spec is in progress")

// Lock is an advisory, per-spec-identity file lock.
type Lock struct {
	fl *flock.Flock
}

// Lock acquires the workspace lock without blocking. A second build for the
// same spec identity fails fast with ErrLocked.
func (w *Workspace) Lock() (*Lock, error) {
	if err := w.EnsureDir(); err != nil {
		return nil, err
	}
	fl := flock.New(w.LockPath())
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", w.LockPath(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", w.Name, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Unlock releases the lock. Safe to call on a nil Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
