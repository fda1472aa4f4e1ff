// Package runlock enforces single-instance pipeline runs with a file lock.
//
// Batch runs mutate the document store and must not overlap; the lock lives
// next to the logs so operators can find it.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another bindery run holds the lock.
var ErrAlreadyRunning = errors.New("another bindery run is already in progress")

// Lock guards a pipeline run.
type Lock struct {
	path string
	lock *flock.Flock
}

// New constructs a lock stored inside dir.
func New(dir string) (*Lock, error) {
	if dir == "" {
		return nil, errors.New("lock directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, "bindery.lock")
	return &Lock{path: path, lock: flock.New(path)}, nil
}

// Acquire takes the lock without blocking.
func (l *Lock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

// Path reports the lock file location.
func (l *Lock) Path() string {
	return l.path
}
