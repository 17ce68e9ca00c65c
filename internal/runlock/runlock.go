// Package runlock serialises download runs that share a cache directory.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside the guarded directory.
const FileName = "subseek.lock"

const retryDelay = 250 * time.Millisecond

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("another subseek run is using this cache directory")

// Lock is a held advisory lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock in dir without waiting.
func Acquire(dir string) (*Lock, error) {
	l, err := newLock(dir)
	if err != nil {
		return nil, err
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, l.path)
	}
	return l, nil
}

// Wait blocks until the lock in dir is free or ctx is done.
func Wait(ctx context.Context, dir string) (*Lock, error) {
	l, err := newLock(dir)
	if err != nil {
		return nil, err
	}
	ok, err := l.lock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, l.path)
	}
	return l, nil
}

func newLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	return &Lock{path: path, lock: flock.New(path)}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release unlocks. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
