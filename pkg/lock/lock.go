// Package lock serialises batch runs across processes with an advisory file
// lock next to the batch file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("batch is locked by another process")

// FileLock is an exclusive lock on <target>.lock.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// ForFile returns the lock guarding target. The lock file sits beside it.
func ForFile(target string) *FileLock {
	path := target + ".lock"
	return &FileLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking and reports whether it did.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("creating lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.path, err)
	}
	l.locked = ok
	return ok, nil
}

// Acquire waits up to timeout for the lock, polling every retry interval.
// A zero timeout tries once and returns ErrLocked if the lock is held.
func (l *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		ok, err := l.TryLock()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok, err := l.flock.TryLockContext(lctx, 100*time.Millisecond)
	if err != nil && (ctx.Err() != nil || lctx.Err() == nil) {
		// Anything other than our own wait running out: a cancelled caller or
		// a lock file that cannot be opened.
		return fmt.Errorf("acquiring lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s (waited %v)", ErrLocked, l.path, timeout)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. It is safe to call on an unheld lock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

func (l *FileLock) Path() string { return l.path }

func (l *FileLock) Locked() bool { return l.locked }
