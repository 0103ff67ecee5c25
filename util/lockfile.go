package util

import (
	"context"
	"path/filepath"
	"time"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/gofrs/flock"
)

// Lockfile is an advisory file lock held by one build process at a time.
type Lockfile struct {
	*flock.Flock
}

// NewLockfile returns an unlocked lock on filename.
func NewLockfile(filename string) *Lockfile {
	return &Lockfile{
		flock.New(filename),
	}
}

// Unlock releases the lock if it is held.
func (lockfile *Lockfile) Unlock() error {
	if !lockfile.Locked() {
		return nil
	}

	return errors.WithStackTrace(lockfile.Flock.Unlock())
}

// Lock tries to take the lock up to maxAttempts times, waiting retryDelay between attempts.
func (lockfile *Lockfile) Lock(ctx context.Context, maxAttempts int, retryDelay time.Duration) error {
	for attempt := 1; ; attempt++ {
		locked, err := lockfile.TryLock()
		if err != nil {
			return errors.WithStackTrace(err)
		}

		if locked {
			return nil
		}

		if attempt >= maxAttempts {
			return errors.Errorf("unable to lock file %q, another build appears to be running", lockfile.Path())
		}

		select {
		case <-ctx.Done():
			return errors.New(ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}

// AcquireLockfile creates the lock and takes it.
func AcquireLockfile(ctx context.Context, filename string, maxAttempts int, retryDelay time.Duration) (*Lockfile, error) {
	lockfile := NewLockfile(filename)

	if err := EnsureDirectory(filepath.Dir(filename)); err != nil {
		return nil, err
	}

	if err := lockfile.Lock(ctx, maxAttempts, retryDelay); err != nil {
		return nil, err
	}

	return lockfile, nil
}
