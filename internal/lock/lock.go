package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/procexpect/internal/fileutil"
	"github.com/giantswarm/procexpect/internal/sentinel"
)

// ErrEmptyPath is returned by Acquire for an empty lock path.
const ErrEmptyPath = sentinel.Error("lock path must not be empty")

// retryInterval is the interval between consecutive attempts to acquire
// the lock while another process holds it.
const retryInterval = 50 * time.Millisecond

// Lock is an acquired exclusive file lock. Release it with Release.
type Lock struct {
	fl  *flock.Flock
	log *slog.Logger
}

// Acquire takes an exclusive lock on path, creating the file and its parent
// directory if needed. It blocks until the lock is free or ctx is done.
func Acquire(ctx context.Context, path string, logger *slog.Logger) (*Lock, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, retryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", path, ctx.Err())
		}
		return nil, fmt.Errorf("acquiring lock %s: lock not acquired", path)
	}

	logger.Debug("lock acquired", "path", path)
	return &Lock{fl: fl, log: logger}, nil
}

// TryAcquire is like Acquire but returns (nil, nil) at once when another
// process holds the lock.
func TryAcquire(path string, logger *slog.Logger) (*Lock, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, nil
	}
	return &Lock{fl: fl, log: logger}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks and closes the lock file. The file itself stays on disk:
// removing it could invalidate a lock another process has just taken on the
// same path. Release on a nil Lock is a no-op, and errors are only logged.
func (l *Lock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	if err := l.fl.Close(); err != nil {
		l.log.Debug("failed to release lock", "path", l.fl.Path(), "err", err)
	}
	l.fl = nil
}
