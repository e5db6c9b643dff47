package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the writer lock kept in every index directory.
const LockFile = ".writer.lock"

// writerLock is an exclusive cross-process lock on an index directory. The index
// manager assumes one writer per directory; the lock enforces it.
type writerLock struct {
	flock  *flock.Flock
	locked bool
}

func newWriterLock(dir string) *writerLock {
	return &writerLock{flock: flock.New(filepath.Join(dir, LockFile))}
}

// TryLock acquires the lock without blocking. It returns ErrSessionBusy when another
// process holds it.
func (l *writerLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrSessionBusy, l.flock.Path())
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *writerLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
