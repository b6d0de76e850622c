package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// staleLockAge is how old a lock file must be before it is presumed
// abandoned and broken.
const staleLockAge = 10 * time.Minute

// ErrStateLocked means another process holds the state lock.
var ErrStateLocked = errors.New("state is locked")

// LockError carries details about who holds the lock.
type LockError struct {
	Path string
	Info string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("state is locked by another process (lock file: %s, %s). "+
		"If the process is gone, remove the lock file manually", e.Path, e.Info)
}

func (e *LockError) Unwrap() error { return ErrStateLocked }

// Lock acquires a file lock on the state to prevent concurrent modifications.
// Locks older than ten minutes are treated as stale and broken.
func (m *Manager) Lock() error {
	lockPath := m.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
		} else {
			holder, _ := os.ReadFile(lockPath)
			return &LockError{Path: lockPath, Info: string(holder)}
		}
	}

	// O_EXCL closes the window between the stat above and creation.
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(lockPath)
			return &LockError{Path: lockPath, Info: string(holder)}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "pid=%d time=%s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return nil
}

// Unlock releases the state lock.
func (m *Manager) Unlock() error {
	if err := os.Remove(m.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *Manager) lockPath() string {
	return m.path + ".lock"
}
