/*
Package runlock prevents overlapping monitor runs with an exclusive lock file.
*/
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("another run is in progress")

type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := lockFile(path)
	if err != nil {
		return nil, err
	}
	return &Lock{path: path, file: f}, nil
}

func (l *Lock) Path() string {
	return l.path
}

// Release frees the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlockFile(l.path, l.file)
	l.file = nil
	return err
}
