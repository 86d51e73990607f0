//go:build !unix

package runlock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return f, nil
}

func unlockFile(path string, f *os.File) error {
	f.Close()
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
