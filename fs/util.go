package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// GetAbs returns path unchanged when absolute, otherwise resolved against
// the working directory.
func GetAbs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

// Exists reports whether path exists on the host filesystem.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
}
