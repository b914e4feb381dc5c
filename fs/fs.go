// Package fs defines the filesystem abstraction used by the deploy agent.
// Repository storage, the pid marker and environment checks all go through it,
// so tests can swap the host filesystem for an in-memory one.
package fs

import "os"

// Filesystem is the set of filesystem operations the agent needs.
type Filesystem interface {
	// Exists reports whether path exists. A missing path is not an error.
	Exists(path string) (bool, error)

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// ReadFile returns the full content of path.
	ReadFile(path string) ([]byte, error)

	// WriteFile truncates or creates path and writes data to it.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// Remove deletes a file or empty directory.
	Remove(path string) error

	// Stat returns file information for path.
	Stat(path string) (os.FileInfo, error)
}
