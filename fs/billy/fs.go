// Package billy implements fs.Filesystem on top of go-billy, which is also the
// storage layer go-git reads and writes repositories through.
package billy

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/ciotto/telegram-bot-deploy/fs"
)

var _ fs.Filesystem = (*FS)(nil)

// FS implements fs.Filesystem using go-billy.
type FS struct {
	fs billy.Filesystem
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("billy: mkdirall %q: %w", path, err)
	}
	return nil
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("billy: readfile %q: %w", path, err)
	}
	return bts, nil
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, path, data, perm); err != nil {
		return fmt.Errorf("billy: writefile %q: %w", path, err)
	}
	return nil
}

// Remove implements Filesystem.Remove.
func (b *FS) Remove(path string) error {
	if err := b.fs.Remove(path); err != nil {
		return fmt.Errorf("billy: remove %q: %w", path, err)
	}
	return nil
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(path string) (os.FileInfo, error) {
	info, err := b.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", path, err)
	}
	return info, nil
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // go-git storage consumes the billy interface directly.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

// NewFS wraps an existing go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{fs: fsys}
}

// NewInMemoryFS creates a new in-memory filesystem.
func NewInMemoryFS() *FS {
	return &FS{fs: memfs.New()}
}

// NewOSFS creates an OS filesystem rooted at path.
func NewOSFS(path string) *FS {
	return &FS{fs: osfs.New(path)}
}
