package billy

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// HostFS is a billy.Filesystem that resolves paths exactly like the process
// does: absolute paths as-is, relative paths against the working directory.
// Configured locations such as the repository path and the pid marker are
// used unmodified.
type HostFS struct {
	osfs.ChrootOS
}

// Chroot returns a new filesystem rooted at the provided path.
//
//nolint:ireturn // billy.Filesystem is an interface; signature is dictated by upstream.
func (h *HostFS) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path), nil
}

// Root returns the root path for this filesystem.
func (h *HostFS) Root() string {
	return ""
}

// NewHostFS creates the filesystem the agent runs against in production.
func NewHostFS() *FS {
	return &FS{fs: &HostFS{}}
}
