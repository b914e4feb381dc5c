// Package fsbridge connects the project's fs.Filesystem to go-git, which
// reads and writes repositories through go-billy.
package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/ciotto/telegram-bot-deploy/fs"
	fsb "github.com/ciotto/telegram-bot-deploy/fs/billy"
)

// MinCacheSize is used when a non-positive object cache size is requested.
const MinCacheSize = 100

// ToBillyFilesystem unwraps a billy-backed fs.Filesystem.
// Any other implementation is rejected.
//
//nolint:ireturn // go-git consumes the billy interface directly.
func ToBillyFilesystem(fsys fs.Filesystem) (billy.Filesystem, error) {
	billyFS, ok := fsys.(*fsb.FS)
	if !ok {
		return nil, fmt.Errorf("filesystem must be a billy.FS from fs/billy package, got %T", fsys)
	}
	return billyFS.Raw(), nil
}

// NewStorage creates git object storage with an LRU object cache.
func NewStorage(billyFS billy.Filesystem, cacheSize int) *filesystem.Storage {
	if cacheSize <= 0 {
		cacheSize = MinCacheSize
	}
	objCache := cache.NewObjectLRU(cache.FileSize(cacheSize))
	return filesystem.NewStorage(billyFS, objCache)
}

// Scope returns the worktree filesystem rooted at workdir and the storage
// kept in its .git directory.
//
//nolint:ireturn // go-git consumes the billy interface directly.
func Scope(fsys fs.Filesystem, workdir string, cacheSize int) (billy.Filesystem, *filesystem.Storage, error) {
	billyFS, err := ToBillyFilesystem(fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("filesystem conversion failed: %w", err)
	}

	worktreeFS, err := billyFS.Chroot(workdir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to chroot to workdir %q: %w", workdir, err)
	}

	dotGitFS, err := worktreeFS.Chroot(".git")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access .git directory: %w", err)
	}

	return worktreeFS, NewStorage(dotGitFS, cacheSize), nil
}
