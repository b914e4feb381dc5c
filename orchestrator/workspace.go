package orchestrator

import (
	"context"

	"github.com/ciotto/telegram-bot-deploy/fs"
	"github.com/ciotto/telegram-bot-deploy/git"
)

// GitWorkspace is a Workspace backed by a go-git checkout at Path on FS.
type GitWorkspace struct {
	FS   fs.Filesystem
	Path string
	Auth git.AuthProvider
}

var (
	_ Workspace  = (*GitWorkspace)(nil)
	_ Repository = (*git.Repo)(nil)
)

// Exists reports whether the checkout directory is present.
func (w *GitWorkspace) Exists(context.Context) (bool, error) {
	return w.FS.Exists(w.Path)
}

// Open opens the existing checkout.
//
//nolint:ireturn // the orchestrator works against the Repository interface.
func (w *GitWorkspace) Open(ctx context.Context) (Repository, error) {
	repo, err := git.Open(ctx, w.options())
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Clone clones remoteURL into Path.
//
//nolint:ireturn // the orchestrator works against the Repository interface.
func (w *GitWorkspace) Clone(ctx context.Context, remoteURL string) (Repository, error) {
	repo, err := git.Clone(ctx, remoteURL, w.options())
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (w *GitWorkspace) options() *git.Options {
	return &git.Options{
		FS:      w.FS,
		Workdir: w.Path,
		Auth:    w.Auth,
	}
}
