package git

import (
	"context"

	"github.com/go-git/go-git/v5"
)

// Reset moves the current branch, index and worktree to commit, discarding
// any local modification of tracked files.
func (r *Repo) Reset(ctx context.Context, commit string) error {
	hash, err := parseHash(commit)
	if err != nil {
		return err
	}

	if _, err := r.repo.CommitObject(hash); err != nil {
		return WrapErrorf(ErrResolveFailed, "commit %s: %v", commit, err)
	}

	err = r.worktree.Reset(&git.ResetOptions{
		Commit: hash,
		Mode:   git.HardReset,
	})
	if err != nil {
		return WrapErrorf(err, "failed to reset worktree to %s", commit)
	}
	return nil
}
