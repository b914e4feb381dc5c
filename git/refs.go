package git

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5/plumbing"
)

// RemoteBranch returns the commit id at origin/<branch>. It returns an error
// wrapping ErrBranchMissing when the remote-tracking ref does not exist.
func (r *Repo) RemoteBranch(ctx context.Context, branch string) (string, error) {
	if branch == "" {
		return "", WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	name := plumbing.NewRemoteReferenceName(DefaultRemoteName, branch)
	ref, err := r.repo.Reference(name, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", WrapErrorf(ErrBranchMissing, "missing %s", name.Short())
	}
	if err != nil {
		return "", WrapErrorf(err, "failed to read %s", name.Short())
	}
	return ref.Hash().String(), nil
}

// Head returns the commit id currently checked out.
func (r *Repo) Head(ctx context.Context) (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "failed to resolve HEAD: %v", err)
	}
	return ref.Hash().String(), nil
}
