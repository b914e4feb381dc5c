package git

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
)

// Parents returns the parent ids of commit, first parent first.
func (r *Repo) Parents(ctx context.Context, commit string) ([]string, error) {
	hash, err := parseHash(commit)
	if err != nil {
		return nil, err
	}

	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, WrapErrorf(ErrResolveFailed, "commit %s: %v", commit, err)
	}

	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return parents, nil
}

// Author returns the author name of commit.
func (r *Repo) Author(ctx context.Context, commit string) (string, error) {
	hash, err := parseHash(commit)
	if err != nil {
		return "", err
	}

	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "commit %s: %v", commit, err)
	}
	return c.Author.Name, nil
}

func parseHash(commit string) (plumbing.Hash, error) {
	if !plumbing.IsHash(commit) {
		return plumbing.ZeroHash, WrapErrorf(ErrInvalidRef, "not a commit id: %q", commit)
	}
	return plumbing.NewHash(commit), nil
}
