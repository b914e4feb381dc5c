package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
)

// fetchRefSpecs mirrors every remote branch and force-updates local tags,
// so a moved tag on the remote replaces the local one.
var fetchRefSpecs = []config.RefSpec{
	config.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", DefaultRemoteName)),
	"+refs/tags/*:refs/tags/*",
}

// Fetch updates remote-tracking branches and tags from origin. Nothing new
// to fetch is not an error.
//
// Context timeout/cancellation is honored during the fetch operation.
func (r *Repo) Fetch(ctx context.Context) error {
	fetchOpts := &git.FetchOptions{
		RemoteName: DefaultRemoteName,
		RefSpecs:   fetchRefSpecs,
		Tags:       git.AllTags,
		Force:      true,
	}

	remoteURL, err := r.RemoteURL()
	if err != nil {
		return err
	}

	if r.options.Auth != nil {
		authMethod, authErr := r.options.Auth.Method(remoteURL)
		if authErr != nil {
			return WrapErrorf(ErrAuthRequired, "failed to get authentication method: %v", authErr)
		}
		fetchOpts.Auth = authMethod
	}

	err = r.repo.FetchContext(ctx, fetchOpts)
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrRemoteNotFound):
		return WrapError(ErrNoRemote, "remote not found")
	default:
		return WrapErrorf(err, "failed to fetch from %s", remoteURL)
	}
}

// RemoteURL returns the first configured URL of origin.
func (r *Repo) RemoteURL() (string, error) {
	remote, err := r.repo.Remote(DefaultRemoteName)
	if err != nil {
		return "", WrapErrorf(ErrNoRemote, "remote %s: %v", DefaultRemoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", WrapErrorf(ErrNoRemote, "remote %s has no URL", DefaultRemoteName)
	}
	return urls[0], nil
}
