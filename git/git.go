package git

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/ciotto/telegram-bot-deploy/fs"
	"github.com/ciotto/telegram-bot-deploy/git/internal/auth"
	"github.com/ciotto/telegram-bot-deploy/git/internal/fsbridge"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."

	// DefaultRemoteName is the remote every operation talks to.
	DefaultRemoteName = "origin"
)

// AuthProvider resolves authentication methods for git operations.
type AuthProvider interface {
	// Method returns the appropriate transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed/available for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// NewSSHAuth returns a provider that authenticates SSH remotes with the
// private key at keyPath, or with the SSH agent when that file is missing.
// knownHostsPath, when set, restricts accepted server keys.
//
//nolint:ireturn // callers only need the AuthProvider behaviour.
func NewSSHAuth(keyPath, knownHostsPath string) AuthProvider {
	return auth.NewDeployKeyProvider(keyPath).WithKnownHosts(knownHostsPath)
}

// Options configures where the repository lives and how it is reached.
type Options struct {
	// FS is the REQUIRED billy-backed filesystem holding the repository.
	FS fs.Filesystem

	// Workdir is the path within FS for the worktree root.
	// Defaults to "." (current directory in FS).
	Workdir string

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Auth is an optional provider that resolves per-URL AuthMethod.
	// If nil, operations run without credentials.
	Auth AuthProvider
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidRef, "FS is required")
	}
	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}
	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}
	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// Repo is a non-bare repository with its worktree.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	options  Options
}

// Open opens the existing repository at opts.Workdir.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}
	opts.applyDefaults()

	worktreeFS, storage, err := fsbridge.Scope(opts.FS, opts.Workdir, opts.StorerCacheSize)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, WrapErrorf(err, "failed to open repository at %s", opts.Workdir)
	}

	return newRepo(repo, opts)
}

// Clone clones remoteURL into opts.Workdir with all branches and tags.
//
// Context timeout/cancellation is honored during the clone operation.
func Clone(ctx context.Context, remoteURL string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}
	opts.applyDefaults()

	worktreeFS, storage, err := fsbridge.Scope(opts.FS, opts.Workdir, opts.StorerCacheSize)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{
		URL:        remoteURL,
		RemoteName: DefaultRemoteName,
		Tags:       git.AllTags,
	}
	if opts.Auth != nil {
		authMethod, authErr := opts.Auth.Method(remoteURL)
		if authErr != nil {
			return nil, WrapErrorf(ErrAuthRequired, "failed to get authentication method: %v", authErr)
		}
		cloneOpts.Auth = authMethod
	}

	repo, err := git.CloneContext(ctx, storage, worktreeFS, cloneOpts)
	if err != nil {
		return nil, WrapErrorf(err, "failed to clone %s", remoteURL)
	}

	return newRepo(repo, opts)
}

func newRepo(repo *git.Repository, opts *Options) (*Repo, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}
	return &Repo{
		repo:     repo,
		worktree: worktree,
		options:  *opts,
	}, nil
}
