// Package orchestrator runs one deployment cycle: make sure the repository is
// present, fetch the remote, find the newest release tag on the tracked
// branch and, when it is not what is checked out, deploy it through the
// release pipeline.
package orchestrator

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/git"
	"github.com/ciotto/telegram-bot-deploy/pipeline"
	"github.com/ciotto/telegram-bot-deploy/version"
)

// Outcome is how a cycle ended when it did not fail.
type Outcome int

const (
	// UpToDate means the newest tag is already checked out.
	UpToDate Outcome = iota
	// NoTag means the tracked branch has no tagged ancestor yet.
	NoTag
	// Deployed means a release went through every gate.
	Deployed
)

func (o Outcome) String() string {
	switch o {
	case UpToDate:
		return "up-to-date"
	case NoTag:
		return "no-tag"
	case Deployed:
		return "deployed"
	default:
		return "unknown"
	}
}

// Repository is the set of version control operations a cycle needs.
type Repository interface {
	version.CommitGraph
	Head(ctx context.Context) (string, error)
	Fetch(ctx context.Context) error
	Tags(ctx context.Context) ([]version.Tag, error)
	RemoteBranch(ctx context.Context, branch string) (string, error)
	Reset(ctx context.Context, commit string) error
}

// Workspace gives access to the local checkout, cloning it when needed.
type Workspace interface {
	Exists(ctx context.Context) (bool, error)
	Open(ctx context.Context) (Repository, error)
	Clone(ctx context.Context, remoteURL string) (Repository, error)
}

// Pipeline deploys the checked out release.
type Pipeline interface {
	Run(ctx context.Context, rc *pipeline.ReleaseContext) error
}

// Settings are the per-cycle options.
type Settings struct {
	RepoURL     string
	Branch      string
	Force       bool
	MinCoverage int
}

// Orchestrator runs deployment cycles.
type Orchestrator struct {
	settings  Settings
	workspace Workspace
	pipeline  Pipeline
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator.
func New(settings Settings, workspace Workspace, p Pipeline, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings:  settings,
		workspace: workspace,
		pipeline:  p,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one cycle. The release is skipped when its commit is already
// checked out, unless forced. Fatal configuration problems are coded
// CodeInvalidConfig; gate failures come back from the pipeline as
// CodeExecutionFailed.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	repo, err := o.checkout(ctx)
	if err != nil {
		return 0, err
	}

	head, err := repo.Head(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeIO, "failed to read current checkout")
	}
	oldVersion, err := o.describe(ctx, repo, head)
	if err != nil {
		return 0, err
	}

	o.logger.InfoContext(ctx, "fetching remote", "url", o.settings.RepoURL)
	if err := repo.Fetch(ctx); err != nil {
		return 0, classifyGitError(err, "failed to fetch remote")
	}

	tags, err := repo.Tags(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeIO, "failed to list tags")
	}
	index := version.NewTagIndex(tags)
	o.logger.DebugContext(ctx, "known tags", "tags", index.Names())

	tip, err := repo.RemoteBranch(ctx, o.settings.Branch)
	if err != nil {
		return 0, classifyGitError(err, "failed to resolve tracked branch")
	}

	target, err := version.FindLatestTag(ctx, repo, tip, index)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeIO, "failed to walk branch history")
	}
	if target == nil {
		o.logger.InfoContext(ctx, "no tags on branch", "branch", o.settings.Branch)
		return NoTag, nil
	}

	if target.Commit == head && !o.settings.Force {
		o.logger.InfoContext(ctx, "repository up to date", "version", target.Name)
		return UpToDate, nil
	}

	o.logger.InfoContext(ctx, "deploying release",
		"version", target.Name, "old_version", oldVersion, "author", target.Author, "force", o.settings.Force)
	if err := repo.Reset(ctx, target.Commit); err != nil {
		return 0, errors.WrapWithContext(err, errors.CodeIO, "failed to check out release",
			map[string]any{"version": target.Name})
	}

	rc := &pipeline.ReleaseContext{
		OldVersion:  oldVersion,
		Version:     target.Name,
		Author:      target.Author,
		MinCoverage: o.settings.MinCoverage,
	}
	if err := o.pipeline.Run(ctx, rc); err != nil {
		return 0, err
	}
	return Deployed, nil
}

// checkout opens the local repository, cloning it first when the path does
// not exist.
func (o *Orchestrator) checkout(ctx context.Context) (Repository, error) {
	exists, err := o.workspace.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to inspect repository path")
	}

	if exists {
		repo, err := o.workspace.Open(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIO, "failed to open repository")
		}
		return repo, nil
	}

	if o.settings.RepoURL == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "missing repository URL")
	}
	o.logger.InfoContext(ctx, "cloning repository", "url", o.settings.RepoURL)
	repo, err := o.workspace.Clone(ctx, o.settings.RepoURL)
	if err != nil {
		return nil, classifyGitError(err, "failed to clone repository")
	}
	return repo, nil
}

// describe reports the checkout against the tags known before fetching.
func (o *Orchestrator) describe(ctx context.Context, repo Repository, head string) (string, error) {
	tags, err := repo.Tags(ctx)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeIO, "failed to list tags")
	}
	oldVersion, err := version.Describe(ctx, repo, head, version.NewTagIndex(tags))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeIO, "failed to describe checkout")
	}
	o.logger.DebugContext(ctx, "current checkout", "old_version", oldVersion, "commit", head)
	return oldVersion, nil
}

func classifyGitError(err error, message string) error {
	switch {
	case stderrors.Is(err, git.ErrBranchMissing), stderrors.Is(err, git.ErrNoRemote):
		return errors.Wrap(err, errors.CodeInvalidConfig, message)
	case stderrors.Is(err, git.ErrAuthRequired):
		return errors.Wrap(err, errors.CodeUnauthorized, message)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTimeout, message)
	default:
		return errors.Wrap(err, errors.CodeNetwork, message)
	}
}
