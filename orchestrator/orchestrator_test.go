package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciotto/telegram-bot-deploy/errors"
	"github.com/ciotto/telegram-bot-deploy/git"
	"github.com/ciotto/telegram-bot-deploy/notify"
	"github.com/ciotto/telegram-bot-deploy/pipeline"
	"github.com/ciotto/telegram-bot-deploy/version"
)

// fakeRepo is an in-memory commit graph. Fetch switches the visible tags and
// branches to their remote values.
type fakeRepo struct {
	parents  map[string][]string
	head     string
	tags     []version.Tag
	branches map[string]string

	remoteTags     []version.Tag
	remoteBranches map[string]string
	fetchErr       error

	fetched bool
	resets  []string
}

func (r *fakeRepo) Parents(_ context.Context, commit string) ([]string, error) {
	parents, ok := r.parents[commit]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", commit)
	}
	return parents, nil
}

func (r *fakeRepo) Head(context.Context) (string, error) { return r.head, nil }

func (r *fakeRepo) Fetch(context.Context) error {
	if r.fetchErr != nil {
		return r.fetchErr
	}
	r.fetched = true
	r.tags = r.remoteTags
	r.branches = r.remoteBranches
	return nil
}

func (r *fakeRepo) Tags(context.Context) ([]version.Tag, error) { return r.tags, nil }

func (r *fakeRepo) RemoteBranch(_ context.Context, branch string) (string, error) {
	tip, ok := r.branches[branch]
	if !ok {
		return "", git.WrapErrorf(git.ErrBranchMissing, "missing origin/%s", branch)
	}
	return tip, nil
}

func (r *fakeRepo) Reset(_ context.Context, commit string) error {
	r.resets = append(r.resets, commit)
	r.head = commit
	return nil
}

type fakeWorkspace struct {
	exists    bool
	repo      *fakeRepo
	cloneErr  error
	clonedURL string
}

func (w *fakeWorkspace) Exists(context.Context) (bool, error) { return w.exists, nil }

//nolint:ireturn // test double for the Workspace interface.
func (w *fakeWorkspace) Open(context.Context) (Repository, error) { return w.repo, nil }

//nolint:ireturn // test double for the Workspace interface.
func (w *fakeWorkspace) Clone(_ context.Context, url string) (Repository, error) {
	if w.cloneErr != nil {
		return nil, w.cloneErr
	}
	w.clonedURL = url
	return w.repo, nil
}

type recordingSender struct {
	messages []string
}

func (s *recordingSender) Send(_ context.Context, _ int64, text string) error {
	s.messages = append(s.messages, text)
	return nil
}

// history builds c1 <- c2 <- c3 with v1 on c1 and, on the remote, v2 on c3.
// The checkout sits on c1.
func history() *fakeRepo {
	v1 := version.Tag{Name: "v1", Commit: "c1", Author: "Alice"}
	v2 := version.Tag{Name: "v2", Commit: "c3", Author: "Bob"}
	return &fakeRepo{
		parents:        map[string][]string{"c1": {}, "c2": {"c1"}, "c3": {"c2"}},
		head:           "c1",
		tags:           []version.Tag{v1},
		branches:       map[string]string{"master": "c1"},
		remoteTags:     []version.Tag{v1, v2},
		remoteBranches: map[string]string{"master": "c3"},
	}
}

type harness struct {
	repo      *fakeRepo
	workspace *fakeWorkspace
	sender    *recordingSender
	gates     []string
	settings  Settings
}

func newHarness(repo *fakeRepo) *harness {
	return &harness{
		repo:      repo,
		workspace: &fakeWorkspace{exists: true, repo: repo},
		sender:    &recordingSender{},
		settings:  Settings{RepoURL: "git@example.com:bots/echo.git", Branch: "master"},
	}
}

func (h *harness) run(t *testing.T) (Outcome, error) {
	t.Helper()

	templates := notify.DefaultTemplates()
	templates[notify.NewVersion] = "New version %(version)s by %(author)s"
	notifier := notify.New(h.sender, 42, templates)

	var gates []pipeline.Gate
	for _, name := range []string{"environment", "dependencies", "tests", "coverage", "restart"} {
		gates = append(gates, pipeline.Gate{
			Name: name,
			Run: func(context.Context, *pipeline.ReleaseContext) error {
				h.gates = append(h.gates, name)
				return nil
			},
			Failure: notify.RestartFailed,
		})
	}

	orch := New(h.settings, h.workspace, pipeline.New(gates, notifier))
	return orch.Run(context.Background())
}

func TestRun_DeploysNewTag(t *testing.T) {
	h := newHarness(history())

	outcome, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, Deployed, outcome)

	assert.True(t, h.repo.fetched)
	assert.Equal(t, []string{"c3"}, h.repo.resets)
	assert.Equal(t, []string{"environment", "dependencies", "tests", "coverage", "restart"}, h.gates)
	assert.Equal(t, []string{"New version v2 by Bob"}, h.sender.messages)
}

func TestRun_OldVersionIsDescribed(t *testing.T) {
	repo := history()
	repo.head = "c2"
	h := newHarness(repo)

	templates := notify.Templates{notify.NewVersion: "%(old_version)s -> %(version)s"}
	orch := New(h.settings, h.workspace, pipeline.New(nil, notify.New(h.sender, 42, templates)))

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Deployed, outcome)
	assert.Equal(t, []string{"v1-1-gc2 -> v2"}, h.sender.messages)
}

func TestRun_UpToDate(t *testing.T) {
	repo := history()
	repo.head = "c3"
	h := newHarness(repo)

	outcome, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, UpToDate, outcome)
	assert.Empty(t, h.repo.resets)
	assert.Empty(t, h.gates)
	assert.Empty(t, h.sender.messages)
	assert.Equal(t, 0, errors.ExitCode(err))
}

func TestRun_ForceRedeploysSameTag(t *testing.T) {
	repo := history()
	repo.head = "c3"
	h := newHarness(repo)
	h.settings.Force = true

	outcome, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, Deployed, outcome)
	assert.Equal(t, []string{"c3"}, h.repo.resets)
	assert.Len(t, h.gates, 5)
	assert.Equal(t, []string{"New version v2 by Bob"}, h.sender.messages)
}

func TestRun_NoTag(t *testing.T) {
	repo := history()
	repo.tags = nil
	repo.remoteTags = nil
	h := newHarness(repo)

	outcome, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, NoTag, outcome)
	assert.Empty(t, h.gates)
	assert.Empty(t, h.sender.messages)
}

func TestRun_MissingBranch(t *testing.T) {
	h := newHarness(history())
	h.settings.Branch = "production"

	_, err := h.run(t)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
	assert.ErrorIs(t, err, git.ErrBranchMissing)
	assert.Equal(t, 65, errors.ExitCode(err))
	assert.Empty(t, h.gates)
}

func TestRun_ClonesWhenMissing(t *testing.T) {
	h := newHarness(history())
	h.workspace.exists = false

	outcome, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, Deployed, outcome)
	assert.Equal(t, "git@example.com:bots/echo.git", h.workspace.clonedURL)
}

func TestRun_FreshCloneAtLatestTag(t *testing.T) {
	tests := []struct {
		name    string
		force   bool
		want    Outcome
		gates   int
		message []string
	}{
		{name: "up to date", want: UpToDate},
		{name: "forced", force: true, want: Deployed, gates: 5, message: []string{"New version v2 by Bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := history()
			repo.head = "c3"
			h := newHarness(repo)
			h.workspace.exists = false
			h.settings.Force = tt.force

			outcome, err := h.run(t)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, "git@example.com:bots/echo.git", h.workspace.clonedURL)
			assert.Len(t, h.gates, tt.gates)
			assert.Equal(t, tt.message, h.sender.messages)
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		wantCode errors.ErrorCode
	}{
		{
			name: "missing URL on first run",
			setup: func(h *harness) {
				h.workspace.exists = false
				h.settings.RepoURL = ""
			},
			wantCode: errors.CodeInvalidConfig,
		},
		{
			name: "clone auth failure",
			setup: func(h *harness) {
				h.workspace.exists = false
				h.workspace.cloneErr = git.WrapError(git.ErrAuthRequired, "no key")
			},
			wantCode: errors.CodeUnauthorized,
		},
		{
			name:     "fetch failure",
			setup:    func(h *harness) { h.repo.fetchErr = stderrors.New("connection reset") },
			wantCode: errors.CodeNetwork,
		},
		{
			name:     "no origin",
			setup:    func(h *harness) { h.repo.fetchErr = git.WrapError(git.ErrNoRemote, "fetch") },
			wantCode: errors.CodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(history())
			tt.setup(h)

			_, err := h.run(t)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))
			assert.Empty(t, h.gates)
			assert.Empty(t, h.sender.messages)
		})
	}
}

func TestRun_GateFailureStopsRelease(t *testing.T) {
	h := newHarness(history())
	sender := &recordingSender{}
	gates := []pipeline.Gate{
		{Name: "tests", Run: func(context.Context, *pipeline.ReleaseContext) error {
			return stderrors.New("exit status 1")
		}, Failure: notify.TestsFailed},
		{Name: "restart", Run: func(context.Context, *pipeline.ReleaseContext) error {
			t.Fatal("restart must not run")
			return nil
		}, Failure: notify.RestartFailed},
	}
	orch := New(h.settings, h.workspace, pipeline.New(gates, notify.New(sender, 42, notify.DefaultTemplates())))

	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))
	assert.Equal(t, 74, errors.ExitCode(err))
	assert.Equal(t, []string{"Error during tests run for version v2!"}, sender.messages)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "up-to-date", UpToDate.String())
	assert.Equal(t, "no-tag", NoTag.String())
	assert.Equal(t, "deployed", Deployed.String())
}
