package git

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/ciotto/telegram-bot-deploy/fs"
	fsb "github.com/ciotto/telegram-bot-deploy/fs/billy"
	"github.com/ciotto/telegram-bot-deploy/git/internal/fsbridge"
)

// testRepo is a go-git repository used to build fixtures, plus the Repo
// wrapper opened on top of it.
type testRepo struct {
	t    *testing.T
	raw  *git.Repository
	repo *Repo
	fs   fs.Filesystem
	dir  string
	root string
	ctx  context.Context
	tick int
}

// setupTestRepo creates an empty repository at "repo" in an in-memory filesystem.
func setupTestRepo(t *testing.T) *testRepo {
	t.Helper()

	memFS := fsb.NewInMemoryFS()
	worktreeFS, storage, err := fsbridge.Scope(memFS, "repo", 0)
	require.NoError(t, err)

	raw, err := git.Init(storage, worktreeFS)
	require.NoError(t, err, "failed to initialize test repository")

	return &testRepo{t: t, raw: raw, fs: memFS, dir: "repo", ctx: context.Background()}
}

// setupDiskRepo creates an empty repository on disk, usable as a clone source.
func setupDiskRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()
	raw, err := git.PlainInit(dir, false)
	require.NoError(t, err, "failed to initialize upstream repository")

	return &testRepo{t: t, raw: raw, fs: fsb.NewOSFS(dir), dir: ".", root: dir, ctx: context.Background()}
}

// open wraps the fixture repository with Repo.
func (tr *testRepo) open() *Repo {
	tr.t.Helper()
	if tr.repo == nil {
		repo, err := Open(tr.ctx, &Options{FS: tr.fs, Workdir: tr.dir})
		require.NoError(tr.t, err)
		tr.repo = repo
	}
	return tr.repo
}

// commit writes file with content and commits it as author.
func (tr *testRepo) commit(file, content, author string) plumbing.Hash {
	tr.t.Helper()

	require.NoError(tr.t, tr.fs.WriteFile(filepath.Join(tr.dir, file), []byte(content), 0o644))

	wt, err := tr.raw.Worktree()
	require.NoError(tr.t, err)

	_, err = wt.Add(file)
	require.NoError(tr.t, err)

	tr.tick++
	hash, err := wt.Commit("change "+file, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: author + "@example.com",
			When:  time.Date(2024, 1, 1, 0, tr.tick, 0, 0, time.UTC),
		},
	})
	require.NoError(tr.t, err, "failed to commit")
	return hash
}

// lightweightTag points name at hash.
func (tr *testRepo) lightweightTag(name string, hash plumbing.Hash) {
	tr.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), hash)
	require.NoError(tr.t, tr.raw.Storer.SetReference(ref))
}

// annotatedTag creates an annotated tag object for hash.
func (tr *testRepo) annotatedTag(name string, hash plumbing.Hash) {
	tr.t.Helper()
	_, err := tr.raw.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger:  &object.Signature{Name: "release-bot", Email: "bot@example.com", When: time.Now()},
		Message: "release " + name,
	})
	require.NoError(tr.t, err)
}

// remoteBranch sets refs/remotes/origin/<branch> to hash.
func (tr *testRepo) remoteBranch(branch string, hash plumbing.Hash) {
	tr.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(DefaultRemoteName, branch), hash)
	require.NoError(tr.t, tr.raw.Storer.SetReference(ref))
}

var testSignature = object.Signature{
	Name:  "Merger",
	Email: "merger@example.com",
	When:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
}
