// Package git wraps go-git with the operations a deployment run needs:
// clone or open the local checkout, fetch branches and tags from origin,
// list tags with their commits and authors, read parent links, resolve the
// tracked remote branch and hard reset the worktree to a release.
//
// Repositories are read and written through the project's fs.Filesystem
// abstraction, so the same code runs against the host disk and against
// in-memory filesystems in tests:
//
//	repo, err := git.Clone(ctx, "git@github.com:me/bot.git", &git.Options{
//	    FS:      billyfs.NewHostFS(),
//	    Workdir: "repo",
//	    Auth:    git.NewSSHAuth("id_deployment_key", ""),
//	})
//
// Repo satisfies version.CommitGraph, so it can be handed straight to the
// tag resolver.
package git
