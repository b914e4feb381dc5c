package git

import (
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ciotto/telegram-bot-deploy/version"
)

// Tags returns every local tag with the commit it marks and that commit's
// author name. Annotated tags are peeled to their commit; tags that point at
// trees or blobs are skipped. Results are sorted by name.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) Tags(ctx context.Context) ([]version.Tag, error) {
	refs, err := r.repo.Tags()
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}
	defer refs.Close()

	var tags []version.Tag
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		commit, err := r.peelTag(ref)
		if errors.Is(err, object.ErrUnsupportedObject) {
			return nil
		}
		if err != nil {
			return WrapErrorf(err, "failed to resolve tag %s", ref.Name().Short())
		}

		tags = append(tags, version.Tag{
			Name:   ref.Name().Short(),
			Commit: commit.Hash.String(),
			Author: commit.Author.Name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// peelTag returns the commit a tag reference points at.
func (r *Repo) peelTag(ref *plumbing.Reference) (*object.Commit, error) {
	tagObj, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		return tagObj.Commit()
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return r.repo.CommitObject(ref.Hash())
	default:
		return nil, err
	}
}
