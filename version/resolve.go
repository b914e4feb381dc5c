package version

import (
	"context"
	"fmt"
)

// AbbrevLength is the number of hash characters used in descriptions.
const AbbrevLength = 7

// CommitGraph exposes the parent links of a commit DAG.
type CommitGraph interface {
	// Parents returns the parent ids of commit in recorded order.
	// The first entry is the first parent.
	Parents(ctx context.Context, commit string) ([]string, error)
}

// FindLatestTag walks the history of tip following only first parents and
// returns the first tag found in index. Tags reachable only through merged
// side branches are not considered. A nil tag with a nil error means the
// history holds no indexed tag.
func FindLatestTag(ctx context.Context, graph CommitGraph, tip string, index TagIndex) (*Tag, error) {
	commit := tip
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("tag lookup interrupted at %s: %w", Abbrev(commit), err)
		}

		if tag, ok := index.Lookup(commit); ok {
			return &tag, nil
		}

		parents, err := graph.Parents(ctx, commit)
		if err != nil {
			return nil, fmt.Errorf("failed to read parents of %s: %w", Abbrev(commit), err)
		}
		if len(parents) == 0 {
			return nil, nil
		}
		commit = parents[0]
	}
}

// Describe returns a human readable name for head: the tag name when head is
// tagged, "<tag>-<n>-g<abbrev>" when the nearest tagged ancestor is n commits
// away, or the abbreviated hash when no ancestor is tagged. All parents are
// searched breadth first; n counts parent edges on the shortest path, which
// can be lower than the count git describe reports across merges.
func Describe(ctx context.Context, graph CommitGraph, head string, index TagIndex) (string, error) {
	type node struct {
		commit string
		depth  int
	}

	seen := map[string]bool{head: true}
	queue := []node{{commit: head}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("describe interrupted: %w", err)
		}

		current := queue[0]
		queue = queue[1:]

		if tag, ok := index.Lookup(current.commit); ok {
			if current.depth == 0 {
				return tag.Name, nil
			}
			return fmt.Sprintf("%s-%d-g%s", tag.Name, current.depth, Abbrev(head)), nil
		}

		parents, err := graph.Parents(ctx, current.commit)
		if err != nil {
			return "", fmt.Errorf("failed to read parents of %s: %w", Abbrev(current.commit), err)
		}
		for _, parent := range parents {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			queue = append(queue, node{commit: parent, depth: current.depth + 1})
		}
	}

	return Abbrev(head), nil
}

// Abbrev shortens a commit id for display.
func Abbrev(commit string) string {
	if len(commit) <= AbbrevLength {
		return commit
	}
	return commit[:AbbrevLength]
}
