// Package version resolves which release tag a branch tip belongs to and
// describes the currently deployed checkout.
package version

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Tag is a release tag: a name pointing at one commit, with the display name
// of the tagged commit's author.
type Tag struct {
	Name   string
	Commit string
	Author string
}

// TagIndex maps a commit id to the tag that marks it. It is built once per
// run from the tags known locally after a fetch.
type TagIndex map[string]Tag

// NewTagIndex builds an index holding at most one tag per commit. When several
// tags point at the same commit the highest semantic version wins, semantic
// versions beat any other name, and among other names the lexicographically
// smallest wins. The result does not depend on the order of tags.
func NewTagIndex(tags []Tag) TagIndex {
	index := make(TagIndex, len(tags))
	for _, tag := range tags {
		current, ok := index[tag.Commit]
		if !ok || preferred(tag, current) {
			index[tag.Commit] = tag
		}
	}
	return index
}

// Lookup returns the tag marking commit, if any.
func (idx TagIndex) Lookup(commit string) (Tag, bool) {
	tag, ok := idx[commit]
	return tag, ok
}

// Names returns the indexed tag names, sorted.
func (idx TagIndex) Names() []string {
	names := make([]string, 0, len(idx))
	for _, tag := range idx {
		names = append(names, tag.Name)
	}
	sort.Strings(names)
	return names
}

// preferred reports whether a should replace b for the same commit.
func preferred(a, b Tag) bool {
	va, errA := semver.NewVersion(a.Name)
	vb, errB := semver.NewVersion(b.Name)

	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c > 0
		}
		// v1.0.0 and 1.0.0 parse equal; fall back to the name.
		return a.Name < b.Name
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a.Name < b.Name
	}
}
