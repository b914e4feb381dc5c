package git

import (
	"errors"
	"fmt"
)

// ErrBranchMissing is returned when the tracked branch has no remote ref after fetch.
var ErrBranchMissing = errors.New("branch does not exist")

// ErrInvalidRef is returned when a reference name or commit id is malformed.
var ErrInvalidRef = errors.New("invalid reference")

// ErrResolveFailed is returned when a revision cannot be resolved to a commit.
var ErrResolveFailed = errors.New("cannot resolve revision")

// ErrAuthRequired is returned when credentials for the remote cannot be set up.
var ErrAuthRequired = errors.New("authentication required")

// ErrNoRemote is returned when the repository has no usable origin remote.
var ErrNoRemote = errors.New("remote not configured")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
