package release

import "errors"

var (
	// ErrNotFound marks a missing release tag or a release carrying no
	// artifact for the requested platform. Terminal for the invocation.
	ErrNotFound = errors.New("release not found")

	// ErrResolution marks a transient failure querying the release index.
	// Callers may retry once before surfacing it.
	ErrResolution = errors.New("release resolution failed")
)
