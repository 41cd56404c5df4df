package gitbackend

import "errors"

// State-kind sentinels a backend implementation can surface directly
// (most error kinds named in spec.md §7 are raised by higher layers that
// interpret a backend's return values and TransportError instead).
var (
	ErrRepositoryNotOpen  = errors.New("git backend: repository is not open")
	ErrNoMergeBase        = errors.New("git backend: no common ancestor between the two histories")
	ErrBlobNotFound       = errors.New("git backend: blob not found")
	ErrRefNotFound        = errors.New("git backend: ref not found")
	ErrRemoteNotFound     = errors.New("git backend: remote not found")
	ErrRemoteAlreadyExists = errors.New("git backend: remote already exists")
)
