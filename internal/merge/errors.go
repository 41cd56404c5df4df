package merge

import "errors"

var (
	// ErrInvalidJsonObject mirrors spec.md §7's InvalidJsonObject: a blob
	// that does not parse as JSON was encountered where a JSON merge was
	// expected.
	ErrInvalidJsonObject = errors.New("merge: blob is not a valid JSON object")
	// ErrNoMergeBaseFound mirrors spec.md §6's NoMergeBase transport
	// classification. Nothing in this package returns it; the Sync Engine
	// reports a missing common ancestor (with BehaviorForNoMergeBase "nop")
	// as sync.ErrNoMergeBaseFound.
	ErrNoMergeBaseFound = errors.New("merge: no common ancestor between local and remote history")
)
