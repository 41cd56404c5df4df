package sync

import "errors"

// Sentinel errors, one per spec.md §7 Sync Engine error kind this
// package raises directly (transport-classified kinds surface as
// *gitbackend.TransportError instead; see errors.Is/IsKind there).
var (
	ErrUndefinedRemoteURL  = errors.New("sync: remote url is undefined")
	ErrIntervalTooSmall    = errors.New("sync: interval is below the minimum sync interval")
	ErrNoMergeBaseFound    = errors.New("sync: local and remote share no common ancestor")
	ErrSynchronizerNotOpen = errors.New("sync: the owning database is not open")
)
