package eventbus

import "github.com/gitdocdb/gitdocdb/internal/merge"

// EventType enumerates the events a Synchronizer publishes over its
// lifetime (spec.md §4.8).
type EventType string

const (
	EventStart       EventType = "start"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
	EventPause       EventType = "pause"
	EventResume      EventType = "resume"
	EventChange      EventType = "change"
	EventLocalChange EventType = "localChange"
	EventRemoteChange EventType = "remoteChange"
)

// SyncAction is SyncResult.action (spec.md §4.6.3/§4.7.5).
type SyncAction string

const (
	ActionNop                     SyncAction = "nop"
	ActionPush                    SyncAction = "push"
	ActionFastForwardMerge        SyncAction = "fast-forward merge"
	ActionMergeAndPush            SyncAction = "merge and push"
	ActionResolveConflictsAndPush SyncAction = "resolve conflicts and push"
	ActionCanceled                SyncAction = "canceled"
)

// CommitRecord is one entry of SyncResult.commits, populated only when
// RemoteOptions.IncludeCommits is set.
type CommitRecord struct {
	Oid     string
	Message string
}

// SyncResult is the outcome of one sync_worker run (spec.md §4.7.5).
type SyncResult struct {
	Action SyncAction
	Commits struct {
		Local  []CommitRecord
		Remote []CommitRecord
	}
	Changes struct {
		Local  []merge.ChangedFile
		Remote []merge.ChangedFile
	}
}

// Event is the payload delivered to a single subscriber call. Only the
// field matching Type is populated; the others are the zero value.
type Event struct {
	Type EventType

	// Err is set for EventError.
	Err error

	// Result is set for EventChange.
	Result SyncResult

	// Changes is set for EventLocalChange/EventRemoteChange.
	Changes []merge.ChangedFile
}

// Handler receives one Event. A returned error is logged but never
// aborts dispatch to the remaining handlers or the worker that
// triggered the event (spec.md §4.8).
type Handler func(e Event) error
