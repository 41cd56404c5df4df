package gitbackend

import "fmt"

// TransportErrorKind enumerates the transport failure classes spec.md §6
// requires the Git Backend to distinguish, so the Sync Engine can decide
// retry versus fatal (spec.md §7).
type TransportErrorKind string

const (
	InvalidURLFormat         TransportErrorKind = "InvalidURLFormat"
	UnresolvedHost           TransportErrorKind = "UnresolvedHost"
	RemoteRepositoryNotFound TransportErrorKind = "RemoteRepositoryNotFound"
	InvalidSSHKeyFormat      TransportErrorKind = "InvalidSSHKeyFormat"
	PushAuthentication       TransportErrorKind = "PushAuthentication"
	PushPermissionDenied     TransportErrorKind = "PushPermissionDenied"
	HttpTimeout              TransportErrorKind = "HttpTimeout"
	SocketTimeout            TransportErrorKind = "SocketTimeout"
	HttpNetwork              TransportErrorKind = "HttpNetwork"
	CannotPushUnfetched      TransportErrorKind = "CannotPushUnfetched"
	NoMergeBase              TransportErrorKind = "NoMergeBase"
)

// TransportError wraps an underlying transport failure with the kind a
// caller should branch on. Implements error and supports errors.Is against
// the wrapped cause via Unwrap.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gitbackend: %s", e.Kind)
	}
	return fmt.Sprintf("gitbackend: %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *TransportError of the given kind.
func IsKind(err error, kind TransportErrorKind) bool {
	te, ok := err.(*TransportError)
	return ok && te.Kind == kind
}

// Retryable reports whether the Sync Engine should retry a sync round
// after this transport failure, per spec.md §7: "Retryable classes
// (CannotPushBecauseUnfetchedCommitExists, transient network) trigger the
// Sync Engine's retry loop; all others are fatal to the current task."
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case CannotPushUnfetched, HttpTimeout, SocketTimeout, HttpNetwork:
		return true
	default:
		return false
	}
}
