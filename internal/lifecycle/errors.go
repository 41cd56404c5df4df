package lifecycle

import "errors"

var (
	// ErrDatabaseClosed names the closed state. Nothing in this module
	// returns it: writes submitted after Close fail with
	// taskqueue.ErrDatabaseClosing.
	ErrDatabaseClosed = errors.New("lifecycle: database is closed")
	// ErrInvalidVersion signals info.json carries a version this build
	// cannot read (spec.md §4.9's isValidVersion).
	ErrInvalidVersion = errors.New("lifecycle: persisted database version is not readable by this build")
)
