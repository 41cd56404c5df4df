package taskqueue

import "errors"

var (
	// ErrTaskCancel rejects a pending task's future when the queue is
	// drained by Stop or by Close({force:true}) (spec.md §4.5/§5).
	ErrTaskCancel = errors.New("taskqueue: task canceled")
	// ErrDatabaseClosing rejects new submissions once Close has begun
	// (spec.md §4.5).
	ErrDatabaseClosing = errors.New("taskqueue: database is closing")
	// ErrDatabaseCloseTimeout is returned from Close when the queue did
	// not drain within the requested timeout (spec.md §4.5).
	ErrDatabaseCloseTimeout = errors.New("taskqueue: close timed out waiting for the queue to drain")
)
